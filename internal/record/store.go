package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrCorrupt indicates a state file that could not be decoded.
var ErrCorrupt = errors.New("corrupt state file")

// Store persists the record as an indented JSON file.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With("system", "record-store"),
		now:    time.Now,
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted record, or a fresh IDLE record when the file is
// absent. A corrupt file is moved aside and replaced by a fresh record.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no state file, starting idle", "path", s.path)
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	r, err := decode(data)
	if err == nil {
		return r, nil
	}

	aside := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405Z"))
	if mvErr := os.Rename(s.path, aside); mvErr != nil {
		return nil, fmt.Errorf("move corrupt state file: %w", mvErr)
	}

	s.logger.Error("state file corrupt, reset to idle",
		"path", s.path,
		"moved_to", aside,
		"error", err,
	)
	return New(), nil
}

// Save writes r atomically: a temp file in the same directory is synced and
// renamed over the state file.
func (s *Store) Save(r *Record) error {
	r.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// Reset overwrites the state file with a fresh IDLE record.
func (s *Store) Reset() (*Record, error) {
	r := New()
	if err := s.Save(r); err != nil {
		return nil, err
	}
	return r, nil
}

func decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if !r.State.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrCorrupt, r.State)
	}
	r.normalize()
	return &r, nil
}

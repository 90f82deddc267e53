// Package infrastructure assembles the systems every tally module depends
// on: lifecycle, logging, the catalog database, blob storage and the
// workflow state file.
package infrastructure

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/migrations"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/pkg/database"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	State     *record.Store

	migrateURL string
}

// New creates an Infrastructure from the application configuration.
// Systems are created but not started; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		State:     record.NewStore(cfg.Workflow.StateFile, logger),
	}
	if cfg.Database.AutoMigrate {
		infra.migrateURL = cfg.Database.URL()
	}
	return infra, nil
}

// Start applies pending migrations when auto_migrate is set, then registers
// database and storage hooks with the lifecycle coordinator. The state file
// needs no startup.
func (i *Infrastructure) Start() error {
	if i.migrateURL != "" {
		if err := i.migrate(); err != nil {
			return err
		}
	}
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}

func (i *Infrastructure) migrate() error {
	m, err := migrations.New(i.migrateURL)
	if err != nil {
		return fmt.Errorf("migrations init failed: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations failed: %w", err)
	}

	version, _, _ := m.Version()
	i.Logger.Info("catalog schema ready", "version", version)
	return nil
}

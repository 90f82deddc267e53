package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/pdf"
	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
	"github.com/JaimeStill/tally/pkg/storage"
)

const columns = "id, cycle_id, filename, content_type, size_bytes, page_count, storage_key, status, created_at, updated_at"

type repo struct {
	db            *sql.DB
	storage       storage.System
	logger        *slog.Logger
	pagination    pagination.Config
	archivePrefix string
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
	archivePrefix string,
) System {
	return &repo{
		db:            db,
		storage:       store,
		logger:        logger.With("system", "documents"),
		pagination:    pagination,
		archivePrefix: archivePrefix,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "StorageKey")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) findByKey(ctx context.Context, key string) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("StorageKey", key)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Store(ctx context.Context, key string, data []byte, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := r.storage.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("upload document blob: %w", err)
	}

	q := `
		INSERT INTO documents(id, cycle_id, filename, content_type, size_bytes, page_count, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (storage_key) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			size_bytes = EXCLUDED.size_bytes,
			page_count = EXCLUDED.page_count,
			status = 'active',
			updated_at = NOW()
		RETURNING ` + columns

	args := []any{
		uuid.New(),
		CycleOf(key),
		path.Base(key),
		contentType,
		int64(len(data)),
		pageCount(r.logger, data, contentType),
		key,
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, args, scanDocument)
	})
	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document stored", "id", d.ID, "key", key, "size", d.SizeBytes)
	return nil
}

func (r *repo) Read(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	data, err := storage.ReadAll(ctx, r.storage, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return data, nil
}

func (r *repo) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := r.storage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete document blob: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE storage_key = $1", key); err != nil {
		return fmt.Errorf("delete document row: %w", err)
	}

	r.logger.Info("document removed", "key", key)
	return nil
}

func (r *repo) Archive(ctx context.Context, folder string, keys []string) error {
	for _, key := range keys {
		if err := checkKey(key); err != nil {
			return err
		}

		dst := ArchiveKey(r.archivePrefix, folder, key)
		contentType := contentTypeOf(key)
		if d, err := r.findByKey(ctx, key); err == nil {
			contentType = d.ContentType
		}

		if err := storage.Move(ctx, r.storage, key, dst, contentType); err != nil {
			return fmt.Errorf("%w: move %s: %w", ErrArchive, key, err)
		}

		_, err := r.db.ExecContext(ctx, `
			UPDATE documents
			SET storage_key = $2, status = 'archived', updated_at = NOW()
			WHERE storage_key = $1`,
			key, dst,
		)
		if err != nil {
			return fmt.Errorf("%w: update %s: %w", ErrArchive, key, err)
		}
	}

	r.logger.Info("documents archived", "folder", folder, "count", len(keys))
	return nil
}

func checkKey(key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return nil
}

func contentTypeOf(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func pageCount(logger *slog.Logger, data []byte, contentType string) *int {
	if !strings.HasPrefix(contentType, pdf.ContentType) {
		return nil
	}

	count, err := pdf.PageCount(data)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return nil
	}

	return &count
}

package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the Postgres-backed System.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := filters.apply(query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "Name", "Description"))
	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) Create(ctx context.Context, cmd Command) (*Prompt, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	p, err := r.write(ctx,
		"INSERT INTO prompts(name, stage, instructions, description) VALUES ($1, $2, $3, $4) RETURNING "+columns,
		cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description,
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("override created", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

// Update may move an active override to another stage. The partial unique
// index on (stage) WHERE active then reports ErrDuplicate if that stage
// already has an active override.
func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd Command) (*Prompt, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	p, err := r.write(ctx,
		"UPDATE prompts SET name = $1, stage = $2, instructions = $3, description = $4 WHERE id = $5 RETURNING "+columns,
		cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description, id,
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("override updated", "id", p.ID, "stage", p.Stage, "active", p.Active)
	return p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.InTx(ctx, r.db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("override deleted", "id", id)
	return nil
}

func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		var stage Stage
		if err := tx.QueryRowContext(ctx, "SELECT stage FROM prompts WHERE id = $1 FOR UPDATE", id).Scan(&stage); err != nil {
			return Prompt{}, err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE prompts SET active = false WHERE stage = $1 AND active AND id <> $2",
			stage, id,
		); err != nil {
			return Prompt{}, fmt.Errorf("deactivate %s override: %w", stage, err)
		}

		return repository.QueryOne(ctx, tx,
			"UPDATE prompts SET active = true WHERE id = $1 RETURNING "+columns,
			[]any{id}, scanPrompt,
		)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("override activated", "id", p.ID, "stage", p.Stage)
	return &p, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := r.write(ctx, "UPDATE prompts SET active = false WHERE id = $1 RETURNING "+columns, id)
	if err != nil {
		return nil, err
	}

	r.logger.Info("override deactivated; stage falls back to built-in", "id", p.ID, "stage", p.Stage)
	return p, nil
}

func (r *repo) Resolve(ctx context.Context, stage Stage) (Resolved, error) {
	res, err := Resolve(stage)
	if err != nil {
		return Resolved{}, err
	}

	var (
		id   uuid.UUID
		text string
	)
	err = r.db.QueryRowContext(ctx,
		"SELECT id, instructions FROM prompts WHERE stage = $1 AND active",
		stage,
	).Scan(&id, &text)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return res, nil
	case err != nil:
		return Resolved{}, fmt.Errorf("resolve %s: %w", stage, err)
	}

	res.Instructions = text
	res.Override = &id
	return res, nil
}

// write runs a single-row statement returning columns in a transaction.
func (r *repo) write(ctx context.Context, q string, args ...any) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

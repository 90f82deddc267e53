// Package database opens the PostgreSQL catalog that holds the mailbox,
// journal, prompt and document tables.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/retry"
)

// ApplicationName tags tally sessions in pg_stat_activity.
const ApplicationName = "tally"

// ErrUnavailable is returned when the catalog cannot be reached.
var ErrUnavailable = errors.New("catalog database unavailable")

// startupRetry paces connection attempts while PostgreSQL comes up next to
// the coordinator. The whole sequence is bounded by the connect timeout.
var startupRetry = retry.Config{
	MaxRetries:      8,
	InitialInterval: "250ms",
	MaxInterval:     "4s",
}

// System owns the catalog connection pool.
type System interface {
	// Connection returns the pool.
	Connection() *sql.DB
	// Ping checks the catalog within the connect timeout.
	Ping(ctx context.Context) error
	// Start connects at startup and closes the pool once intake has drained.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
}

// New builds the pool from cfg. No connection is made until Start or the
// first query.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	pgcfg, err := pgx.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pgcfg.RuntimeParams["application_name"] = ApplicationName
	pgcfg.ConnectTimeout = cfg.ConnTimeoutDuration()

	db := stdlib.OpenDB(*pgcfg)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		logger:      logger.With("system", "database"),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.connTimeout)
	defer cancel()

	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("connecting to catalog")

	lc.OnStartup(func() {
		start := time.Now()
		err := retry.Do(lc.Context(), startupRetry, d.logger, func() error {
			return d.Ping(lc.Context())
		})
		if err != nil {
			d.logger.Error("catalog unreachable, mailbox and journal will fail until it returns", "error", err)
			return
		}

		stats := d.conn.Stats()
		d.logger.Info("catalog connected",
			"elapsed", time.Since(start).Round(time.Millisecond),
			"max_open", stats.MaxOpenConnections,
		)
	})

	lc.OnClose(func() {
		if err := d.conn.Close(); err != nil {
			d.logger.Error("catalog close failed", "error", err)
			return
		}
		d.logger.Info("catalog connection closed")
	})

	return nil
}

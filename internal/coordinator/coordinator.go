// Package coordinator runs the invoice workflow state machine. Every event
// from the watcher, the mailbox and the operator is ordered through a single
// queue and applied under one transition lock.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/journal"
	"github.com/JaimeStill/tally/internal/mailbox"
	"github.com/JaimeStill/tally/internal/matcher"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/internal/timeout"
	"github.com/JaimeStill/tally/internal/workflow"
	"github.com/JaimeStill/tally/pkg/pdf"
)

// Store persists the workflow record.
type Store interface {
	Load() (*record.Record, error)
	Save(r *record.Record) error
}

// Transport sends messages and returns the thread they belong to.
type Transport interface {
	Send(ctx context.Context, msg mailbox.Outbound) (string, error)
}

// Operator is the interactive operator surface.
type Operator interface {
	Prompt(ctx context.Context, p operator.Prompt) (string, error)
	Retire(ctx context.Context, ref string)
	Notify(ctx context.Context, text string)
}

// Documents stores and archives cycle documents.
type Documents interface {
	Store(ctx context.Context, key string, data []byte, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	Archive(ctx context.Context, folder string, keys []string) error
}

// Assembler merges the cycle documents into the final artifact.
type Assembler interface {
	Assemble(ctx context.Context, req workflow.Request) (string, error)
}

// Journal audits state transitions.
type Journal interface {
	Append(ctx context.Context, t journal.Transition) error
}

// Deps are the collaborators of a Coordinator. Journal is optional; Text and
// Now default to PDF text extraction and the wall clock.
type Deps struct {
	Store     Store
	Transport Transport
	Operator  Operator
	Documents Documents
	Assembler Assembler
	Journal   Journal
	Matcher   *matcher.Matcher
	Text      func(data []byte) (string, error)
	Now       func() time.Time
}

// Config holds workflow parameters.
type Config struct {
	Company      string
	Manager      string
	Invoicing    string
	Accountant   string
	HourlyRate   int
	Currency     string
	MinHours     int
	MaxHours     int
	EditTimeout  time.Duration
	TickInterval time.Duration
	Tracker      timeout.Tracker
}

// Coordinator owns the workflow record and is its only writer.
type Coordinator struct {
	cfg       Config
	store     Store
	transport Transport
	operator  Operator
	documents Documents
	assembler Assembler
	journal   Journal
	matcher   *matcher.Matcher
	text      func([]byte) (string, error)
	now       func() time.Time
	queue     *events.Queue
	logger    *slog.Logger

	mu       sync.Mutex
	rec      *record.Record
	snapshot atomic.Pointer[record.Record]
}

// New loads the persisted record and creates a coordinator.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Coordinator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("store required")
	case deps.Transport == nil:
		return nil, errors.New("transport required")
	case deps.Operator == nil:
		return nil, errors.New("operator required")
	case deps.Documents == nil:
		return nil, errors.New("documents required")
	case deps.Assembler == nil:
		return nil, errors.New("assembler required")
	case deps.Matcher == nil:
		return nil, errors.New("matcher required")
	}

	if deps.Text == nil {
		deps.Text = pdf.ExtractText
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.MinHours == 0 {
		cfg.MinHours = 1
	}
	if cfg.MaxHours == 0 {
		cfg.MaxHours = 300
	}
	if cfg.EditTimeout == 0 {
		cfg.EditTimeout = 5 * time.Minute
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.Tracker.First == 0 {
		cfg.Tracker = timeout.Default()
	}

	rec, err := deps.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	c := &Coordinator{
		cfg:       cfg,
		store:     deps.Store,
		transport: deps.Transport,
		operator:  deps.Operator,
		documents: deps.Documents,
		assembler: deps.Assembler,
		journal:   deps.Journal,
		matcher:   deps.Matcher,
		text:      deps.Text,
		now:       deps.Now,
		queue:     events.NewQueue(),
		logger:    logger.With("system", "coordinator"),
		rec:       rec,
	}
	c.snapshot.Store(rec.Clone())

	return c, nil
}

// Record returns a copy of the last persisted record.
func (c *Coordinator) Record() *record.Record {
	return c.snapshot.Load().Clone()
}

// commit persists tx and makes it the current record. A state change is
// logged and journaled.
func (c *Coordinator) commit(ctx context.Context, tx *record.Record, cause, detail string) error {
	prev := c.rec

	if err := c.store.Save(tx); err != nil {
		c.logger.Error("persist record failed", "state", tx.State, "error", err)
		return fmt.Errorf("persist record: %w", err)
	}

	c.rec = tx.Clone()
	c.snapshot.Store(tx.Clone())

	if prev.State == tx.State {
		return nil
	}

	cycle := tx.CycleID
	if cycle == "" {
		cycle = prev.CycleID
	}

	c.logger.Info("transition",
		"cycle", cycle,
		"from", prev.State,
		"to", tx.State,
		"cause", cause,
	)

	if c.journal != nil {
		err := c.journal.Append(ctx, journal.Transition{
			CycleID:   cycle,
			Event:     cause,
			FromState: string(prev.State),
			ToState:   string(tx.State),
			Detail:    detail,
		})
		if err != nil {
			c.logger.Warn("journal append failed", "error", err)
		}
	}

	return nil
}

// Status reports the current workflow position without waiting for an
// in-flight transition.
func (c *Coordinator) Status() Status {
	return newStatus(c.snapshot.Load(), c.cfg, c.queue.Len())
}

package api

import (
	"fmt"

	"github.com/JaimeStill/tally/internal/classifier"
	"github.com/JaimeStill/tally/internal/coordinator"
	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/journal"
	"github.com/JaimeStill/tally/internal/mailbox"
	"github.com/JaimeStill/tally/internal/matcher"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/prompts"
	"github.com/JaimeStill/tally/internal/timeout"
	"github.com/JaimeStill/tally/internal/watcher"
	"github.com/JaimeStill/tally/internal/workflow"
	"github.com/JaimeStill/tally/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API, and the
// coordinator they feed.
type Domain struct {
	Documents   documents.System
	Prompts     prompts.System
	Journal     journal.System
	Mailbox     mailbox.System
	Console     *operator.Console
	Coordinator *coordinator.Coordinator
	Poller      *mailbox.Poller
	Watcher     *watcher.Watcher
}

// NewDomain creates all domain systems from the API runtime and wires
// them into the coordinator.
func NewDomain(runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	docsSystem := documents.New(
		db,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
		runtime.ArchivePrefix,
	)

	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)
	journalSystem := journal.New(db, runtime.Logger, runtime.Pagination)

	mailboxSystem := mailbox.New(
		db,
		docsSystem,
		runtime.Mailbox.Retry,
		runtime.Logger,
		runtime.Pagination,
	)

	m, err := newMatcher(runtime, promptsSystem)
	if err != nil {
		return nil, err
	}

	console := operator.NewConsole(operator.DefaultNoticeLimit, runtime.Logger)

	wf := runtime.Workflow
	coord, err := coordinator.New(
		coordinator.Config{
			Company:      wf.Company,
			Manager:      wf.Manager,
			Invoicing:    wf.Invoicing,
			Accountant:   wf.Accountant,
			HourlyRate:   wf.HourlyRate,
			Currency:     wf.Currency,
			MinHours:     wf.MinHours,
			MaxHours:     wf.MaxHours,
			EditTimeout:  wf.EditTimeoutDuration(),
			TickInterval: wf.TickIntervalDuration(),
			Tracker: timeout.Tracker{
				First:    wf.FirstReminderDuration(),
				Daily:    wf.DailyReminderDuration(),
				Location: wf.Location(),
			},
		},
		coordinator.Deps{
			Store:     runtime.State,
			Transport: mailboxSystem,
			Operator:  console,
			Documents: docsSystem,
			Assembler: workflow.NewAssembler(&workflow.Runtime{
				Documents: docsSystem,
				Logger:    runtime.Logger.With("system", "assembler"),
			}),
			Journal: journalSystem,
			Matcher: m,
		},
		runtime.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("coordinator init failed: %w", err)
	}
	console.Attach(coord)

	w, err := watcher.New(
		watcher.Config{
			Dir:        runtime.Watcher.Dir,
			Debounce:   runtime.Watcher.DebounceDuration(),
			Extensions: runtime.Watcher.Extensions,
		},
		coord,
		runtime.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("watcher init failed: %w", err)
	}

	return &Domain{
		Documents:   docsSystem,
		Prompts:     promptsSystem,
		Journal:     journalSystem,
		Mailbox:     mailboxSystem,
		Console:     console,
		Coordinator: coord,
		Poller: mailbox.NewPoller(
			mailboxSystem,
			coord,
			runtime.Mailbox.PollIntervalDuration(),
			runtime.Mailbox.Retry,
			runtime.Logger,
		),
		Watcher: w,
	}, nil
}

// Start registers the coordinator and its event sources with lc. The
// coordinator goes first so recovery runs before new events arrive.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	if err := d.Coordinator.Start(lc); err != nil {
		return fmt.Errorf("coordinator start failed: %w", err)
	}
	if err := d.Poller.Start(lc); err != nil {
		return fmt.Errorf("mailbox poller start failed: %w", err)
	}
	if err := d.Watcher.Start(lc); err != nil {
		return fmt.Errorf("watcher start failed: %w", err)
	}
	return nil
}

func newMatcher(runtime *Runtime, instructions classifier.Instructions) (*matcher.Matcher, error) {
	cc := runtime.Workflow.Classifier
	cfg := matcher.Config{
		Keywords:  runtime.Workflow.Keywords,
		Threshold: cc.Threshold,
		Timeout:   cc.TimeoutDuration(),
	}

	if !cc.Enabled {
		return matcher.New(cfg, nil, runtime.Logger), nil
	}

	c, err := classifier.NewAgent(
		classifier.Config{MaxText: cc.MaxText, MaxPages: cc.MaxPages},
		&runtime.Agent,
		instructions,
		runtime.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("classifier init failed: %w", err)
	}
	return matcher.New(cfg, c, runtime.Logger), nil
}

package mailbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/retry"
)

// Inbox is the receiving side of the mailbox.
type Inbox interface {
	Pending(ctx context.Context, limit int) ([]events.Message, error)
	MarkDelivered(ctx context.Context, id string) error
}

// DefaultBatch is the number of messages fetched per poll.
const DefaultBatch = 20

// ackTimeout bounds marking a message delivered once the coordinator is done
// with it. Acks may run during shutdown, after the poll context is cancelled.
const ackTimeout = 30 * time.Second

// Poller delivers received messages to the coordinator in arrival order.
// A message is marked delivered only after the coordinator has applied it;
// until then it stays in flight and later polls skip it.
type Poller struct {
	inbox    Inbox
	submit   events.Submitter
	interval time.Duration
	batch    int
	retry    retry.Config
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPoller creates a poller.
func NewPoller(inbox Inbox, submit events.Submitter, interval time.Duration, retryCfg retry.Config, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		inbox:    inbox,
		submit:   submit,
		interval: interval,
		batch:    DefaultBatch,
		retry:    retryCfg,
		logger:   logger.With("system", "mailbox-poller"),
		inflight: make(map[string]struct{}),
	}
}

// Poll submits one batch and returns the number of messages handed over.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	msgs, err := retry.DoWithData(ctx, p.retry, p.logger, func() ([]events.Message, error) {
		return p.inbox.Pending(ctx, p.batch)
	})
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, msg := range msgs {
		if !p.claim(msg.ID) {
			continue
		}

		if !p.submit.Submit(events.InboundMessage{Message: msg, Ack: p.ack(msg.ID)}) {
			p.release(msg.ID)
			return submitted, errors.New("coordinator is not accepting events")
		}
		submitted++
	}

	if submitted > 0 {
		p.logger.Debug("messages submitted", "count", submitted)
	}
	return submitted, nil
}

// InFlight returns the number of submitted messages not yet acknowledged.
func (p *Poller) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

func (p *Poller) claim(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inflight[id]; ok {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *Poller) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}

func (p *Poller) ack(id string) func(bool) {
	return func(handled bool) {
		defer p.release(id)

		if !handled {
			p.logger.Warn("message not applied, will be offered again", "id", id)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
		defer cancel()

		err := retry.Do(ctx, p.retry, p.logger, func() error {
			return p.inbox.MarkDelivered(ctx, id)
		})
		if err != nil {
			// Redelivery is harmless: the coordinator drops duplicates.
			p.logger.Warn("mark delivered failed", "id", id, "error", err)
		}
	}
}

// Run polls every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Start runs the poller for the lifetime of lc.
func (p *Poller) Start(lc *lifecycle.Coordinator) error {
	done := make(chan struct{})

	lc.OnStartup(func() {
		p.logger.Info("starting poller", "interval", p.interval)
		go func() {
			defer close(done)
			p.Run(lc.Context())
		}()
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-done
		p.logger.Info("poller stopped", "in_flight", p.InFlight())
	})

	return nil
}

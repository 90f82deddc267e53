package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/pkg/lifecycle"
)

// Submit queues e for processing. It never blocks and returns false once the
// coordinator has shut down.
func (c *Coordinator) Submit(e events.Event) bool {
	return c.queue.Enqueue(e)
}

// Apply evaluates e against the current record under the transition lock.
// Side effects complete and the result is persisted before Apply returns.
func (c *Coordinator) Apply(ctx context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.rec.State
	err := c.handle(ctx, c.rec.Clone(), e)
	if Discarded(err) {
		c.logger.Debug("event discarded", "event", e.Kind(), "state", state, "reason", err)
	}
	return err
}

// Run consumes the queue until ctx is cancelled or the queue is closed.
// Events still queued at close are drained first. Start runs it on a
// context that is never cancelled so shutdown always drains.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		c.drain(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, open := <-c.queue.Wait():
			if !open {
				c.drain(ctx)
				return nil
			}
		}
	}
}

func (c *Coordinator) drain(ctx context.Context) {
	for ctx.Err() == nil {
		e, ok := c.queue.TryDequeue()
		if !ok {
			return
		}
		c.dispatch(ctx, e)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, e events.Event) {
	err := c.Apply(ctx, e)
	handled := true
	switch {
	case err == nil, Discarded(err):
	case errors.Is(err, ErrValidation):
		c.logger.Info("event rejected", "event", e.Kind(), "error", err)
	default:
		handled = false
		c.logger.Error("event failed", "event", e.Kind(), "error", err)
	}

	if m, ok := e.(events.InboundMessage); ok && m.Ack != nil {
		m.Ack(handled)
	}
}

func (c *Coordinator) clock(ctx context.Context) {
	t := time.NewTicker(c.cfg.TickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-t.C:
			c.Submit(events.Tick{At: at})
		}
	}
}

// Start recovers the persisted cycle, then runs the dispatcher and the tick
// source until shutdown.
func (c *Coordinator) Start(lc *lifecycle.Coordinator) error {
	c.logger.Info("starting coordinator", "state", c.Record().State)

	done := make(chan struct{})

	lc.OnStartup(func() {
		if err := c.Recover(lc.Context()); err != nil {
			c.logger.Error("recovery failed", "error", err)
		}

		go func() {
			defer close(done)
			if err := c.Run(context.WithoutCancel(lc.Context())); err != nil {
				c.logger.Error("dispatcher stopped", "error", err)
			}
		}()
		go c.clock(lc.Context())
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		c.logger.Info("stopping coordinator", "queued", c.queue.Len())

		c.queue.Close()
		<-done

		c.logger.Info("coordinator stopped", "state", c.Record().State)
	})

	return nil
}

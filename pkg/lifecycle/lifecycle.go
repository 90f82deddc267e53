// Package lifecycle coordinates startup and the two shutdown phases.
//
// Startup hooks run as soon as they are registered. Shutdown hooks block on
// the coordinator context and stop intake: the HTTP listener, the watcher,
// the mailbox poller and the workflow dispatcher. Close hooks release what
// those hooks still use while they drain, such as the catalog pool, and run
// only after every shutdown hook has returned.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Coordinator owns the process context and the hook groups.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startup  sync.WaitGroup
	shutdown sync.WaitGroup

	closeMu sync.Mutex
	closers []func()

	ready atomic.Bool
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn in its own goroutine. Ready stays false until every
// registered startup function has returned.
func (c *Coordinator) OnStartup(fn func()) {
	c.startup.Go(fn)
}

// OnShutdown runs fn in its own goroutine. fn should block on
// <-c.Context().Done() and then stop its intake.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdown.Go(fn)
}

// OnClose registers fn to run after every shutdown hook has returned. Close
// hooks run concurrently with each other.
func (c *Coordinator) OnClose(fn func()) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.closers = append(c.closers, fn)
}

// Ready reports whether every startup hook has completed.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// WaitForStartup blocks until all startup hooks have completed and marks the
// coordinator ready.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()
	c.ready.Store(true)
}

// Shutdown cancels the context, waits for the shutdown hooks and then runs
// the close hooks, all within timeout. Close hooks run even when the
// shutdown hooks overrun, so resources are released before exit.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.ready.Store(false)
	c.cancel()

	deadline := time.After(timeout)
	drained := wait(&c.shutdown, deadline)

	c.closeMu.Lock()
	closers := c.closers
	c.closers = nil
	c.closeMu.Unlock()

	var closing sync.WaitGroup
	for _, fn := range closers {
		closing.Go(fn)
	}
	closed := wait(&closing, deadline)

	switch {
	case !drained:
		return fmt.Errorf("shutdown timeout after %v: hooks still draining", timeout)
	case !closed:
		return fmt.Errorf("shutdown timeout after %v: close hooks still running", timeout)
	}
	return nil
}

func wait(wg *sync.WaitGroup, deadline <-chan time.Time) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-deadline:
		return false
	}
}

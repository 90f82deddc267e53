// Package operator is the interactive surface of the workflow: prompts that
// wait for an operator decision and one-way notices. Responses are turned
// into operator action events and submitted to the workflow queue.
package operator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/internal/events"
)

// DefaultNoticeLimit is the number of notices kept when no limit is given.
const DefaultNoticeLimit = 100

// Console keeps the active prompts and recent notices in memory.
type Console struct {
	mu        sync.Mutex
	prompts   map[string]Prompt
	notices   []Notice
	seq       int64
	limit     int
	submitter events.Submitter
	now       func() time.Time
	logger    *slog.Logger
}

// NewConsole creates a console keeping at most limit notices.
func NewConsole(limit int, logger *slog.Logger) *Console {
	if limit <= 0 {
		limit = DefaultNoticeLimit
	}
	return &Console{
		prompts: make(map[string]Prompt),
		limit:   limit,
		now:     time.Now,
		logger:  logger.With("system", "operator"),
	}
}

// Attach sets the destination of operator responses.
func (c *Console) Attach(s events.Submitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitter = s
}

// Prompt publishes p and returns its reference.
func (c *Console) Prompt(ctx context.Context, p Prompt) (string, error) {
	if len(p.Options) == 0 {
		return "", fmt.Errorf("%w: prompt has no options", ErrInvalidAction)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p.ID = uuid.NewString()
	p.CreatedAt = c.now()
	c.prompts[p.ID] = p

	c.logger.InfoContext(ctx, "prompt issued", "id", p.ID, "kind", p.Kind, "options", p.Options)
	return p.ID, nil
}

// Retire withdraws the prompt ref. Unknown refs are ignored.
func (c *Console) Retire(ctx context.Context, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.prompts[ref]; !ok {
		return
	}
	delete(c.prompts, ref)
	c.logger.DebugContext(ctx, "prompt retired", "id", ref)
}

// Notify records a one-way notice.
func (c *Console) Notify(ctx context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.notices = append(c.notices, Notice{Seq: c.seq, Text: text, At: c.now()})
	if len(c.notices) > c.limit {
		c.notices = slices.Delete(c.notices, 0, len(c.notices)-c.limit)
	}

	c.logger.InfoContext(ctx, "notice", "seq", c.seq, "text", text)
}

// Prompts returns the active prompts, oldest first.
func (c *Console) Prompts() []Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Prompt, 0, len(c.prompts))
	for _, p := range c.prompts {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Prompt) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Find returns the active prompt ref.
func (c *Console) Find(ref string) (Prompt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prompts[ref]
	return p, ok
}

// Notices returns up to limit notices with a sequence number above after.
func (c *Console) Notices(after int64, limit int) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notice, 0)
	for _, n := range c.notices {
		if n.Seq > after {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Respond answers the active prompt ref with action. The workflow decides
// whether the answer still applies; the console only checks that the prompt
// is active and offers action.
func (c *Console) Respond(ref string, action events.Action, value string) error {
	c.mu.Lock()
	p, ok := c.prompts[ref]
	sub := c.submitter
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrPromptNotFound, ref)
	}
	if !p.Allows(action) {
		return fmt.Errorf("%w: %s is not an option of %s prompt", ErrInvalidAction, action, p.Kind)
	}

	return submit(sub, events.OperatorAction{PromptRef: ref, Action: action, Value: value})
}

// Command issues cancel or retry outside any prompt.
func (c *Console) Command(action events.Action) error {
	if action != events.Cancel && action != events.Retry {
		return fmt.Errorf("%w: %s is not a command", ErrInvalidAction, action)
	}

	c.mu.Lock()
	sub := c.submitter
	c.mu.Unlock()

	return submit(sub, events.OperatorAction{Action: action})
}

func submit(sub events.Submitter, a events.OperatorAction) error {
	if sub == nil || !sub.Submit(a) {
		return ErrUnavailable
	}
	return nil
}

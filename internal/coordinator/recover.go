package coordinator

import (
	"context"
	"fmt"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/record"
)

const recoveryCause = "recovery"

// Recover resumes the persisted cycle after a restart. Approval prompts and
// pending confirmations are issued again; nothing already sent is resent.
// A cycle found in COMPLETE finishes archiving.
func (c *Coordinator) Recover(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := c.rec.Clone()
	c.logger.Info("recovering workflow", "state", tx.State, "cycle", tx.CycleID)

	switch tx.State {
	case record.Idle:
		return nil
	case record.PendingInitApproval:
		tx.Edit = nil
		tx.PendingUIRef = ""
		return c.promptCurrent(ctx, tx, recoveryCause)
	case record.AllDocsReady:
		tx.PendingUIRef = ""
		return c.promptCurrent(ctx, tx, recoveryCause)
	case record.WaitingDocs:
		return c.resumeWaiting(ctx, tx)
	case record.Complete:
		tx.PendingUIRef = ""
		return c.complete(ctx, tx, recoveryCause)
	}
	return fmt.Errorf("unknown state %q", tx.State)
}

func (c *Coordinator) resumeWaiting(ctx context.Context, tx *record.Record) error {
	tx.PendingUIRef = ""

	for _, req := range record.Requirements {
		cand, ok := tx.Pending[req]
		if !ok {
			continue
		}
		ref, err := c.operator.Prompt(ctx, c.confirmPrompt(req, cand))
		if err != nil {
			c.logger.Error("confirmation prompt failed", "requirement", req, "error", err)
		}
		cand.PromptRef = ref
		tx.Pending[req] = cand
	}

	if tx.Ready() {
		ref, err := c.operator.Prompt(ctx, operator.Prompt{
			Kind:    operator.KindRetry,
			Text:    "All documents were received but not merged before the restart. Retry the merge or cancel.",
			Options: []events.Action{events.Retry, events.Cancel},
		})
		if err != nil {
			c.logger.Error("retry prompt failed", "error", err)
		}
		tx.PendingUIRef = ref
	}

	c.logger.Info("resumed waiting",
		"cycle", tx.CycleID,
		"outstanding", tx.Outstanding(),
		"confirmations", len(tx.Pending),
	)
	return c.commit(ctx, tx, recoveryCause, "resumed")
}

package coordinator

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/internal/timeout"
	"github.com/JaimeStill/tally/internal/timesheet"
	"github.com/JaimeStill/tally/pkg/pdf"
)

func stale(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStaleEvent, fmt.Sprintf(format, args...))
}

func (c *Coordinator) handle(ctx context.Context, tx *record.Record, e events.Event) error {
	switch ev := e.(type) {
	case events.NewDocument:
		if tx.State != record.Idle {
			return c.busy(ctx, tx, ev)
		}
		return c.startCycle(ctx, tx, ev)
	case events.InboundMessage:
		if tx.State != record.WaitingDocs {
			return stale("message %s in %s", ev.Message.ID, tx.State)
		}
		return c.receive(ctx, tx, ev)
	case events.OperatorAction:
		return c.act(ctx, tx, ev)
	case events.Tick:
		return c.onTick(ctx, tx, ev)
	default:
		return stale("unknown event %T", e)
	}
}

func (c *Coordinator) act(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	switch tx.State {
	case record.PendingInitApproval:
		return c.actPending(ctx, tx, a)
	case record.WaitingDocs:
		return c.actWaiting(ctx, tx, a)
	case record.AllDocsReady:
		return c.actReady(ctx, tx, a)
	case record.Complete:
		if a.Action == events.Retry && current(tx, a, true) {
			return c.complete(ctx, tx, a.Kind())
		}
	}
	return stale("%s on prompt %q in %s", a.Action, a.PromptRef, tx.State)
}

func (c *Coordinator) onTick(ctx context.Context, tx *record.Record, t events.Tick) error {
	switch {
	case tx.State == record.PendingInitApproval && tx.Edit != nil:
		if t.At.Before(tx.Edit.ExpiresAt) {
			return nil
		}
		return c.endEdit(ctx, tx, t.Kind(), "edit session expired")
	case tx.State == record.WaitingDocs:
		return c.remind(ctx, tx, t)
	}
	return stale("tick in %s", tx.State)
}

// current reports whether a answers the record's active prompt. Commands
// without a prompt ref are accepted when allowEmpty is set.
func current(tx *record.Record, a events.OperatorAction, allowEmpty bool) bool {
	if a.PromptRef == "" {
		return allowEmpty
	}
	return a.PromptRef == tx.PendingUIRef
}

func (c *Coordinator) busy(ctx context.Context, tx *record.Record, e events.NewDocument) error {
	c.operator.Notify(ctx, fmt.Sprintf(
		"New document %s arrived while a cycle is in %s. It was left in place; finish or cancel the current cycle first.",
		filepath.Base(e.Path), tx.State,
	))
	return stale("document %s while %s", e.Path, tx.State)
}

func (c *Coordinator) startCycle(ctx context.Context, tx *record.Record, e events.NewDocument) error {
	name := filepath.Base(e.Path)

	data, err := os.ReadFile(e.Path)
	if err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Could not read %s: %v", name, err))
		return fmt.Errorf("%w: read %s: %w", ErrTransient, name, err)
	}

	info, err := c.extract(data)
	if err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Could not parse timesheet %s: %v", name, err))
		return fmt.Errorf("%w: %s: %w", ErrValidation, name, err)
	}

	cycle := uuid.NewString()
	key := path.Join("cycles", cycle, name)
	if err := c.documents.Store(ctx, key, data, pdf.ContentType); err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Could not store %s: %v", name, err))
		return fmt.Errorf("%w: store %s: %w", ErrTransient, name, err)
	}

	tx.State = record.PendingInitApproval
	tx.CycleID = cycle
	tx.SourceRef = key
	tx.SourceName = name
	tx.Fields = &info

	if err := c.commit(ctx, tx, e.Kind(), name); err != nil {
		return err
	}

	if err := os.Remove(e.Path); err != nil {
		c.logger.Warn("remove source document failed", "path", e.Path, "error", err)
	}

	return c.promptCurrent(ctx, tx, e.Kind())
}

func (c *Coordinator) extract(data []byte) (timesheet.Info, error) {
	if !pdf.IsPDF(data) {
		return timesheet.Info{}, fmt.Errorf("not a pdf document")
	}
	text, err := c.text(data)
	if err != nil {
		return timesheet.Info{}, err
	}
	return timesheet.Parse(text)
}

func (c *Coordinator) validHours(hours int) error {
	if hours < c.cfg.MinHours || hours > c.cfg.MaxHours {
		return fmt.Errorf("hours must be between %d and %d, got %d", c.cfg.MinHours, c.cfg.MaxHours, hours)
	}
	return nil
}

func (c *Coordinator) actPending(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	if tx.Edit != nil && a.PromptRef != "" && a.PromptRef == tx.Edit.PromptRef {
		switch a.Action {
		case events.Edit:
			return c.applyEdit(ctx, tx, a)
		case events.Cancel:
			return c.endEdit(ctx, tx, a.Kind(), "edit cancelled")
		}
		return stale("%s on edit prompt", a.Action)
	}

	onApproval := tx.Edit == nil && current(tx, a, false)

	switch {
	case a.Action == events.Cancel && (a.PromptRef == "" || onApproval):
		return c.cancel(ctx, tx, a.Kind())
	case !onApproval:
		return stale("%s on prompt %q", a.Action, a.PromptRef)
	case a.Action == events.Approve:
		return c.sendRequests(ctx, tx, a)
	case a.Action == events.Edit && a.Value != "":
		return c.applyEdit(ctx, tx, a)
	case a.Action == events.Edit:
		return c.beginEdit(ctx, tx, a)
	}
	return stale("%s on approval prompt", a.Action)
}

func (c *Coordinator) beginEdit(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	c.operator.Retire(ctx, tx.PendingUIRef)
	tx.PendingUIRef = ""

	ref, err := c.operator.Prompt(ctx, c.editPrompt(tx, ""))
	if err != nil {
		return fmt.Errorf("%w: edit prompt: %w", ErrTransient, err)
	}

	tx.PendingUIRef = ref
	tx.Edit = &record.EditSession{
		PromptRef: ref,
		ExpiresAt: c.now().Add(c.cfg.EditTimeout),
	}
	return c.commit(ctx, tx, a.Kind(), "edit started")
}

func (c *Coordinator) applyEdit(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	hours, err := c.parseHours(a.Value)
	if err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Invalid hours %q: %v", a.Value, err))
		if tx.Edit != nil {
			c.operator.Retire(ctx, tx.Edit.PromptRef)
			ref, perr := c.operator.Prompt(ctx, c.editPrompt(tx, err.Error()))
			if perr == nil {
				tx.Edit.PromptRef = ref
				tx.PendingUIRef = ref
				if cerr := c.commit(ctx, tx, a.Kind(), "edit re-prompted"); cerr != nil {
					return cerr
				}
			}
		}
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	edited := tx.Fields.WithHours(hours)
	tx.Fields = &edited
	if tx.Edit != nil {
		c.operator.Retire(ctx, tx.Edit.PromptRef)
		tx.Edit = nil
	}

	c.logger.Info("hours edited", "cycle", tx.CycleID, "hours", hours)
	return c.promptCurrent(ctx, tx, a.Kind())
}

func (c *Coordinator) parseHours(value string) (int, error) {
	hours, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("enter a whole number between %d and %d", c.cfg.MinHours, c.cfg.MaxHours)
	}
	if err := c.validHours(hours); err != nil {
		return 0, err
	}
	return hours, nil
}

func (c *Coordinator) endEdit(ctx context.Context, tx *record.Record, cause, reason string) error {
	c.operator.Retire(ctx, tx.Edit.PromptRef)
	tx.Edit = nil
	tx.PendingUIRef = ""

	c.logger.Info("edit session closed", "cycle", tx.CycleID, "reason", reason)
	return c.promptCurrent(ctx, tx, cause)
}

// sendRequests dispatches the approval and counter-document requests.
// Thread ids are persisted as each send succeeds so a retry after a
// partial failure does not resend.
func (c *Coordinator) sendRequests(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	if tx.Fields == nil || tx.Fields.Month < 1 || tx.Fields.Month > 12 {
		c.operator.Notify(ctx, "Timesheet fields are incomplete; cancel and drop the document again.")
		return fmt.Errorf("%w: incomplete fields", ErrValidation)
	}
	if err := c.validHours(tx.Fields.TotalHours); err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Timesheet fields are invalid: %v", err))
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	for _, req := range record.Requirements {
		if tx.Threads[req] != "" {
			continue
		}

		thread, err := c.transport.Send(ctx, c.request(tx, req))
		if err != nil {
			c.operator.Notify(ctx, fmt.Sprintf(
				"Sending the %s request failed: %v. Approve again to retry or cancel.", req, err,
			))
			return fmt.Errorf("%w: send %s request: %w", ErrTransient, req, err)
		}

		tx.Threads[req] = thread
		if err := c.commit(ctx, tx, a.Kind(), fmt.Sprintf("%s request sent", req)); err != nil {
			return err
		}
	}

	now := c.now()
	c.operator.Retire(ctx, tx.PendingUIRef)
	tx.PendingUIRef = ""
	tx.State = record.WaitingDocs
	tx.WaitingSince = &now
	tx.LastReminderAt = nil

	if err := c.commit(ctx, tx, a.Kind(), "requests sent"); err != nil {
		return err
	}

	c.operator.Notify(ctx, fmt.Sprintf(
		"Requests sent to %s and %s. Waiting for approval and invoice.",
		c.cfg.Manager, c.cfg.Accountant,
	))
	return nil
}

func (c *Coordinator) actWaiting(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	if a.PromptRef != "" {
		if req, cand, ok := tx.PendingFor(a.PromptRef); ok {
			switch a.Action {
			case events.Yes:
				return c.confirm(ctx, tx, req, cand, a)
			case events.No:
				return c.reject(ctx, tx, req, cand, a)
			}
			return stale("%s on confirmation", a.Action)
		}
	}

	switch {
	case a.Action == events.Cancel && current(tx, a, true):
		return c.cancel(ctx, tx, a.Kind())
	case a.Action == events.Retry && current(tx, a, true) && tx.Ready():
		return c.merge(ctx, tx, a.Kind())
	}
	return stale("%s on prompt %q", a.Action, a.PromptRef)
}

func (c *Coordinator) remind(ctx context.Context, tx *record.Record, t events.Tick) error {
	if tx.WaitingSince == nil || tx.Ready() {
		return nil
	}

	verdict := c.cfg.Tracker.Classify(t.At, *tx.WaitingSince, tx.LastReminderAt)
	if verdict == timeout.None {
		return nil
	}

	c.operator.Retire(ctx, tx.PendingUIRef)
	tx.PendingUIRef = ""

	ref, err := c.operator.Prompt(ctx, operator.Prompt{
		Kind:    operator.KindReminder,
		Text:    c.reminderText(tx, t.At),
		Options: []events.Action{events.Cancel},
	})
	if err != nil {
		return fmt.Errorf("%w: reminder: %w", ErrTransient, err)
	}

	at := t.At
	tx.PendingUIRef = ref
	tx.LastReminderAt = &at

	c.logger.Info("reminder sent", "cycle", tx.CycleID, "kind", verdict)
	return c.commit(ctx, tx, t.Kind(), verdict.String())
}

func (c *Coordinator) actReady(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	switch {
	case a.Action == events.Cancel && current(tx, a, true):
		return c.cancel(ctx, tx, a.Kind())
	case a.Action == events.Approve && current(tx, a, false):
		return c.sendFinal(ctx, tx, a)
	}
	return stale("%s on prompt %q", a.Action, a.PromptRef)
}

func (c *Coordinator) sendFinal(ctx context.Context, tx *record.Record, a events.OperatorAction) error {
	if _, err := c.transport.Send(ctx, c.finalReply(tx)); err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Sending the final reply failed: %v. Approve again to retry or cancel.", err))
		return fmt.Errorf("%w: send final reply: %w", ErrTransient, err)
	}

	c.operator.Retire(ctx, tx.PendingUIRef)
	tx.PendingUIRef = ""
	tx.State = record.Complete

	if err := c.commit(ctx, tx, a.Kind(), "final reply sent"); err != nil {
		return err
	}
	c.operator.Notify(ctx, "Final reply sent to "+c.cfg.Manager+".")

	return c.complete(ctx, tx, a.Kind())
}

// complete archives the cycle under its billing month and returns to IDLE.
func (c *Coordinator) complete(ctx context.Context, tx *record.Record, cause string) error {
	folder := tx.CycleID
	if tx.Fields != nil {
		folder = tx.Fields.ArchiveFolder()
	}

	if err := c.documents.Archive(ctx, folder, tx.Keys()); err != nil {
		c.operator.Retire(ctx, tx.PendingUIRef)
		tx.PendingUIRef = ""
		ref, perr := c.operator.Prompt(ctx, operator.Prompt{
			Kind:    operator.KindRetry,
			Text:    fmt.Sprintf("Archiving the completed cycle failed: %v", err),
			Options: []events.Action{events.Retry},
		})
		if perr == nil {
			tx.PendingUIRef = ref
		}
		if cerr := c.commit(ctx, tx, cause, "archive failed"); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w: archive: %w", ErrTransient, err)
	}

	c.retireAll(ctx, tx)
	tx.Reset()
	if err := c.commit(ctx, tx, cause, "archived to "+folder); err != nil {
		return err
	}

	c.operator.Notify(ctx, fmt.Sprintf("Cycle complete. Documents archived to %s.", folder))
	return nil
}

// cancel archives every document of the cycle as cancelled and returns to
// IDLE.
func (c *Coordinator) cancel(ctx context.Context, tx *record.Record, cause string) error {
	folder := path.Join("cancelled", c.now().Format("20060102_150405"))

	if err := c.documents.Archive(ctx, folder, tx.Keys()); err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Cancelling failed while archiving: %v. Try again.", err))
		return fmt.Errorf("%w: archive cancelled cycle: %w", ErrTransient, err)
	}

	c.retireAll(ctx, tx)
	tx.Reset()
	if err := c.commit(ctx, tx, cause, "cancelled to "+folder); err != nil {
		return err
	}

	c.operator.Notify(ctx, fmt.Sprintf("Cycle cancelled. Documents archived to %s.", folder))
	return nil
}

func (c *Coordinator) retireAll(ctx context.Context, tx *record.Record) {
	if tx.PendingUIRef != "" {
		c.operator.Retire(ctx, tx.PendingUIRef)
	}
	if tx.Edit != nil && tx.Edit.PromptRef != tx.PendingUIRef {
		c.operator.Retire(ctx, tx.Edit.PromptRef)
	}
	for _, cand := range tx.Pending {
		if cand.PromptRef != "" {
			c.operator.Retire(ctx, cand.PromptRef)
		}
	}
}

// promptCurrent issues the interactive prompt for PENDING_INIT_APPROVAL or
// ALL_DOCS_READY, replacing any prompt already shown, and persists its ref.
func (c *Coordinator) promptCurrent(ctx context.Context, tx *record.Record, cause string) error {
	if tx.PendingUIRef != "" {
		c.operator.Retire(ctx, tx.PendingUIRef)
		tx.PendingUIRef = ""
	}

	var p operator.Prompt
	switch tx.State {
	case record.PendingInitApproval:
		p = operator.Prompt{
			Kind:    operator.KindApproval,
			Text:    c.approvalText(tx),
			Options: []events.Action{events.Approve, events.Edit, events.Cancel},
		}
	case record.AllDocsReady:
		p = operator.Prompt{
			Kind:    operator.KindFinal,
			Text:    c.finalText(tx),
			Options: []events.Action{events.Approve, events.Cancel},
		}
	default:
		return nil
	}

	ref, err := c.operator.Prompt(ctx, p)
	if err != nil {
		c.logger.Error("prompt failed", "kind", p.Kind, "error", err)
		if cerr := c.commit(ctx, tx, cause, "prompt failed"); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w: prompt: %w", ErrTransient, err)
	}

	tx.PendingUIRef = ref
	return c.commit(ctx, tx, cause, string(p.Kind)+" prompt")
}

func (c *Coordinator) editPrompt(tx *record.Record, problem string) operator.Prompt {
	text := fmt.Sprintf("Enter total hours (currently %d, allowed %d-%d).",
		tx.Fields.TotalHours, c.cfg.MinHours, c.cfg.MaxHours)
	if problem != "" {
		text = problem + ". " + text
	}
	return operator.Prompt{
		Kind:    operator.KindEdit,
		Text:    text,
		Options: []events.Action{events.Edit, events.Cancel},
	}
}

func daysSince(since, now time.Time) int {
	return int(now.Sub(since) / (24 * time.Hour))
}

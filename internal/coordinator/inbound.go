package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/matcher"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/internal/workflow"
	"github.com/JaimeStill/tally/pkg/pdf"
)

const htmlContentType = "text/html; charset=utf-8"

func (c *Coordinator) expect(tx *record.Record, req record.Requirement) matcher.Expectation {
	sender := c.cfg.Manager
	if req == record.CounterDocument {
		sender = c.cfg.Accountant
	}
	return matcher.Expectation{
		Requirement: req,
		Sender:      sender,
		ThreadID:    tx.Threads[req],
	}
}

func (c *Coordinator) receive(ctx context.Context, tx *record.Record, e events.InboundMessage) error {
	msg := e.Message
	cand := matcher.Candidate{
		From:     msg.From,
		ThreadID: msg.ThreadID,
		Body:     messageText(msg),
	}

	var (
		req   record.Requirement
		found bool
	)
	for _, r := range record.Requirements {
		if matcher.Scoped(c.expect(tx, r), cand) {
			req, found = r, true
			break
		}
	}
	if !found {
		return stale("message %s from %s not on an open thread", msg.ID, msg.From)
	}

	if prior, ok := tx.Received[req]; ok && prior.MessageID == msg.ID {
		return fmt.Errorf("%w: %s message %s", ErrDuplicate, req, msg.ID)
	}
	if p, ok := tx.Pending[req]; ok && p.Receipt.MessageID == msg.ID {
		return fmt.Errorf("%w: %s message %s awaiting confirmation", ErrDuplicate, req, msg.ID)
	}

	if req == record.CounterDocument {
		cand.Documents = c.loadDocuments(ctx, msg)
	}

	decision, err := c.matcher.Match(ctx, c.expect(tx, req), cand)
	if errors.Is(err, matcher.ErrNotCandidate) {
		return stale("message %s: %v", msg.ID, err)
	}
	if err != nil {
		return err
	}

	if decision.Verdict == matcher.No {
		c.logger.Info("message does not satisfy requirement",
			"requirement", req,
			"message", msg.ID,
			"reason", decision.Reason,
		)
		return nil
	}

	data, name, contentType := content(req, msg, decision)
	digest := contentDigest(data, req, cand.Body)

	if prior, ok := tx.Received[req]; ok && prior.Digest == digest {
		return fmt.Errorf("%w: %s content unchanged", ErrDuplicate, req)
	}
	if p, ok := tx.Pending[req]; ok && p.Receipt.Digest == digest {
		return fmt.Errorf("%w: %s content already awaiting confirmation", ErrDuplicate, req)
	}

	key := path.Join("cycles", tx.CycleID, fmt.Sprintf(name, digest[:8]))
	if err := c.documents.Store(ctx, key, data, contentType); err != nil {
		c.operator.Notify(ctx, fmt.Sprintf("Could not store the %s from %s: %v", req, msg.From, err))
		return fmt.Errorf("%w: store %s: %w", ErrTransient, req, err)
	}

	receipt := record.Receipt{
		Key:        key,
		MessageID:  msg.ID,
		Digest:     digest,
		Sender:     msg.From,
		Subject:    msg.Subject,
		ReceivedAt: msg.ReceivedAt,
	}
	if receipt.ReceivedAt.IsZero() {
		receipt.ReceivedAt = c.now()
	}

	switch {
	case tx.Flags[req]:
		return c.ask(ctx, tx, req, record.Candidate{
			Receipt: receipt,
			Reason:  "a different " + string(req) + " arrived after one was accepted",
			Replace: true,
		}, e.Kind())
	case decision.Verdict == matcher.Uncertain:
		return c.ask(ctx, tx, req, record.Candidate{
			Receipt: receipt,
			Reason:  decision.Reason,
		}, e.Kind())
	}

	return c.satisfy(ctx, tx, req, receipt, e.Kind())
}

func content(req record.Requirement, msg events.Message, d matcher.Decision) ([]byte, string, string) {
	if req == record.CounterDocument && d.Document != nil {
		return d.Document.Data, "invoice-%s.pdf", pdf.ContentType
	}
	return []byte(replyHTML(msg)), "approval-%s.html", htmlContentType
}

func contentDigest(data []byte, req record.Requirement, body string) string {
	h := sha256.New()
	if req == record.Approval {
		h.Write([]byte(strings.Join(strings.Fields(body), " ")))
	} else {
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Coordinator) loadDocuments(ctx context.Context, msg events.Message) []matcher.Document {
	var docs []matcher.Document
	for _, att := range msg.Attachments {
		if !isPDFAttachment(att) {
			continue
		}

		data, err := c.documents.Read(ctx, att.Key)
		if err != nil {
			c.logger.Warn("read attachment failed", "message", msg.ID, "key", att.Key, "error", err)
			continue
		}
		if !pdf.IsPDF(data) {
			continue
		}

		text, err := c.text(data)
		if err != nil {
			c.logger.Debug("attachment text unavailable", "key", att.Key, "error", err)
		}

		docs = append(docs, matcher.Document{
			Name: att.Name,
			Key:  att.Key,
			Data: data,
			Text: text,
		})
	}
	return docs
}

func isPDFAttachment(att events.Attachment) bool {
	return strings.HasPrefix(att.ContentType, pdf.ContentType) ||
		strings.EqualFold(path.Ext(att.Name), ".pdf")
}

func messageText(msg events.Message) string {
	if strings.TrimSpace(msg.Text) != "" || msg.HTML == "" {
		return msg.Text
	}
	text, err := pdf.HTMLText(strings.NewReader(msg.HTML))
	if err != nil {
		return ""
	}
	return text
}

// ask records a candidate that needs an operator yes/no. A newer candidate
// for the same requirement replaces an older one.
func (c *Coordinator) ask(ctx context.Context, tx *record.Record, req record.Requirement, cand record.Candidate, cause string) error {
	if old, ok := tx.Pending[req]; ok {
		c.dropCandidate(ctx, old)
	}

	ref, err := c.operator.Prompt(ctx, c.confirmPrompt(req, cand))
	if err != nil {
		c.logger.Error("confirmation prompt failed", "requirement", req, "error", err)
	}

	cand.PromptRef = ref
	tx.Pending[req] = cand

	c.logger.Info("requirement needs confirmation",
		"requirement", req,
		"message", cand.Receipt.MessageID,
		"replace", cand.Replace,
	)
	return c.commit(ctx, tx, cause, string(req)+" awaiting confirmation")
}

func (c *Coordinator) confirmPrompt(req record.Requirement, cand record.Candidate) operator.Prompt {
	from := cand.Receipt.Sender
	if subject := cand.Receipt.Subject; subject != "" {
		from = fmt.Sprintf("%s (%q)", from, subject)
	}

	if cand.Replace {
		return operator.Prompt{
			Kind:    operator.KindReplace,
			Text:    fmt.Sprintf("A different %s arrived from %s. Replace the one already accepted?", req, from),
			Options: []events.Action{events.Yes, events.No},
		}
	}
	return operator.Prompt{
		Kind: operator.KindConfirm,
		Text: fmt.Sprintf("Could not confirm that the reply from %s is the %s: %s. Accept it?",
			from, req, cand.Reason),
		Options: []events.Action{events.Yes, events.No},
	}
}

func (c *Coordinator) dropCandidate(ctx context.Context, cand record.Candidate) {
	if cand.PromptRef != "" {
		c.operator.Retire(ctx, cand.PromptRef)
	}
	if err := c.documents.Remove(ctx, cand.Receipt.Key); err != nil {
		c.logger.Warn("remove candidate document failed", "key", cand.Receipt.Key, "error", err)
	}
}

func (c *Coordinator) confirm(ctx context.Context, tx *record.Record, req record.Requirement, cand record.Candidate, a events.OperatorAction) error {
	c.operator.Retire(ctx, cand.PromptRef)
	delete(tx.Pending, req)
	return c.satisfy(ctx, tx, req, cand.Receipt, a.Kind())
}

func (c *Coordinator) reject(ctx context.Context, tx *record.Record, req record.Requirement, cand record.Candidate, a events.OperatorAction) error {
	c.dropCandidate(ctx, cand)
	delete(tx.Pending, req)

	c.logger.Info("candidate rejected", "requirement", req, "message", cand.Receipt.MessageID)
	return c.commit(ctx, tx, a.Kind(), string(req)+" candidate rejected")
}

// satisfy accepts receipt for req. Once every requirement is satisfied the
// documents are merged.
func (c *Coordinator) satisfy(ctx context.Context, tx *record.Record, req record.Requirement, receipt record.Receipt, cause string) error {
	if old, ok := tx.Received[req]; ok && old.Key != receipt.Key {
		if err := c.documents.Remove(ctx, old.Key); err != nil {
			c.logger.Warn("remove replaced document failed", "key", old.Key, "error", err)
		}
	}
	if p, ok := tx.Pending[req]; ok {
		c.dropCandidate(ctx, p)
		delete(tx.Pending, req)
	}

	tx.Received[req] = receipt
	tx.Flags[req] = true

	if err := c.commit(ctx, tx, cause, string(req)+" received"); err != nil {
		return err
	}
	c.operator.Notify(ctx, fmt.Sprintf("%s received from %s.", label(req), receipt.Sender))

	if !tx.Ready() {
		return nil
	}
	return c.merge(ctx, tx, cause)
}

// merge assembles the invoice, the timesheet and the approval reply, in that
// order, and asks for final approval.
func (c *Coordinator) merge(ctx context.Context, tx *record.Record, cause string) error {
	out := path.Join("cycles", tx.CycleID, mergedName(tx))

	key, err := c.assembler.Assemble(ctx, workflow.Request{
		CycleID: tx.CycleID,
		Parts: []workflow.Part{
			{Key: tx.Received[record.CounterDocument].Key, Kind: workflow.PartPDF},
			{Key: tx.SourceRef, Kind: workflow.PartPDF},
			{Key: tx.Received[record.Approval].Key, Kind: workflow.PartHTML},
		},
		Output: out,
	})
	if err != nil {
		c.operator.Retire(ctx, tx.PendingUIRef)
		tx.PendingUIRef = ""
		ref, perr := c.operator.Prompt(ctx, operator.Prompt{
			Kind:    operator.KindRetry,
			Text:    fmt.Sprintf("Merging documents failed: %v", err),
			Options: []events.Action{events.Retry, events.Cancel},
		})
		if perr == nil {
			tx.PendingUIRef = ref
		}
		if cerr := c.commit(ctx, tx, cause, "merge failed"); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w: merge: %w", ErrTransient, err)
	}

	for _, req := range record.Requirements {
		if cand, ok := tx.Pending[req]; ok {
			c.dropCandidate(ctx, cand)
			delete(tx.Pending, req)
			c.logger.Info("candidate dropped at merge", "requirement", req, "message", cand.Receipt.MessageID)
		}
	}

	c.operator.Retire(ctx, tx.PendingUIRef)
	tx.PendingUIRef = ""
	tx.MergedRef = key
	tx.State = record.AllDocsReady
	tx.WaitingSince = nil
	tx.LastReminderAt = nil

	if err := c.commit(ctx, tx, cause, "documents merged"); err != nil {
		return err
	}
	return c.promptCurrent(ctx, tx, cause)
}

func mergedName(tx *record.Record) string {
	if tx.Fields == nil {
		return "merged.pdf"
	}
	return fmt.Sprintf("merged_%02d_%d.pdf", tx.Fields.Month, tx.Fields.Year)
}

func label(req record.Requirement) string {
	switch req {
	case record.Approval:
		return "Approval"
	case record.CounterDocument:
		return "Invoice"
	}
	return string(req)
}

package coordinator

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/mailbox"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/pkg/pdf"
)

const (
	managerBody = "Ahoj, v prilohe worklog na schvalenie"
	finalBody   = "V prílohe."
)

func (c *Coordinator) managerSubject(tx *record.Record) string {
	return fmt.Sprintf("%s faktura %s", c.cfg.Company, tx.Fields.Period())
}

// request builds the outbound message that opens the thread for req.
func (c *Coordinator) request(tx *record.Record, req record.Requirement) mailbox.Outbound {
	info := tx.Fields

	if req == record.Approval {
		out := mailbox.Outbound{
			To:      []string{c.cfg.Manager},
			Subject: c.managerSubject(tx),
			Body:    managerBody,
			Attachments: []events.Attachment{{
				Name:        tx.SourceName,
				ContentType: pdf.ContentType,
				Key:         tx.SourceRef,
			}},
		}
		if c.cfg.Invoicing != "" {
			out.Cc = []string{c.cfg.Invoicing}
		}
		return out
	}

	var body strings.Builder
	fmt.Fprintf(&body, "za %s prosim takto:\n", info.MonthName())
	fmt.Fprintf(&body, "%d*%d=%d bez DPH\n\n", info.TotalHours, c.cfg.HourlyRate, info.Amount(c.cfg.HourlyRate))
	fmt.Fprintf(&body, "navrh soft. arch. pre nav. aplikaciu - %dh\n", info.ArchHours())
	fmt.Fprintf(&body, "testovanie navigačnej apl. počas jazdy - %dh", info.TestHours())

	return mailbox.Outbound{
		To:      []string{c.cfg.Accountant},
		Subject: fmt.Sprintf("%s - podklady ku vystaveniu faktur %s", c.cfg.Company, info.Period()),
		Body:    body.String(),
	}
}

// finalReply answers the approval thread with the merged document.
func (c *Coordinator) finalReply(tx *record.Record) mailbox.Outbound {
	return mailbox.Outbound{
		To:       []string{c.cfg.Manager},
		Subject:  "Re: " + c.managerSubject(tx),
		Body:     finalBody,
		ThreadID: tx.Threads[record.Approval],
		Attachments: []events.Attachment{{
			Name:        mergedName(tx),
			ContentType: pdf.ContentType,
			Key:         tx.MergedRef,
		}},
	}
}

func (c *Coordinator) approvalText(tx *record.Record) string {
	info := tx.Fields
	var b strings.Builder
	fmt.Fprintf(&b, "New timesheet %s\n", tx.SourceName)
	fmt.Fprintf(&b, "Period: %s (%s)\n", info.Period(), info.DateRange)
	fmt.Fprintf(&b, "Total hours: %d\n", info.TotalHours)
	fmt.Fprintf(&b, "Architecture: %dh, testing: %dh\n", info.ArchHours(), info.TestHours())
	fmt.Fprintf(&b, "Amount: %d %s\n\n", info.Amount(c.cfg.HourlyRate), c.cfg.Currency)
	if err := c.validHours(info.TotalHours); err != nil {
		fmt.Fprintf(&b, "Edit the hours before approving: %v.", err)
		return b.String()
	}
	fmt.Fprintf(&b, "Approve to send to %s and %s.", c.cfg.Manager, c.cfg.Accountant)
	return b.String()
}

func (c *Coordinator) finalText(tx *record.Record) string {
	return fmt.Sprintf(
		"All documents for %s are merged into %s. Approve to reply to %s with the merged document.",
		tx.Fields.Period(), mergedName(tx), c.cfg.Manager,
	)
}

func (c *Coordinator) reminderText(tx *record.Record, now time.Time) string {
	var waiting []string
	for _, req := range tx.Outstanding() {
		waiting = append(waiting, fmt.Sprintf("%s from %s", req, c.expect(tx, req).Sender))
	}
	return fmt.Sprintf("Still waiting after %d days for: %s. Cancel the cycle if it should not continue.",
		daysSince(*tx.WaitingSince, now), strings.Join(waiting, ", "))
}

// replyHTML renders a received message with its headers as a standalone
// HTML document. The body is the message's plain text; sender markup is
// never copied through.
func replyHTML(msg events.Message) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"UTF-8\"></head><body>\n")
	fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(msg.Subject))
	fmt.Fprintf(&b, "<div>From: %s</div>\n", html.EscapeString(msg.From))
	if len(msg.To) > 0 {
		fmt.Fprintf(&b, "<div>To: %s</div>\n", html.EscapeString(strings.Join(msg.To, ", ")))
	}
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "<div>Cc: %s</div>\n", html.EscapeString(strings.Join(msg.Cc, ", ")))
	}
	if !msg.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "<div>Date: %s</div>\n", msg.ReceivedAt.Format(time.RFC1123Z))
	}
	b.WriteString("<hr>\n")

	for line := range strings.SplitSeq(messageText(msg), "\n") {
		fmt.Fprintf(&b, "<div>%s</div>\n", html.EscapeString(strings.TrimRight(line, "\r")))
	}

	b.WriteString("\n</body></html>\n")
	return b.String()
}

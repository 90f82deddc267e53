// Package mailbox is the message transport of the workflow. Outbound
// messages are queued in Postgres for an external mail relay to deliver;
// the relay posts received messages back, and a poller feeds them to the
// coordinator in arrival order.
package mailbox

import (
	"strings"
	"time"

	"github.com/JaimeStill/tally/internal/events"
)

// Outbound is a message to deliver. ThreadID is set for replies; a new
// thread is opened otherwise.
type Outbound struct {
	To          []string            `json:"to"`
	Cc          []string            `json:"cc,omitempty"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	ThreadID    string              `json:"thread_id,omitempty"`
	Attachments []events.Attachment `json:"attachments,omitempty"`
}

// Validate reports missing recipients or subject.
func (o Outbound) Validate() error {
	if len(o.To) == 0 {
		return ErrNoRecipient
	}
	for _, addr := range append(append([]string{}, o.To...), o.Cc...) {
		if strings.TrimSpace(addr) == "" {
			return ErrNoRecipient
		}
	}
	if strings.TrimSpace(o.Subject) == "" {
		return ErrNoSubject
	}
	return nil
}

// Status tracks a message through the relay.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusReceived  Status = "received"
	StatusDelivered Status = "delivered"
)

// OutboundMessage is a persisted outbound message.
type OutboundMessage struct {
	Outbound
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// InboundMessage is a received message awaiting or past delivery to the
// coordinator.
type InboundMessage struct {
	events.Message
	Status      Status     `json:"status"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// File is an uploaded attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// AttachmentKey is the storage key of an inbound attachment.
func AttachmentKey(messageID, name string) string {
	return "mailbox/" + messageID + "/" + name
}

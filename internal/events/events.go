// Package events defines the closed set of occurrences that drive the
// workflow and the queue that orders them.
package events

import (
	"fmt"
	"time"
)

// Event is one of NewDocument, InboundMessage, OperatorAction or Tick.
type Event interface {
	Kind() string
	event()
}

// NewDocument reports a stable source document in the watched directory.
type NewDocument struct {
	Path string
}

// InboundMessage carries a received message from the transport. Ack, when
// set, is called once the coordinator is done with the message; handled is
// false when processing failed and the message must be offered again.
type InboundMessage struct {
	Message Message
	Ack     func(handled bool)
}

// Action is an operator decision.
type Action string

const (
	Approve Action = "approve"
	Edit    Action = "edit"
	Cancel  Action = "cancel"
	Retry   Action = "retry"
	Yes     Action = "yes"
	No      Action = "no"
)

// ParseAction validates a raw action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case Approve, Edit, Cancel, Retry, Yes, No:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// OperatorAction is the operator's answer to a prompt. PromptRef names the
// prompt being answered; commands issued outside a prompt leave it empty.
type OperatorAction struct {
	PromptRef string
	Action    Action
	Value     string
}

// Tick is the periodic clock event.
type Tick struct {
	At time.Time
}

func (NewDocument) Kind() string    { return "new_document" }
func (InboundMessage) Kind() string { return "inbound_message" }
func (OperatorAction) Kind() string { return "operator_action" }
func (Tick) Kind() string           { return "tick" }

func (NewDocument) event()    {}
func (InboundMessage) event() {}
func (OperatorAction) event() {}
func (Tick) event()           {}

// Message is a received message as seen by the workflow.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	From        string       `json:"from"`
	To          []string     `json:"to,omitempty"`
	Cc          []string     `json:"cc,omitempty"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
}

// Attachment references a stored message attachment.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
}

// Submitter accepts events for ordered processing.
type Submitter interface {
	Submit(e Event) bool
}

// Package record defines the persisted workflow aggregate and its file store.
package record

import (
	"maps"
	"slices"
	"time"

	"github.com/JaimeStill/tally/internal/timesheet"
)

// State is a workflow state.
type State string

const (
	Idle                State = "IDLE"
	PendingInitApproval State = "PENDING_INIT_APPROVAL"
	WaitingDocs         State = "WAITING_DOCS"
	AllDocsReady        State = "ALL_DOCS_READY"
	Complete            State = "COMPLETE"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case Idle, PendingInitApproval, WaitingDocs, AllDocsReady, Complete:
		return true
	}
	return false
}

// Requirement names one of the replies that must arrive before merging.
type Requirement string

const (
	Approval        Requirement = "approval"
	CounterDocument Requirement = "counter-document"
)

// Requirements lists every requirement in merge-independent order.
var Requirements = []Requirement{Approval, CounterDocument}

// Receipt identifies the stored document that satisfied a requirement.
type Receipt struct {
	Key        string    `json:"key"`
	MessageID  string    `json:"message_id"`
	Digest     string    `json:"digest"`
	Sender     string    `json:"sender,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Candidate is a matched message awaiting an operator yes/no.
type Candidate struct {
	PromptRef string  `json:"prompt_ref"`
	Receipt   Receipt `json:"receipt"`
	Reason    string  `json:"reason,omitempty"`
	// Replace marks a candidate that would overwrite an existing receipt.
	Replace bool `json:"replace,omitempty"`
}

// EditSession tracks an open hours edit.
type EditSession struct {
	PromptRef string    `json:"prompt_ref"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Record is the single workflow aggregate.
type Record struct {
	State          State                     `json:"state"`
	CycleID        string                    `json:"cycle_id,omitempty"`
	SourceRef      string                    `json:"source_document_ref,omitempty"`
	SourceName     string                    `json:"source_name,omitempty"`
	Fields         *timesheet.Info           `json:"extracted_fields,omitempty"`
	Threads        map[Requirement]string    `json:"counterparty_thread_ids"`
	Flags          map[Requirement]bool      `json:"requirement_flags"`
	Received       map[Requirement]Receipt   `json:"received_document_refs"`
	Pending        map[Requirement]Candidate `json:"pending_confirmations"`
	WaitingSince   *time.Time                `json:"waiting_since,omitempty"`
	LastReminderAt *time.Time                `json:"last_reminder_at,omitempty"`
	PendingUIRef   string                    `json:"pending_ui_ref,omitempty"`
	Edit           *EditSession              `json:"edit_session,omitempty"`
	MergedRef      string                    `json:"merged_ref,omitempty"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// New returns an IDLE record.
func New() *Record {
	r := &Record{}
	r.Reset()
	return r
}

// Reset clears every per-cycle field and returns to IDLE.
func (r *Record) Reset() {
	*r = Record{
		State:     Idle,
		Threads:   make(map[Requirement]string),
		Flags:     make(map[Requirement]bool),
		Received:  make(map[Requirement]Receipt),
		Pending:   make(map[Requirement]Candidate),
		UpdatedAt: r.UpdatedAt,
	}
}

// Outstanding lists requirements whose flag is not yet set.
func (r *Record) Outstanding() []Requirement {
	var out []Requirement
	for _, req := range Requirements {
		if !r.Flags[req] {
			out = append(out, req)
		}
	}
	return out
}

// Ready reports whether every requirement has been received.
func (r *Record) Ready() bool {
	return len(r.Outstanding()) == 0
}

// PendingFor returns the requirement whose confirmation prompt is ref.
func (r *Record) PendingFor(ref string) (Requirement, Candidate, bool) {
	for _, req := range Requirements {
		if c, ok := r.Pending[req]; ok && c.PromptRef == ref {
			return req, c, true
		}
	}
	return "", Candidate{}, false
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Threads = maps.Clone(r.Threads)
	c.Flags = maps.Clone(r.Flags)
	c.Received = maps.Clone(r.Received)
	c.Pending = maps.Clone(r.Pending)
	if r.Fields != nil {
		f := *r.Fields
		c.Fields = &f
	}
	if r.WaitingSince != nil {
		t := *r.WaitingSince
		c.WaitingSince = &t
	}
	if r.LastReminderAt != nil {
		t := *r.LastReminderAt
		c.LastReminderAt = &t
	}
	if r.Edit != nil {
		e := *r.Edit
		c.Edit = &e
	}
	return &c
}

// Keys lists every stored document key held by the current cycle.
func (r *Record) Keys() []string {
	var keys []string
	add := func(k string) {
		if k != "" && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	add(r.SourceRef)
	for _, req := range Requirements {
		add(r.Received[req].Key)
	}
	for _, req := range Requirements {
		add(r.Pending[req].Receipt.Key)
	}
	add(r.MergedRef)
	return keys
}

func (r *Record) normalize() {
	if r.Threads == nil {
		r.Threads = make(map[Requirement]string)
	}
	if r.Flags == nil {
		r.Flags = make(map[Requirement]bool)
	}
	if r.Received == nil {
		r.Received = make(map[Requirement]Receipt)
	}
	if r.Pending == nil {
		r.Pending = make(map[Requirement]Candidate)
	}
}

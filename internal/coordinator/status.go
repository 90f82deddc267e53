package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/internal/timesheet"
)

// RequirementStatus is the position of one requirement.
type RequirementStatus struct {
	Requirement record.Requirement `json:"requirement"`
	Party       string             `json:"party"`
	ThreadID    string             `json:"thread_id,omitempty"`
	Received    bool               `json:"received"`
	Confirming  bool               `json:"awaiting_confirmation"`
}

// Status is a read-only view of the workflow.
type Status struct {
	State        record.State         `json:"state"`
	CycleID      string               `json:"cycle_id,omitempty"`
	Source       string               `json:"source,omitempty"`
	Fields       *timesheet.Info      `json:"fields,omitempty"`
	Requirements []RequirementStatus  `json:"requirements"`
	Outstanding  []record.Requirement `json:"outstanding"`
	WaitingSince *time.Time           `json:"waiting_since,omitempty"`
	PromptRef    string               `json:"prompt_ref,omitempty"`
	Editing      bool                 `json:"editing"`
	Merged       string               `json:"merged,omitempty"`
	Queued       int                  `json:"queued"`
}

func newStatus(r *record.Record, cfg Config, queued int) Status {
	s := Status{
		State:        r.State,
		CycleID:      r.CycleID,
		Source:       r.SourceName,
		WaitingSince: r.WaitingSince,
		PromptRef:    r.PendingUIRef,
		Editing:      r.Edit != nil,
		Merged:       r.MergedRef,
		Queued:       queued,
	}
	if r.Fields != nil {
		f := *r.Fields
		s.Fields = &f
	}

	if r.State != record.Idle && r.State != record.PendingInitApproval {
		s.Outstanding = r.Outstanding()
	}

	for _, req := range record.Requirements {
		party := cfg.Manager
		if req == record.CounterDocument {
			party = cfg.Accountant
		}
		_, confirming := r.Pending[req]
		s.Requirements = append(s.Requirements, RequirementStatus{
			Requirement: req,
			Party:       party,
			ThreadID:    r.Threads[req],
			Received:    r.Flags[req],
			Confirming:  confirming,
		})
	}

	return s
}

// Report formats s for a terminal or chat.
func (s Status) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", s.State)

	if s.State == record.Idle {
		b.WriteString("Waiting for a new timesheet.\n")
		return b.String()
	}

	if s.Fields != nil {
		fmt.Fprintf(&b, "Period: %s, %d hours\n", s.Fields.Period(), s.Fields.TotalHours)
	}
	if s.WaitingSince != nil {
		fmt.Fprintf(&b, "Waiting since: %s\n", s.WaitingSince.Format("2006-01-02 15:04"))
	}

	for _, r := range s.Requirements {
		mark := "[ ]"
		switch {
		case r.Received:
			mark = "[x]"
		case r.Confirming:
			mark = "[?]"
		}
		thread := r.ThreadID
		if thread == "" {
			thread = "not sent"
		}
		fmt.Fprintf(&b, "%s %s from %s (thread %s)\n", mark, r.Requirement, r.Party, thread)
	}

	if s.Editing {
		b.WriteString("Hours edit in progress.\n")
	}
	if s.PromptRef != "" {
		fmt.Fprintf(&b, "Open prompt: %s\n", s.PromptRef)
	}
	return b.String()
}

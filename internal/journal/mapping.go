package journal

import (
	"net/url"
	"time"

	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "transitions", "t").
	Project("id", "ID").
	Project("cycle_id", "CycleID").
	Project("event", "Event").
	Project("from_state", "FromState").
	Project("to_state", "ToState").
	Project("detail", "Detail").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for transition queries.
type Filters struct {
	CycleID   *string `json:"cycle_id,omitempty"`
	Event     *string `json:"event,omitempty"`
	FromState *string `json:"from_state,omitempty"`
	ToState   *string    `json:"to_state,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("CycleID", f.CycleID).
		WhereEquals("Event", f.Event).
		WhereEquals("FromState", f.FromState).
		WhereEquals("ToState", f.ToState).
		WhereAtLeast("CreatedAt", f.Since)
}

// FiltersFromQuery extracts filter values from URL query parameters. An
// unparsable since is ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("cycle_id"); c != "" {
		f.CycleID = &c
	}
	if e := values.Get("event"); e != "" {
		f.Event = &e
	}
	if s := values.Get("from_state"); s != "" {
		f.FromState = &s
	}
	if s := values.Get("to_state"); s != "" {
		f.ToState = &s
	}
	if s := values.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			f.Since = &t
		}
	}

	return f
}

func scanTransition(s repository.Scanner) (Transition, error) {
	var t Transition
	err := s.Scan(
		&t.ID,
		&t.CycleID,
		&t.Event,
		&t.FromState,
		&t.ToState,
		&t.Detail,
		&t.CreatedAt,
	)
	return t, err
}

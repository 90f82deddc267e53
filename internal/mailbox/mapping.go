package mailbox

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

var outboundProjection = query.
	NewProjectionMap("public", "outbound_messages", "o").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("recipients", "To").
	Project("cc", "Cc").
	Project("subject", "Subject").
	Project("body", "Body").
	Project("attachments", "Attachments").
	Project("status", "Status").
	Project("created_at", "CreatedAt").
	Project("sent_at", "SentAt")

var outboundSort = query.SortField{Field: "CreatedAt"}

var inboundProjection = query.
	NewProjectionMap("public", "inbound_messages", "i").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("sender", "From").
	Project("subject", "Subject").
	Project("payload", "Payload").
	Project("status", "Status").
	Project("received_at", "ReceivedAt").
	Project("delivered_at", "DeliveredAt")

var inboundSort = query.SortField{Field: "ReceivedAt"}

// Filters narrows message listings.
type Filters struct {
	Status   *Status `json:"status,omitempty"`
	ThreadID *string `json:"thread_id,omitempty"`
	Subject  *string `json:"subject,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("ThreadID", f.ThreadID).
		WhereContains("Subject", f.Subject)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		status := Status(s)
		f.Status = &status
	}
	if t := values.Get("thread_id"); t != "" {
		f.ThreadID = &t
	}
	if s := values.Get("subject"); s != "" {
		f.Subject = &s
	}

	return f
}

func scanOutbound(s repository.Scanner) (OutboundMessage, error) {
	var (
		m                   OutboundMessage
		to, cc, attachments []byte
	)
	err := s.Scan(
		&m.ID,
		&m.ThreadID,
		&to,
		&cc,
		&m.Subject,
		&m.Body,
		&attachments,
		&m.Status,
		&m.CreatedAt,
		&m.SentAt,
	)
	if err != nil {
		return m, err
	}

	if err := decodeColumns(
		column{"recipients", to, &m.To},
		column{"cc", cc, &m.Cc},
		column{"attachments", attachments, &m.Attachments},
	); err != nil {
		return m, err
	}
	return m, nil
}

func scanInbound(s repository.Scanner) (InboundMessage, error) {
	var (
		m       InboundMessage
		payload []byte
	)
	err := s.Scan(
		&m.ID,
		&m.ThreadID,
		&m.From,
		&m.Subject,
		&payload,
		&m.Status,
		&m.ReceivedAt,
		&m.DeliveredAt,
	)
	if err != nil {
		return m, err
	}

	id, thread, received := m.ID, m.ThreadID, m.ReceivedAt
	if err := json.Unmarshal(payload, &m.Message); err != nil {
		return m, fmt.Errorf("decode payload: %w", err)
	}
	m.ID, m.ThreadID, m.ReceivedAt = id, thread, received

	return m, nil
}

type column struct {
	name string
	data []byte
	dst  any
}

func decodeColumns(cols ...column) error {
	for _, c := range cols {
		if len(c.data) == 0 {
			continue
		}
		if err := json.Unmarshal(c.data, c.dst); err != nil {
			return fmt.Errorf("decode %s: %w", c.name, err)
		}
	}
	return nil
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}

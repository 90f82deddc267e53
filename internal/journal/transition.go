// Package journal is the append-only audit of workflow state transitions.
package journal

import (
	"time"

	"github.com/google/uuid"
)

// Transition is one audited workflow state change.
type Transition struct {
	ID        uuid.UUID `json:"id"`
	CycleID   string    `json:"cycle_id"`
	Event     string    `json:"event"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

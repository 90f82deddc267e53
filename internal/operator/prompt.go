package operator

import (
	"slices"
	"time"

	"github.com/JaimeStill/tally/internal/events"
)

// Kind classifies a prompt.
type Kind string

const (
	KindApproval Kind = "approval"
	KindEdit     Kind = "edit"
	KindConfirm  Kind = "confirm"
	KindReplace  Kind = "replace"
	KindFinal    Kind = "final"
	KindReminder Kind = "reminder"
	KindRetry    Kind = "retry"
)

// Prompt is an interactive question awaiting an operator decision.
type Prompt struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Text      string          `json:"text"`
	Options   []events.Action `json:"options"`
	CreatedAt time.Time       `json:"created_at"`
}

// Allows reports whether action answers p.
func (p Prompt) Allows(action events.Action) bool {
	return slices.Contains(p.Options, action)
}

// Notice is a one-way message to the operator.
type Notice struct {
	Seq  int64     `json:"seq"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

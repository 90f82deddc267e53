package workflow

import (
	"fmt"
	"time"
)

// State bag keys.
const (
	KeyRequest = "request"
	KeyParts   = "parts"
	KeyMerged  = "merged"
)

// PartKind tells the graph how to turn a stored part into PDF pages.
type PartKind string

const (
	// PartPDF parts are merged as they are.
	PartPDF PartKind = "pdf"
	// PartHTML parts are converted to text and rendered onto A4 pages.
	PartHTML PartKind = "html"
)

// Part is one stored document to include in the merge.
type Part struct {
	Key  string   `json:"key"`
	Kind PartKind `json:"kind"`
}

// Request describes one assembly: parts in merge order and the key the
// result is stored under.
type Request struct {
	CycleID string `json:"cycle_id"`
	Parts   []Part `json:"parts"`
	Output  string `json:"output"`
}

// Validate checks that the request names an output and at least one part of
// a known kind.
func (r Request) Validate() error {
	if r.Output == "" {
		return fmt.Errorf("%w: output key required", ErrInvalidRequest)
	}
	if len(r.Parts) == 0 {
		return fmt.Errorf("%w: no parts", ErrInvalidRequest)
	}
	for i, p := range r.Parts {
		if p.Key == "" {
			return fmt.Errorf("%w: part %d has no key", ErrInvalidRequest, i+1)
		}
		switch p.Kind {
		case PartPDF, PartHTML:
		default:
			return fmt.Errorf("%w: part %d has unknown kind %q", ErrInvalidRequest, i+1, p.Kind)
		}
	}
	return nil
}

// Result is the outcome of a completed assembly.
type Result struct {
	CycleID     string    `json:"cycle_id"`
	Output      string    `json:"output"`
	Parts       int       `json:"parts"`
	SizeBytes   int       `json:"size_bytes"`
	CompletedAt time.Time `json:"completed_at"`
}

// partData carries a part through the graph. Data holds the PDF bytes once
// the render node has run.
type partData struct {
	Part
	Data []byte
}

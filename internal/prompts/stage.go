package prompts

import (
	"encoding/json"
	"slices"
)

// Stage is the question a prompt is used for.
type Stage string

const (
	// StageApproval asks whether a reply approves the timesheet.
	StageApproval Stage = "approval"
	// StageInvoice asks whether a document is an invoice.
	StageInvoice Stage = "invoice"
)

// Builtin is the text shipped for a stage. Instructions may be overridden;
// Format may not, because the classifier parses replies against it.
type Builtin struct {
	Instructions string
	Format       string
}

var builtins = map[Stage]Builtin{
	StageApproval: {
		Instructions: `Analyze the following email and determine if it is approving a timesheet or invoice submission.

Consider these as approval indicators:
- Words like "approved", "accepted", "ok", "agreed", "confirmed"
- Slovak words like "schvalene", "schvalujem", "suhlasim", "v poriadku"
- Positive acknowledgment of timesheet or invoice receipt

Consider these as non-approval indicators:
- Questions or requests for changes
- Rejections or denials
- Unrelated emails`,
		Format: `Answer with a JSON object in this exact format:

{"is_approval": true, "confidence": 0.0, "reason": "<brief explanation>"}

- is_approval: true only when the email approves the submission
- confidence: 0.0 to 1.0
- reason: one sentence

Respond ONLY with the JSON object, no markdown fencing and no other text.`,
	},
	StageInvoice: {
		Instructions: `Analyze the following document and determine if it is an invoice.

Look for these invoice indicators:
- Invoice number or a "Faktura" / "Invoice" header
- Line items with prices
- Total amount due
- Business or company information
- Date and payment terms`,
		Format: `Answer with a JSON object in this exact format:

{"is_invoice": true, "invoice_number": null, "total_amount": null, "currency": null, "confidence": 0.0, "reason": "<brief explanation>"}

- invoice_number: string, or null when not found
- total_amount: number, or null when not found
- currency: ISO code, or null when not found
- confidence: 0.0 to 1.0

Respond ONLY with the JSON object, no markdown fencing and no other text.`,
	},
}

// Stages returns the known classifier stages in a stable order.
func Stages() []Stage {
	return []Stage{StageApproval, StageInvoice}
}

// ParseStage validates s as a known stage.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(Stages(), v) {
		return "", ErrInvalidStage
	}
	return v, nil
}

// UnmarshalJSON rejects unknown stage values.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Default returns the built-in text for stage.
func Default(stage Stage) (Builtin, error) {
	b, ok := builtins[stage]
	if !ok {
		return Builtin{}, ErrInvalidStage
	}
	return b, nil
}

// Resolve returns stage's built-in text as a Resolved with no override.
func Resolve(stage Stage) (Resolved, error) {
	b, err := Default(stage)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{
		Stage:        stage,
		Instructions: b.Instructions,
		Format:       b.Format,
	}, nil
}

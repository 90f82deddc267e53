// Package classifier answers the matcher's inconclusive questions with a
// language model: whether a reply approves the timesheet and whether a
// document is an invoice.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/tally/internal/matcher"
	"github.com/JaimeStill/tally/internal/prompts"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/pkg/formatting"
	"github.com/JaimeStill/tally/pkg/pdf"
)

// Limits applied when composing prompts.
const (
	DefaultMaxText  = 4000
	DefaultMaxPages = 2
)

var (
	ErrUnsupported = errors.New("unsupported requirement")
	ErrModel       = errors.New("model call failed")
	ErrResponse    = errors.New("unparseable model response")
	ErrNoContent   = errors.New("nothing to classify")
)

// Model is the subset of a go-agents agent the classifier uses.
type Model interface {
	Chat(ctx context.Context, prompt string) (string, error)
	Vision(ctx context.Context, prompt string, images []string) (string, error)
}

// Instructions resolves the per-stage prompt text. prompts.System
// satisfies it.
type Instructions interface {
	Resolve(ctx context.Context, stage prompts.Stage) (prompts.Resolved, error)
}

// Rasterizer renders up to maxPages pages of a PDF to image data URIs.
type Rasterizer func(ctx context.Context, data []byte, maxPages int) ([]string, error)

// Config bounds the content sent to the model.
type Config struct {
	MaxText  int
	MaxPages int
}

// Classifier implements matcher.Classifier.
type Classifier struct {
	cfg          Config
	model        Model
	instructions Instructions
	rasterize    Rasterizer
	logger       *slog.Logger
}

// New creates a classifier over model. A nil instructions source uses the
// built-in prompts; a nil rasterizer disables the vision fallback for
// scanned documents.
func New(cfg Config, model Model, instructions Instructions, rasterize Rasterizer, logger *slog.Logger) *Classifier {
	if cfg.MaxText <= 0 {
		cfg.MaxText = DefaultMaxText
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if instructions == nil {
		instructions = builtins{}
	}
	return &Classifier{
		cfg:          cfg,
		model:        model,
		instructions: instructions,
		rasterize:    rasterize,
		logger:       logger.With("system", "classifier"),
	}
}

// NewAgent creates a classifier backed by a go-agents agent that renders
// scanned documents with document-context.
func NewAgent(cfg Config, agentCfg *gaconfig.AgentConfig, instructions Instructions, logger *slog.Logger) (*Classifier, error) {
	a, err := agent.New(agentCfg)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return New(cfg, agentModel{a}, instructions, RenderPages, logger), nil
}

// Classify implements matcher.Classifier.
func (c *Classifier) Classify(ctx context.Context, q matcher.Question) (matcher.Result, error) {
	switch q.Requirement {
	case record.Approval:
		return c.approval(ctx, q.Text)
	case record.CounterDocument:
		return c.invoice(ctx, q.Text, q.Document)
	}
	return matcher.Result{}, fmt.Errorf("%w: %s", ErrUnsupported, q.Requirement)
}

type approvalResponse struct {
	IsApproval bool    `json:"is_approval"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type invoiceResponse struct {
	IsInvoice     bool     `json:"is_invoice"`
	InvoiceNumber *string  `json:"invoice_number"`
	TotalAmount   *float64 `json:"total_amount"`
	Currency      *string  `json:"currency"`
	Confidence    float64  `json:"confidence"`
	Reason        string   `json:"reason"`
}

func (c *Classifier) approval(ctx context.Context, text string) (matcher.Result, error) {
	if strings.TrimSpace(text) == "" {
		return matcher.Result{}, ErrNoContent
	}

	prompt, err := c.compose(ctx, prompts.StageApproval, "Email content", text)
	if err != nil {
		return matcher.Result{}, err
	}

	content, err := c.model.Chat(ctx, prompt)
	if err != nil {
		return matcher.Result{}, fmt.Errorf("%w: %w", ErrModel, err)
	}

	resp, err := formatting.Parse[approvalResponse](content)
	if err != nil {
		return matcher.Result{}, fmt.Errorf("%w: %w", ErrResponse, err)
	}

	c.logger.InfoContext(ctx, "approval classified",
		"is_approval", resp.IsApproval,
		"confidence", resp.Confidence,
		"reason", resp.Reason,
	)

	return matcher.Result{
		Match:      resp.IsApproval,
		Confidence: clamp(resp.Confidence),
		Reason:     resp.Reason,
	}, nil
}

func (c *Classifier) invoice(ctx context.Context, text string, doc []byte) (matcher.Result, error) {
	var (
		content string
		err     error
	)

	switch {
	case pdf.Readable(text):
		prompt, perr := c.compose(ctx, prompts.StageInvoice, "PDF text content", text)
		if perr != nil {
			return matcher.Result{}, perr
		}
		content, err = c.model.Chat(ctx, prompt)
	case len(doc) > 0 && c.rasterize != nil:
		images, rerr := c.rasterize(ctx, doc, c.cfg.MaxPages)
		if rerr != nil {
			return matcher.Result{}, rerr
		}
		prompt, perr := c.compose(ctx, prompts.StageInvoice, "", "")
		if perr != nil {
			return matcher.Result{}, perr
		}
		content, err = c.model.Vision(ctx, prompt, images)
	default:
		return matcher.Result{}, ErrNoContent
	}
	if err != nil {
		return matcher.Result{}, fmt.Errorf("%w: %w", ErrModel, err)
	}

	resp, err := formatting.Parse[invoiceResponse](content)
	if err != nil {
		return matcher.Result{}, fmt.Errorf("%w: %w", ErrResponse, err)
	}

	c.logger.InfoContext(ctx, "invoice classified",
		"is_invoice", resp.IsInvoice,
		"number", deref(resp.InvoiceNumber),
		"confidence", resp.Confidence,
	)

	return matcher.Result{
		Match:      resp.IsInvoice,
		Confidence: clamp(resp.Confidence),
		Reason:     invoiceReason(resp),
	}, nil
}

// compose joins the stage instructions, the content block and the response
// format. An empty label omits the content block, as for vision calls.
func (c *Classifier) compose(ctx context.Context, stage prompts.Stage, label, content string) (string, error) {
	res, err := c.instructions.Resolve(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}
	if res.Override != nil {
		c.logger.Debug("using instruction override", "stage", stage, "override", *res.Override)
	}

	var sb strings.Builder
	sb.WriteString(res.Instructions)
	if label != "" {
		sb.WriteString("\n\n")
		sb.WriteString(label)
		sb.WriteString(":\n---\n")
		sb.WriteString(formatting.Truncate(content, c.cfg.MaxText))
		sb.WriteString("\n---")
	}
	sb.WriteString("\n\n")
	sb.WriteString(res.Format)

	return sb.String(), nil
}

func invoiceReason(r invoiceResponse) string {
	var parts []string
	if r.Reason != "" {
		parts = append(parts, r.Reason)
	}
	if r.InvoiceNumber != nil {
		parts = append(parts, "number "+*r.InvoiceNumber)
	}
	if r.TotalAmount != nil {
		total := fmt.Sprintf("total %.2f", *r.TotalAmount)
		if r.Currency != nil {
			total += " " + *r.Currency
		}
		parts = append(parts, total)
	}
	return strings.Join(parts, "; ")
}

func clamp(f float64) float64 {
	return max(0, min(f, 1))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type builtins struct{}

func (builtins) Resolve(_ context.Context, stage prompts.Stage) (prompts.Resolved, error) {
	return prompts.Resolve(stage)
}

// Package matcher decides whether an inbound message satisfies a pending
// workflow requirement.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/JaimeStill/tally/internal/record"
)

// Verdict is the three-valued outcome of a match.
type Verdict string

const (
	Yes       Verdict = "yes"
	No        Verdict = "no"
	Uncertain Verdict = "uncertain"
)

// ErrNotCandidate is returned when a message fails the structural filter.
var ErrNotCandidate = errors.New("message is not a candidate")

var (
	invoiceMarker = regexp.MustCompile(`(?i)(faktúra|faktura|invoice|rechnung)`)
	numericTotal  = regexp.MustCompile(`(?i)(total|spolu|celkom|suma|k úhrade|amount due|gesamt)[^0-9\n]{0,40}[0-9][0-9\s.,]*`)
)

// Document is a PDF attachment with its extracted text.
type Document struct {
	Name string
	Key  string
	Data []byte
	Text string
}

// Candidate is an inbound message prepared for matching.
type Candidate struct {
	From      string
	ThreadID  string
	Body      string
	Documents []Document
}

// Expectation is what the record expects for one requirement.
type Expectation struct {
	Requirement record.Requirement
	Sender      string
	ThreadID    string
}

// Decision is the outcome of Match.
type Decision struct {
	Verdict    Verdict
	Reason     string
	Confidence float64
	// Document is the attachment that satisfies a counter-document match.
	Document *Document
}

// Question is posed to the classifier when rules are inconclusive.
type Question struct {
	Requirement record.Requirement
	Text        string
	Document    []byte
}

// Result is the classifier's answer.
type Result struct {
	Match      bool
	Confidence float64
	Reason     string
}

// Classifier answers inconclusive questions. Implementations may fail; the
// matcher degrades every failure to Uncertain.
type Classifier interface {
	Classify(ctx context.Context, q Question) (Result, error)
}

// Classifier fallback defaults.
const (
	DefaultThreshold = 0.7
	DefaultTimeout   = 30 * time.Second
)

// Config holds matching rules.
type Config struct {
	Keywords  []string
	Threshold float64
	Timeout   time.Duration
}

// Matcher applies the structural filter, requirement rules and the
// classifier fallback.
type Matcher struct {
	cfg        Config
	classifier Classifier
	logger     *slog.Logger
}

// New creates a matcher. classifier may be nil, in which case inconclusive
// content is always Uncertain.
func New(cfg Config, classifier Classifier, logger *slog.Logger) *Matcher {
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	cfg.Keywords = keywords
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Matcher{
		cfg:        cfg,
		classifier: classifier,
		logger:     logger.With("system", "matcher"),
	}
}

// Match decides whether c satisfies the expectation. It returns
// ErrNotCandidate when the sender or thread do not match.
func (m *Matcher) Match(ctx context.Context, exp Expectation, c Candidate) (Decision, error) {
	if !Scoped(exp, c) {
		return Decision{}, ErrNotCandidate
	}

	switch exp.Requirement {
	case record.Approval:
		return m.matchApproval(ctx, c), nil
	case record.CounterDocument:
		return m.matchDocument(ctx, c), nil
	default:
		return Decision{}, fmt.Errorf("unknown requirement %q", exp.Requirement)
	}
}

// Scoped reports whether c comes from the expected sender on the expected
// thread.
func Scoped(exp Expectation, c Candidate) bool {
	if exp.ThreadID == "" || c.ThreadID != exp.ThreadID {
		return false
	}
	return strings.EqualFold(Address(c.From), Address(exp.Sender))
}

// Address extracts the bare address from a From header value.
func Address(from string) string {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address
	}
	return strings.TrimSpace(from)
}

func (m *Matcher) matchApproval(ctx context.Context, c Candidate) Decision {
	body := strings.ToLower(c.Body)
	for _, k := range m.cfg.Keywords {
		if strings.Contains(body, k) {
			return Decision{Verdict: Yes, Confidence: 1, Reason: fmt.Sprintf("keyword %q", k)}
		}
	}

	return m.ask(ctx, Question{Requirement: record.Approval, Text: c.Body}, nil)
}

func (m *Matcher) matchDocument(ctx context.Context, c Candidate) Decision {
	switch len(c.Documents) {
	case 0:
		return Decision{Verdict: No, Reason: "no pdf attachment"}
	case 1:
	default:
		doc := c.Documents[0]
		for i := range c.Documents {
			if LooksLikeInvoice(c.Documents[i].Text) {
				doc = c.Documents[i]
				break
			}
		}
		return Decision{
			Verdict:  Uncertain,
			Reason:   fmt.Sprintf("%d pdf attachments", len(c.Documents)),
			Document: &doc,
		}
	}

	doc := c.Documents[0]
	if LooksLikeInvoice(doc.Text) {
		return Decision{Verdict: Yes, Confidence: 1, Reason: "invoice marker and total", Document: &doc}
	}

	return m.ask(ctx, Question{
		Requirement: record.CounterDocument,
		Text:        doc.Text,
		Document:    doc.Data,
	}, &doc)
}

// LooksLikeInvoice reports whether text has an invoice marker and a numeric
// total.
func LooksLikeInvoice(text string) bool {
	return invoiceMarker.MatchString(text) && numericTotal.MatchString(text)
}

func (m *Matcher) ask(ctx context.Context, q Question, doc *Document) Decision {
	if m.classifier == nil {
		return Decision{Verdict: Uncertain, Reason: "no classifier", Document: doc}
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	res, err := m.classifier.Classify(ctx, q)
	if err != nil {
		m.logger.Warn("classifier unavailable", "requirement", q.Requirement, "error", err)
		return Decision{Verdict: Uncertain, Reason: "classifier unavailable", Document: doc}
	}

	d := Decision{Confidence: res.Confidence, Reason: res.Reason, Document: doc}
	switch {
	case res.Confidence < m.cfg.Threshold:
		d.Verdict = Uncertain
	case res.Match:
		d.Verdict = Yes
	default:
		d.Verdict = No
	}

	m.logger.Debug("classifier verdict",
		"requirement", q.Requirement,
		"verdict", d.Verdict,
		"confidence", res.Confidence,
	)
	return d
}

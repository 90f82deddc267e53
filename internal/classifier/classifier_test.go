package classifier_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/classifier"
	"github.com/JaimeStill/tally/internal/matcher"
	"github.com/JaimeStill/tally/internal/prompts"
	"github.com/JaimeStill/tally/internal/record"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
	images  []string
	vision  bool
}

func (m *fakeModel) Chat(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func (m *fakeModel) Vision(ctx context.Context, prompt string, images []string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.images = images
	m.vision = true
	return m.reply, m.err
}

type override struct{ text string }

func (o override) Resolve(ctx context.Context, stage prompts.Stage) (prompts.Resolved, error) {
	res, err := prompts.Resolve(stage)
	id := uuid.New()
	res.Instructions, res.Override = o.text, &id
	return res, err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApproval(t *testing.T) {
	model := &fakeModel{reply: "```json\n{\"is_approval\": true, \"confidence\": 0.92, \"reason\": \"explicit ok\"}\n```"}
	c := classifier.New(classifier.Config{}, model, nil, nil, discard())

	res, err := c.Classify(context.Background(), matcher.Question{
		Requirement: record.Approval,
		Text:        "fine by me, go ahead",
	})
	require.NoError(t, err)

	assert.True(t, res.Match)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)
	assert.Equal(t, "explicit ok", res.Reason)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "fine by me, go ahead")
	assert.Contains(t, model.prompts[0], "is_approval")
	assert.Contains(t, model.prompts[0], "schvalujem")
}

func TestInvoiceText(t *testing.T) {
	model := &fakeModel{reply: `{"is_invoice": true, "invoice_number": "2026001", "total_amount": 1600, "currency": "EUR", "confidence": 1.4, "reason": "header and total"}`}
	c := classifier.New(classifier.Config{MaxText: 10}, model, override{text: "custom invoice rules"}, nil, discard())

	res, err := c.Classify(context.Background(), matcher.Question{
		Requirement: record.CounterDocument,
		Text:        "Faktura 2026001 Total 1600 EUR",
	})
	require.NoError(t, err)

	assert.True(t, res.Match)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "header and total; number 2026001; total 1600.00 EUR", res.Reason)

	prompt := model.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, "custom invoice rules"))
	assert.Contains(t, prompt, "---\nFaktura 20\n---")
	assert.NotContains(t, prompt, "1600 EUR")
	assert.False(t, model.vision)
}

func TestInvoiceVision(t *testing.T) {
	model := &fakeModel{reply: `{"is_invoice": false, "confidence": 0.8, "reason": "a receipt"}`}

	var gotPages int
	rasterize := func(ctx context.Context, data []byte, maxPages int) ([]string, error) {
		gotPages = maxPages
		return []string{"data:image/png;base64,AAAA"}, nil
	}
	c := classifier.New(classifier.Config{MaxPages: 3}, model, nil, rasterize, discard())

	res, err := c.Classify(context.Background(), matcher.Question{
		Requirement: record.CounterDocument,
		Document:    []byte("%PDF-1.4 scanned"),
	})
	require.NoError(t, err)

	assert.False(t, res.Match)
	assert.Equal(t, 3, gotPages)
	assert.True(t, model.vision)
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, model.images)
}

func TestInvoiceUndecodableTextUsesVision(t *testing.T) {
	model := &fakeModel{reply: `{"is_invoice": true, "confidence": 0.9, "reason": "invoice layout"}`}
	rasterize := func(ctx context.Context, data []byte, maxPages int) ([]string, error) {
		return []string{"data:image/png;base64,AAAA"}, nil
	}
	c := classifier.New(classifier.Config{}, model, nil, rasterize, discard())

	res, err := c.Classify(context.Background(), matcher.Question{
		Requirement: record.CounterDocument,
		Text:        "\x01\x02\x03\x04\x05\x06 \x07\x08",
		Document:    []byte("%PDF-1.7 subset fonts"),
	})
	require.NoError(t, err)

	assert.True(t, res.Match)
	assert.True(t, model.vision)
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name    string
		model   *fakeModel
		q       matcher.Question
		wantErr error
	}{
		{
			name:    "empty approval",
			model:   &fakeModel{},
			q:       matcher.Question{Requirement: record.Approval, Text: "  "},
			wantErr: classifier.ErrNoContent,
		},
		{
			name:    "scanned without rasterizer",
			model:   &fakeModel{},
			q:       matcher.Question{Requirement: record.CounterDocument, Document: []byte("%PDF")},
			wantErr: classifier.ErrNoContent,
		},
		{
			name:    "model error",
			model:   &fakeModel{err: errors.New("quota")},
			q:       matcher.Question{Requirement: record.Approval, Text: "ok?"},
			wantErr: classifier.ErrModel,
		},
		{
			name:    "prose answer",
			model:   &fakeModel{reply: "I think so"},
			q:       matcher.Question{Requirement: record.Approval, Text: "sure"},
			wantErr: classifier.ErrResponse,
		},
		{
			name:    "unknown requirement",
			model:   &fakeModel{},
			q:       matcher.Question{Requirement: "timesheet", Text: "x"},
			wantErr: classifier.ErrUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classifier.New(classifier.Config{}, tt.model, nil, nil, discard())
			_, err := c.Classify(context.Background(), tt.q)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

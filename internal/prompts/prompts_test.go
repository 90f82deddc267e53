package prompts_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/JaimeStill/tally/internal/prompts"
)

func ptr[T any](v T) *T { return &v }

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", prompts.ErrNotFound, http.StatusNotFound},
		{"duplicate", prompts.ErrDuplicate, http.StatusConflict},
		{"invalid stage", prompts.ErrInvalidStage, http.StatusBadRequest},
		{"empty", prompts.ErrEmpty, http.StatusBadRequest},
		{"invalid id", prompts.ErrInvalidID, http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("find: %w", prompts.ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prompts.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseStage(t *testing.T) {
	for _, s := range []string{"approval", "invoice"} {
		if _, err := prompts.ParseStage(s); err != nil {
			t.Errorf("ParseStage(%q) error: %v", s, err)
		}
	}

	for _, s := range []string{"", "classify", "APPROVAL"} {
		if _, err := prompts.ParseStage(s); !errors.Is(err, prompts.ErrInvalidStage) {
			t.Errorf("ParseStage(%q) error = %v, want ErrInvalidStage", s, err)
		}
	}
}

func TestStageUnmarshalJSON(t *testing.T) {
	var cmd prompts.Command
	if err := json.Unmarshal([]byte(`{"name":"strict","stage":"invoice","instructions":"x"}`), &cmd); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if cmd.Stage != prompts.StageInvoice {
		t.Errorf("Stage = %q, want invoice", cmd.Stage)
	}

	err := json.Unmarshal([]byte(`{"stage":"enhance"}`), &cmd)
	if !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("Unmarshal unknown stage error = %v, want ErrInvalidStage", err)
	}
}

func TestResolveBuiltins(t *testing.T) {
	tests := []struct {
		stage    prompts.Stage
		contains string
		field    string
	}{
		{prompts.StageApproval, "schvalujem", "is_approval"},
		{prompts.StageInvoice, "Faktura", "is_invoice"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			res, err := prompts.Resolve(tt.stage)
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if res.Stage != tt.stage {
				t.Errorf("Stage = %q, want %q", res.Stage, tt.stage)
			}
			if !strings.Contains(res.Instructions, tt.contains) {
				t.Errorf("instructions missing %q", tt.contains)
			}
			if !strings.Contains(res.Format, tt.field) {
				t.Errorf("format missing %q", tt.field)
			}
			if res.Override != nil {
				t.Errorf("Override = %v, want nil for built-in", res.Override)
			}
		})
	}

	if _, err := prompts.Resolve("nope"); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("Resolve(nope) error = %v, want ErrInvalidStage", err)
	}
}

func TestFiltersFromQuery(t *testing.T) {
	f, err := prompts.FiltersFromQuery(url.Values{
		"stage":  {"approval"},
		"name":   {"strict"},
		"active": {"true"},
	})
	if err != nil {
		t.Fatalf("FiltersFromQuery error: %v", err)
	}

	if f.Stage == nil || *f.Stage != prompts.StageApproval {
		t.Errorf("Stage = %v, want approval", f.Stage)
	}
	if f.Name == nil || *f.Name != "strict" {
		t.Errorf("Name = %v, want strict", f.Name)
	}
	if f.Active == nil || !*f.Active {
		t.Errorf("Active = %v, want true", f.Active)
	}

	f, err = prompts.FiltersFromQuery(url.Values{"active": {"maybe"}})
	if err != nil {
		t.Fatalf("FiltersFromQuery error: %v", err)
	}
	if f.Active != nil {
		t.Errorf("Active = %v, want nil for invalid input", f.Active)
	}

	if _, err := prompts.FiltersFromQuery(url.Values{"stage": {"enhance"}}); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("unknown stage error = %v, want ErrInvalidStage", err)
	}
}

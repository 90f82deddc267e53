package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/coordinator"
	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/journal"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/pkg/pagination"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "tally", cmd.Use)

	for _, name := range []string{"status", "prompts", "respond", "cancel", "retry", "notices", "journal", "state", "migrate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	assert.NotEmpty(t, server.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "status", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestStatus(t *testing.T) {
	since := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/operator/status", r.URL.Path)
		respond(w, http.StatusOK, coordinator.Status{
			State:        record.WaitingDocs,
			CycleID:      "2026-02",
			WaitingSince: &since,
			Requirements: []coordinator.RequirementStatus{
				{Requirement: record.Approval, Party: "manager@client.sk", ThreadID: "t-1", Received: true},
				{Requirement: record.CounterDocument, Party: "invoicing@client.sk", ThreadID: "t-2"},
			},
		})
	}))
	defer srv.Close()

	out, err := run(t, "status", "--server", srv.URL+"/api")
	require.NoError(t, err)
	assert.Contains(t, out, "State: WAITING_DOCS")
	assert.Contains(t, out, "[x] approval from manager@client.sk")
	assert.Contains(t, out, "[ ] counter-document from invoicing@client.sk")

	out, err = run(t, "status", "--server", srv.URL+"/api", "--format", "json")
	require.NoError(t, err)
	var s coordinator.Status
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "2026-02", s.CycleID)
}

func TestPrompts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []operator.Prompt{{
			ID:      "p-1",
			Kind:    operator.KindApproval,
			Text:    "Worklog 2026-02: 160 hours\nSend for approval?",
			Options: []events.Action{events.Approve, events.Edit, events.Cancel},
		}})
	}))
	defer srv.Close()

	out, err := run(t, "prompts", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "p-1 [approval] approve/edit/cancel")
	assert.Contains(t, out, "    Send for approval?")
}

func TestRespond(t *testing.T) {
	var got operator.Response
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/operator/prompts/p-1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out, err := run(t, "respond", "p-1", "edit", "--value", "152", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, operator.Response{Action: "edit", Value: "152"}, got)
	assert.Contains(t, out, "Queued edit for prompt p-1")
}

func TestRespondErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusNotFound, map[string]string{"error": "prompt not found"})
	}))
	defer srv.Close()

	t.Run("unknown action", func(t *testing.T) {
		_, err := run(t, "respond", "p-1", "maybe", "--server", srv.URL)
		assert.Equal(t, ExitCommandError, ExitCode(err))
	})

	t.Run("rejected", func(t *testing.T) {
		_, err := run(t, "respond", "p-1", "approve", "--server", srv.URL)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, ExitCode(err))
		assert.Contains(t, err.Error(), "prompt not found")
	})

	t.Run("unreachable", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()
		_, err := run(t, "respond", "p-1", "approve", "--server", closed.URL)
		assert.Equal(t, ExitCommandError, ExitCode(err))
	})
}

func TestCommands(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := run(t, "cancel", "--server", srv.URL)
	require.NoError(t, err)
	_, err = run(t, "retry", "--server", srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{"/operator/commands/cancel", "/operator/commands/retry"}, paths)
}

func TestJournal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-02", r.URL.Query().Get("cycle_id"))
		since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
		if assert.NoError(t, err) {
			assert.WithinDuration(t, time.Now().Add(-72*time.Hour), since, time.Minute)
		}
		respond(w, http.StatusOK, pagination.PageResult[journal.Transition]{
			Data: []journal.Transition{{
				ID:        uuid.New(),
				CycleID:   "2026-02",
				Event:     "operator_action",
				FromState: "PENDING_INIT_APPROVAL",
				ToState:   "WAITING_DOCS",
				Detail:    "requests sent",
				CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			}},
			Total: 1, Page: 1, PageSize: 20, TotalPages: 1,
		})
	}))
	defer srv.Close()

	out, err := run(t, "journal", "--cycle", "2026-02", "--since", "72h", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "PENDING_INIT_APPROVAL -> WAITING_DOCS  (requests sent)")
	assert.Contains(t, out, "page 1 of 1, 1 transitions")
}

func TestState(t *testing.T) {
	file := filepath.Join(t.TempDir(), "workflow.json")

	out, err := run(t, "state", "show", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "State: IDLE")

	rec := record.New()
	rec.State = record.WaitingDocs
	rec.CycleID = "2026-02"
	rec.SourceName = "worklog_02_2026.pdf"
	require.NoError(t, record.NewStore(file, slogDiscard()).Save(rec))

	out, err = run(t, "state", "show", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "State: WAITING_DOCS")
	assert.Contains(t, out, "Source: worklog_02_2026.pdf")

	_, err = run(t, "state", "reset", "--file", file)
	assert.Equal(t, ExitCommandError, ExitCode(err))

	out, err = run(t, "state", "reset", "--yes", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "State reset to IDLE")

	loaded, err := record.NewStore(file, slogDiscard()).Load()
	require.NoError(t, err)
	assert.Equal(t, record.Idle, loaded.State)

	_, err = os.Stat(file)
	assert.NoError(t, err)
}

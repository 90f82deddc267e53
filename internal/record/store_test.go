package record_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/internal/timesheet"
)

func newStore(t *testing.T) (*record.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "workflow.json")
	return record.NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil))), path
}

func waiting() *record.Record {
	since := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	reminded := since.Add(7 * 24 * time.Hour)

	r := record.New()
	r.State = record.WaitingDocs
	r.CycleID = "c9a5e0ce-7a9c-4c0e-9d4c-0f4f3c0b2a11"
	r.SourceRef = "cycles/c9a5/timesheet.pdf"
	r.SourceName = "timesheet.pdf"
	r.Fields = &timesheet.Info{TotalHours: 160, DateRange: "01/Jan/26 - 31/Jan/26", Month: 1, Year: 2026}
	r.Threads[record.Approval] = "thread-a"
	r.Threads[record.CounterDocument] = "thread-b"
	r.Flags[record.Approval] = true
	r.Received[record.Approval] = record.Receipt{
		Key:        "cycles/c9a5/approval.html",
		MessageID:  "m-1",
		Digest:     "abc",
		ReceivedAt: since.Add(time.Hour),
	}
	r.Pending[record.CounterDocument] = record.Candidate{
		PromptRef: "p-2",
		Receipt:   record.Receipt{Key: "cycles/c9a5/m-2.pdf", MessageID: "m-2"},
		Reason:    "classifier unavailable",
	}
	r.WaitingSince = &since
	r.LastReminderAt = &reminded
	return r
}

func TestLoadMissingReturnsIdle(t *testing.T) {
	store, _ := newStore(t)

	r, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, record.Idle, r.State)
	assert.Len(t, r.Outstanding(), 2)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, path := newStore(t)
	want := waiting()

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not remain")
}

func TestSaveIsHumanReadable(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, store.Save(waiting()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state": "WAITING_DOCS"`)
	assert.Contains(t, string(data), `"approval": true`)
}

func TestLoadCorruptMovesAside(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"state": "WAITING_`},
		{"unknown state", `{"state": "LIMBO"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, path := newStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			r, err := store.Load()
			require.NoError(t, err)
			assert.Equal(t, record.Idle, r.State)

			_, err = os.Stat(path)
			assert.ErrorIs(t, err, os.ErrNotExist)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.True(t, strings.HasPrefix(entries[0].Name(), "workflow.json.corrupt-"))
		})
	}
}

func TestReset(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Save(waiting()))

	r, err := store.Reset()
	require.NoError(t, err)
	assert.Equal(t, record.Idle, r.State)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, record.Idle, loaded.State)
	assert.Empty(t, loaded.Threads)
}

package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/coordinator"
	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/journal"
	"github.com/JaimeStill/tally/internal/mailbox"
	"github.com/JaimeStill/tally/internal/matcher"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/internal/workflow"
	"github.com/JaimeStill/tally/pkg/pdf"
)

const (
	manager    = "manager@example.com"
	invoicing  = "invoicing@example.com"
	accountant = "accountant@example.com"

	timesheetPDF = "%PDF-1.7\nJira worklog\n01/Jan/26 - 31/Jan/26\nTotal: 160h\n"
	invoicePDF   = "%PDF-1.4\nFaktura 2026001\nTotal: 1600 EUR\n"
)

var start = time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTransport struct {
	mu    sync.Mutex
	sent  []mailbox.Outbound
	fail  map[int]error
	calls int
}

func (f *fakeTransport) Send(ctx context.Context, msg mailbox.Outbound) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if err := f.fail[f.calls]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, msg)
	if msg.ThreadID != "" {
		return msg.ThreadID, nil
	}
	return fmt.Sprintf("thread-%d", len(f.sent)), nil
}

type fakeOperator struct {
	mu      sync.Mutex
	seq     int
	active  map[string]operator.Prompt
	notices []string
}

func newFakeOperator() *fakeOperator {
	return &fakeOperator{active: make(map[string]operator.Prompt)}
}

func (f *fakeOperator) Prompt(ctx context.Context, p operator.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	p.ID = fmt.Sprintf("p-%d", f.seq)
	f.active[p.ID] = p
	return p.ID, nil
}

func (f *fakeOperator) Retire(ctx context.Context, ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, ref)
}

func (f *fakeOperator) Notify(ctx context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
}

func (f *fakeOperator) kinds() []operator.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []operator.Kind
	for _, p := range f.active {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}

func (f *fakeOperator) text(kind operator.Kind) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.active {
		if p.Kind == kind {
			return p.Text
		}
	}
	return ""
}

func (f *fakeOperator) lastNotice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notices) == 0 {
		return ""
	}
	return f.notices[len(f.notices)-1]
}

type archived struct {
	folder string
	keys   []string
}

type fakeDocuments struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	archives    []archived
	failArchive error
	failStore   error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{blobs: make(map[string][]byte)}
}

func (f *fakeDocuments) Store(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStore != nil {
		return f.failStore
	}
	f.blobs[key] = data
	return nil
}

func (f *fakeDocuments) Read(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f *fakeDocuments) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func (f *fakeDocuments) Archive(ctx context.Context, folder string, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failArchive != nil {
		return f.failArchive
	}
	for _, k := range keys {
		f.blobs[path.Join("archive", folder, path.Base(k))] = f.blobs[k]
		delete(f.blobs, k)
	}
	f.archives = append(f.archives, archived{folder: folder, keys: keys})
	return nil
}

type fakeAssembler struct {
	requests []workflow.Request
	fail     error
}

func (f *fakeAssembler) Assemble(ctx context.Context, req workflow.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.fail != nil {
		return "", f.fail
	}
	return req.Output, nil
}

type fakeJournal struct {
	entries []journal.Transition
}

func (f *fakeJournal) Append(ctx context.Context, t journal.Transition) error {
	f.entries = append(f.entries, t)
	return nil
}

func (f *fakeJournal) path() []string {
	var out []string
	for _, e := range f.entries {
		out = append(out, e.FromState+">"+e.ToState)
	}
	return out
}

type fakeClassifier struct {
	result matcher.Result
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, q matcher.Question) (matcher.Result, error) {
	return f.result, f.err
}

type harness struct {
	t          *testing.T
	dir        string
	statePath  string
	now        time.Time
	transport  *fakeTransport
	operator   *fakeOperator
	documents  *fakeDocuments
	assembler  *fakeAssembler
	journal    *fakeJournal
	classifier *fakeClassifier
	c          *coordinator.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		t:          t,
		dir:        dir,
		statePath:  filepath.Join(dir, "state", "workflow.json"),
		now:        start,
		transport:  &fakeTransport{fail: map[int]error{}},
		operator:   newFakeOperator(),
		documents:  newFakeDocuments(),
		assembler:  &fakeAssembler{},
		journal:    &fakeJournal{},
		classifier: &fakeClassifier{err: errors.New("classifier offline")},
	}
	h.c = h.build()
	return h
}

// build creates a coordinator over the harness state file, as a restart would.
func (h *harness) build() *coordinator.Coordinator {
	h.t.Helper()

	m := matcher.New(matcher.Config{
		Keywords: []string{"approved", "schvalene", "schvalujem", "suhlasim", "ok", "v poriadku"},
	}, h.classifier, discard())

	c, err := coordinator.New(coordinator.Config{
		Company:    "YourCompany inc.",
		Manager:    manager,
		Invoicing:  invoicing,
		Accountant: accountant,
		HourlyRate: 10,
		Currency:   "EUR",
	}, coordinator.Deps{
		Store:     record.NewStore(h.statePath, discard()),
		Transport: h.transport,
		Operator:  h.operator,
		Documents: h.documents,
		Assembler: h.assembler,
		Journal:   h.journal,
		Matcher:   m,
		Text:      func(data []byte) (string, error) { return string(data), nil },
		Now:       func() time.Time { return h.now },
	}, discard())
	require.NoError(h.t, err)
	return c
}

func (h *harness) apply(e events.Event) error {
	return h.c.Apply(context.Background(), e)
}

func (h *harness) rec() *record.Record {
	return h.c.Record()
}

func (h *harness) dropTimesheet(content string) string {
	h.t.Helper()
	p := filepath.Join(h.dir, "timesheet.pdf")
	require.NoError(h.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (h *harness) act(action events.Action, value string) error {
	return h.apply(events.OperatorAction{PromptRef: h.rec().PendingUIRef, Action: action, Value: value})
}

// toPending drives a fresh cycle to PENDING_INIT_APPROVAL.
func (h *harness) toPending() {
	h.t.Helper()
	require.NoError(h.t, h.apply(events.NewDocument{Path: h.dropTimesheet(timesheetPDF)}))
	require.Equal(h.t, record.PendingInitApproval, h.rec().State)
}

// toWaiting drives a fresh cycle to WAITING_DOCS.
func (h *harness) toWaiting() {
	h.t.Helper()
	h.toPending()
	require.NoError(h.t, h.act(events.Approve, ""))
	require.Equal(h.t, record.WaitingDocs, h.rec().State)
}

func (h *harness) approvalReply(id, body string) events.InboundMessage {
	return events.InboundMessage{Message: events.Message{
		ID:         id,
		ThreadID:   h.rec().Threads[record.Approval],
		From:       "Manager <" + manager + ">",
		To:         []string{"me@example.com"},
		Subject:    "Re: YourCompany inc. faktura 01/2026",
		Text:       body,
		ReceivedAt: h.now,
	}}
}

func (h *harness) invoiceReply(id, content string) events.InboundMessage {
	key := "mailbox/" + id + "/faktura.pdf"
	h.documents.blobs[key] = []byte(content)
	return events.InboundMessage{Message: events.Message{
		ID:       id,
		ThreadID: h.rec().Threads[record.CounterDocument],
		From:     accountant,
		Subject:  "Re: podklady",
		Text:     "posielam fakturu",
		Attachments: []events.Attachment{{
			Name:        "faktura.pdf",
			ContentType: pdf.ContentType,
			Key:         key,
		}},
		ReceivedAt: h.now,
	}}
}

func (h *harness) toReady() {
	h.t.Helper()
	h.toWaiting()
	require.NoError(h.t, h.apply(h.approvalReply("m-1", "ok approved")))
	require.NoError(h.t, h.apply(h.invoiceReply("m-2", invoicePDF)))
	require.Equal(h.t, record.AllDocsReady, h.rec().State)
}

type fakeInbox struct {
	mu        sync.Mutex
	pending   []events.Message
	delivered []string
}

func (f *fakeInbox) Pending(ctx context.Context, limit int) ([]events.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Message
	for _, m := range f.pending {
		if !slices.Contains(f.delivered, m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeInbox) MarkDelivered(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, id)
	return nil
}

func (f *fakeInbox) marked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

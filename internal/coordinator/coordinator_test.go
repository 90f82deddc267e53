package coordinator_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/coordinator"
	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/mailbox"
	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/internal/record"
	"github.com/JaimeStill/tally/internal/workflow"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/retry"
)

func TestHappyPath(t *testing.T) {
	h := newHarness(t)

	src := h.dropTimesheet(timesheetPDF)
	require.NoError(t, h.apply(events.NewDocument{Path: src}))

	rec := h.rec()
	assert.Equal(t, record.PendingInitApproval, rec.State)
	require.NotNil(t, rec.Fields)
	assert.Equal(t, 160, rec.Fields.TotalHours)
	assert.Equal(t, 1, rec.Fields.Month)
	assert.Equal(t, 2026, rec.Fields.Year)
	assert.Equal(t, "cycles/"+rec.CycleID+"/timesheet.pdf", rec.SourceRef)
	assert.Contains(t, h.documents.blobs, rec.SourceRef)
	assert.NoFileExists(t, src)
	assert.Equal(t, []operator.Kind{operator.KindApproval}, h.operator.kinds())
	assert.Contains(t, h.operator.active[rec.PendingUIRef].Text, "Amount: 1600 EUR")

	require.NoError(t, h.act(events.Approve, ""))

	rec = h.rec()
	assert.Equal(t, record.WaitingDocs, rec.State)
	require.Len(t, h.transport.sent, 2)
	assert.NotEqual(t, rec.Threads[record.Approval], rec.Threads[record.CounterDocument])
	assert.Empty(t, rec.PendingUIRef)
	require.NotNil(t, rec.WaitingSince)

	mgr := h.transport.sent[0]
	assert.Equal(t, []string{manager}, mgr.To)
	assert.Equal(t, []string{invoicing}, mgr.Cc)
	assert.Equal(t, "YourCompany inc. faktura 01/2026", mgr.Subject)
	require.Len(t, mgr.Attachments, 1)
	assert.Equal(t, rec.SourceRef, mgr.Attachments[0].Key)

	acc := h.transport.sent[1]
	assert.Equal(t, []string{accountant}, acc.To)
	assert.Equal(t, "YourCompany inc. - podklady ku vystaveniu faktur 01/2026", acc.Subject)
	assert.Contains(t, acc.Body, "160*10=1600 bez DPH")
	assert.Contains(t, acc.Body, "navrh soft. arch. pre nav. aplikaciu - 144h")
	assert.Contains(t, acc.Body, "testovanie navigačnej apl. počas jazdy - 16h")

	require.NoError(t, h.apply(h.approvalReply("m-1", "Ahoj, schvalujem. OK")))
	rec = h.rec()
	assert.True(t, rec.Flags[record.Approval])
	assert.Equal(t, record.WaitingDocs, rec.State)

	require.NoError(t, h.apply(h.invoiceReply("m-2", invoicePDF)))
	rec = h.rec()
	assert.Equal(t, record.AllDocsReady, rec.State)
	assert.Equal(t, "cycles/"+rec.CycleID+"/merged_01_2026.pdf", rec.MergedRef)
	assert.Equal(t, []operator.Kind{operator.KindFinal}, h.operator.kinds())

	require.Len(t, h.assembler.requests, 1)
	parts := h.assembler.requests[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, rec.Received[record.CounterDocument].Key, parts[0].Key)
	assert.Equal(t, workflow.PartPDF, parts[0].Kind)
	assert.Equal(t, rec.SourceRef, parts[1].Key)
	assert.Equal(t, rec.Received[record.Approval].Key, parts[2].Key)
	assert.Equal(t, workflow.PartHTML, parts[2].Kind)

	keys := rec.Keys()
	approvalThread := rec.Threads[record.Approval]

	require.NoError(t, h.act(events.Approve, ""))

	require.Len(t, h.transport.sent, 3)
	final := h.transport.sent[2]
	assert.Equal(t, approvalThread, final.ThreadID)
	assert.Equal(t, "Re: YourCompany inc. faktura 01/2026", final.Subject)
	assert.Equal(t, "V prílohe.", final.Body)
	require.Len(t, final.Attachments, 1)
	assert.Equal(t, rec.MergedRef, final.Attachments[0].Key)

	require.Len(t, h.documents.archives, 1)
	assert.Equal(t, "2026-01", h.documents.archives[0].folder)
	assert.ElementsMatch(t, keys, h.documents.archives[0].keys)

	rec = h.rec()
	assert.Equal(t, record.Idle, rec.State)
	assert.Empty(t, rec.CycleID)
	assert.Empty(t, h.operator.kinds())

	assert.Equal(t, []string{
		"IDLE>PENDING_INIT_APPROVAL",
		"PENDING_INIT_APPROVAL>WAITING_DOCS",
		"WAITING_DOCS>ALL_DOCS_READY",
		"ALL_DOCS_READY>COMPLETE",
		"COMPLETE>IDLE",
	}, h.journal.path())
}

func TestDocumentBeforeApproval(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()

	require.NoError(t, h.apply(h.invoiceReply("m-1", invoicePDF)))
	assert.Equal(t, record.WaitingDocs, h.rec().State)
	assert.True(t, h.rec().Flags[record.CounterDocument])
	assert.Empty(t, h.assembler.requests)

	require.NoError(t, h.apply(h.approvalReply("m-2", "v poriadku")))
	assert.Equal(t, record.AllDocsReady, h.rec().State)
	assert.Len(t, h.assembler.requests, 1)
}

func TestEditHours(t *testing.T) {
	h := newHarness(t)
	h.toPending()

	require.NoError(t, h.act(events.Edit, ""))
	rec := h.rec()
	require.NotNil(t, rec.Edit)
	assert.Equal(t, rec.Edit.PromptRef, rec.PendingUIRef)
	assert.Equal(t, []operator.Kind{operator.KindEdit}, h.operator.kinds())

	err := h.act(events.Edit, "-5")
	assert.ErrorIs(t, err, coordinator.ErrValidation)
	assert.Contains(t, h.operator.lastNotice(), "Invalid hours")
	rec = h.rec()
	assert.Equal(t, record.PendingInitApproval, rec.State)
	assert.Equal(t, 160, rec.Fields.TotalHours)
	require.NotNil(t, rec.Edit)
	assert.Equal(t, []operator.Kind{operator.KindEdit}, h.operator.kinds())

	require.NoError(t, h.act(events.Edit, "200"))
	rec = h.rec()
	assert.Nil(t, rec.Edit)
	assert.Equal(t, 200, rec.Fields.TotalHours)
	assert.Equal(t, 184, rec.Fields.ArchHours())
	assert.Equal(t, []operator.Kind{operator.KindApproval}, h.operator.kinds())

	require.NoError(t, h.act(events.Approve, ""))
	require.Len(t, h.transport.sent, 2)
	assert.Contains(t, h.transport.sent[1].Body, "200*10=2000 bez DPH")
	assert.Contains(t, h.transport.sent[1].Body, "- 184h")
}

func TestOutOfRangeHoursNeedEdit(t *testing.T) {
	h := newHarness(t)

	src := h.dropTimesheet("%PDF-1.7\nJira worklog\n01/Jan/26 - 31/Jan/26\nTotal: 320h\n")
	require.NoError(t, h.apply(events.NewDocument{Path: src}))

	rec := h.rec()
	require.Equal(t, record.PendingInitApproval, rec.State)
	assert.Equal(t, 320, rec.Fields.TotalHours)
	assert.NoFileExists(t, src)
	assert.Contains(t, h.operator.text(operator.KindApproval), "Edit the hours before approving")

	err := h.act(events.Approve, "")
	assert.ErrorIs(t, err, coordinator.ErrValidation)
	assert.Empty(t, h.transport.sent)
	assert.Equal(t, record.PendingInitApproval, h.rec().State)

	require.NoError(t, h.act(events.Edit, "300"))
	assert.Contains(t, h.operator.text(operator.KindApproval), "Approve to send")

	require.NoError(t, h.act(events.Approve, ""))
	assert.Equal(t, record.WaitingDocs, h.rec().State)
	assert.Len(t, h.transport.sent, 2)
}

func TestEditInline(t *testing.T) {
	h := newHarness(t)
	h.toPending()

	require.NoError(t, h.act(events.Edit, "150"))
	assert.Equal(t, 150, h.rec().Fields.TotalHours)
	assert.Nil(t, h.rec().Edit)
	assert.Equal(t, record.PendingInitApproval, h.rec().State)
}

func TestEditExpires(t *testing.T) {
	h := newHarness(t)
	h.toPending()

	require.NoError(t, h.act(events.Edit, ""))
	editRef := h.rec().PendingUIRef

	require.NoError(t, h.apply(events.Tick{At: start.Add(time.Minute)}))
	assert.NotNil(t, h.rec().Edit)

	require.NoError(t, h.apply(events.Tick{At: start.Add(6 * time.Minute)}))
	rec := h.rec()
	assert.Nil(t, rec.Edit)
	assert.NotEqual(t, editRef, rec.PendingUIRef)
	assert.Equal(t, 160, rec.Fields.TotalHours)
	assert.Equal(t, []operator.Kind{operator.KindApproval}, h.operator.kinds())

	err := h.apply(events.OperatorAction{PromptRef: editRef, Action: events.Edit, Value: "100"})
	assert.ErrorIs(t, err, coordinator.ErrStaleEvent)
	assert.Equal(t, 160, h.rec().Fields.TotalHours)
}

func TestCancelWhileWaiting(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()
	require.NoError(t, h.apply(h.approvalReply("m-1", "approved")))

	rec := h.rec()
	keys := rec.Keys()
	invoice := h.invoiceReply("m-2", invoicePDF)

	require.NoError(t, h.apply(events.OperatorAction{Action: events.Cancel}))

	require.Len(t, h.documents.archives, 1)
	assert.True(t, strings.HasPrefix(h.documents.archives[0].folder, "cancelled/"))
	assert.Equal(t, "cancelled/20260202_090000", h.documents.archives[0].folder)
	assert.ElementsMatch(t, keys, h.documents.archives[0].keys)
	assert.Contains(t, keys, rec.SourceRef)
	assert.Contains(t, keys, rec.Received[record.Approval].Key)
	assert.Equal(t, record.Idle, h.rec().State)

	before := h.rec()
	err := h.apply(invoice)
	assert.ErrorIs(t, err, coordinator.ErrStaleEvent)
	assert.Equal(t, before, h.rec())
	assert.Len(t, h.transport.sent, 2)
}

func TestCancelFromEachState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"pending", func(h *harness) { h.toPending() }},
		{"waiting", func(h *harness) { h.toWaiting() }},
		{"ready", func(h *harness) { h.toReady() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			require.NoError(t, h.act(events.Cancel, ""))
			assert.Equal(t, record.Idle, h.rec().State)
			assert.Empty(t, h.operator.kinds())
			require.Len(t, h.documents.archives, 1)
			assert.True(t, strings.HasPrefix(h.documents.archives[0].folder, "cancelled/"))
		})
	}
}

func TestRecoverWaiting(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()
	require.NoError(t, h.apply(h.approvalReply("m-1", "approved")))
	before := h.rec()

	h.transport = &fakeTransport{fail: map[int]error{}}
	h.operator = newFakeOperator()
	h.c = h.build()

	require.NoError(t, h.c.Recover(context.Background()))

	rec := h.rec()
	assert.Equal(t, record.WaitingDocs, rec.State)
	assert.True(t, rec.Flags[record.Approval])
	assert.False(t, rec.Flags[record.CounterDocument])
	assert.Equal(t, before.Threads, rec.Threads)
	assert.Empty(t, h.transport.sent)
	assert.Empty(t, h.operator.kinds())

	status := h.c.Status()
	assert.Equal(t, []record.Requirement{record.CounterDocument}, status.Outstanding)
	assert.Contains(t, status.Report(), "[x] approval")
	assert.Contains(t, status.Report(), "[ ] counter-document")

	require.NoError(t, h.apply(h.invoiceReply("m-2", invoicePDF)))
	assert.Equal(t, record.AllDocsReady, h.rec().State)
}

func TestRecoverReissuesPrompts(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		h := newHarness(t)
		h.toPending()
		require.NoError(t, h.act(events.Edit, ""))

		h.operator = newFakeOperator()
		h.c = h.build()
		require.NoError(t, h.c.Recover(context.Background()))

		rec := h.rec()
		assert.Nil(t, rec.Edit)
		assert.Equal(t, []operator.Kind{operator.KindApproval}, h.operator.kinds())
		assert.Contains(t, h.operator.active, rec.PendingUIRef)
	})

	t.Run("confirmation", func(t *testing.T) {
		h := newHarness(t)
		h.toWaiting()
		require.NoError(t, h.apply(h.approvalReply("m-1", "see you on Monday")))
		require.Contains(t, h.rec().Pending, record.Approval)

		h.operator = newFakeOperator()
		h.c = h.build()
		require.NoError(t, h.c.Recover(context.Background()))

		assert.Equal(t, []operator.Kind{operator.KindConfirm}, h.operator.kinds())
		text := h.operator.text(operator.KindConfirm)
		assert.Contains(t, text, `("Re: YourCompany inc. faktura 01/2026")`)
		assert.NotContains(t, text, "restart")
		ref := h.rec().Pending[record.Approval].PromptRef
		require.NoError(t, h.apply(events.OperatorAction{PromptRef: ref, Action: events.Yes}))
		assert.True(t, h.rec().Flags[record.Approval])
	})

	t.Run("complete", func(t *testing.T) {
		h := newHarness(t)
		h.toReady()
		h.documents.failArchive = errors.New("blob offline")

		err := h.act(events.Approve, "")
		assert.ErrorIs(t, err, coordinator.ErrTransient)
		assert.Equal(t, record.Complete, h.rec().State)

		h.documents.failArchive = nil
		h.operator = newFakeOperator()
		h.c = h.build()
		require.NoError(t, h.c.Recover(context.Background()))

		assert.Equal(t, record.Idle, h.rec().State)
		require.Len(t, h.documents.archives, 1)
		assert.Equal(t, "2026-01", h.documents.archives[0].folder)
		assert.Len(t, h.transport.sent, 3)
	})
}

func TestUncertainApproval(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		h := newHarness(t)
		h.toWaiting()

		require.NoError(t, h.apply(h.approvalReply("m-1", "see you on Monday")))
		rec := h.rec()
		assert.False(t, rec.Flags[record.Approval])
		cand, ok := rec.Pending[record.Approval]
		require.True(t, ok)
		assert.Equal(t, []operator.Kind{operator.KindConfirm}, h.operator.kinds())

		require.NoError(t, h.apply(events.OperatorAction{PromptRef: cand.PromptRef, Action: events.Yes}))
		rec = h.rec()
		assert.True(t, rec.Flags[record.Approval])
		assert.Empty(t, rec.Pending)
		assert.Equal(t, cand.Receipt.Key, rec.Received[record.Approval].Key)
	})

	t.Run("rejected", func(t *testing.T) {
		h := newHarness(t)
		h.toWaiting()

		require.NoError(t, h.apply(h.approvalReply("m-1", "see you on Monday")))
		cand := h.rec().Pending[record.Approval]

		require.NoError(t, h.apply(events.OperatorAction{PromptRef: cand.PromptRef, Action: events.No}))
		rec := h.rec()
		assert.False(t, rec.Flags[record.Approval])
		assert.Empty(t, rec.Pending)
		assert.NotContains(t, h.documents.blobs, cand.Receipt.Key)
		assert.Empty(t, h.operator.kinds())
	})

	t.Run("classifier yes", func(t *testing.T) {
		h := newHarness(t)
		h.classifier.err = nil
		h.classifier.result.Match = true
		h.classifier.result.Confidence = 0.9
		h.toWaiting()

		require.NoError(t, h.apply(h.approvalReply("m-1", "fine by me, go ahead")))
		assert.True(t, h.rec().Flags[record.Approval])
	})
}

func TestReplaceAcceptedDocument(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()

	require.NoError(t, h.apply(h.invoiceReply("m-1", invoicePDF)))
	first := h.rec().Received[record.CounterDocument]

	err := h.apply(h.invoiceReply("m-2", invoicePDF))
	assert.ErrorIs(t, err, coordinator.ErrDuplicate)

	require.NoError(t, h.apply(h.invoiceReply("m-3", invoicePDF+"Oprava: 1700 EUR\n")))
	rec := h.rec()
	cand, ok := rec.Pending[record.CounterDocument]
	require.True(t, ok)
	assert.True(t, cand.Replace)
	assert.Equal(t, first, rec.Received[record.CounterDocument])
	assert.Equal(t, []operator.Kind{operator.KindReplace}, h.operator.kinds())

	require.NoError(t, h.apply(events.OperatorAction{PromptRef: cand.PromptRef, Action: events.Yes}))
	rec = h.rec()
	assert.Equal(t, cand.Receipt.Key, rec.Received[record.CounterDocument].Key)
	assert.NotContains(t, h.documents.blobs, first.Key)
	assert.Contains(t, h.documents.blobs, cand.Receipt.Key)
}

func TestMergeRetiresPendingReplace(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()

	require.NoError(t, h.apply(h.invoiceReply("m-1", invoicePDF)))
	require.NoError(t, h.apply(h.invoiceReply("m-2", invoicePDF+"Oprava: 1700 EUR\n")))
	cand, ok := h.rec().Pending[record.CounterDocument]
	require.True(t, ok)

	require.NoError(t, h.apply(h.approvalReply("m-3", "ok approved")))
	rec := h.rec()
	require.Equal(t, record.AllDocsReady, rec.State)
	assert.Empty(t, rec.Pending)
	assert.Equal(t, []operator.Kind{operator.KindFinal}, h.operator.kinds())
	assert.NotContains(t, h.documents.blobs, cand.Receipt.Key)

	err := h.apply(events.OperatorAction{PromptRef: cand.PromptRef, Action: events.Yes})
	assert.ErrorIs(t, err, coordinator.ErrStaleEvent)
}

func TestApprovalMarkupNotStored(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()

	reply := h.approvalReply("m-1", "")
	reply.Message.HTML = `<p>ok approved</p><script>alert(1)</script><img src=x onerror="alert(2)">`
	require.NoError(t, h.apply(reply))

	stored := string(h.documents.blobs[h.rec().Received[record.Approval].Key])
	assert.Contains(t, stored, "ok approved")
	assert.NotContains(t, stored, "<script")
	assert.NotContains(t, stored, "onerror")
	assert.NotContains(t, stored, "<img")
}

func TestDuplicateDelivery(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()

	msg := h.approvalReply("m-1", "approved")
	require.NoError(t, h.apply(msg))
	before := h.rec()

	err := h.apply(msg)
	assert.ErrorIs(t, err, coordinator.ErrDuplicate)
	assert.True(t, coordinator.Discarded(err))
	assert.Equal(t, before, h.rec())

	err = h.apply(h.approvalReply("m-9", "  approved "))
	assert.ErrorIs(t, err, coordinator.ErrDuplicate)

	invoice := h.invoiceReply("m-2", invoicePDF)
	require.NoError(t, h.apply(invoice))
	assert.Equal(t, record.AllDocsReady, h.rec().State)

	err = h.apply(invoice)
	assert.ErrorIs(t, err, coordinator.ErrStaleEvent)
	assert.Len(t, h.assembler.requests, 1)
}

func TestUnrelatedMessagesIgnored(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()
	before := h.rec()

	tests := []struct {
		name string
		msg  events.Message
	}{
		{"wrong thread", events.Message{ID: "x-1", ThreadID: "other", From: manager, Text: "approved"}},
		{"wrong sender", events.Message{ID: "x-2", ThreadID: before.Threads[record.Approval], From: "spam@example.com", Text: "approved"}},
		{"no thread", events.Message{ID: "x-3", From: manager, Text: "approved"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.apply(events.InboundMessage{Message: tt.msg})
			assert.ErrorIs(t, err, coordinator.ErrStaleEvent)
			assert.Equal(t, before, h.rec())
		})
	}

	t.Run("reply without invoice", func(t *testing.T) {
		msg := events.Message{
			ID:       "x-4",
			ThreadID: before.Threads[record.CounterDocument],
			From:     accountant,
			Text:     "faktura bude zajtra",
		}
		require.NoError(t, h.apply(events.InboundMessage{Message: msg}))
		assert.Equal(t, before, h.rec())
	})
}

func TestStaleEventsLeaveRecordUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		event func(h *harness) events.Event
	}{
		{
			name:  "approve in idle",
			setup: func(h *harness) {},
			event: func(h *harness) events.Event { return events.OperatorAction{PromptRef: "p-1", Action: events.Approve} },
		},
		{
			name:  "tick in idle",
			setup: func(h *harness) {},
			event: func(h *harness) events.Event { return events.Tick{At: start.Add(30 * 24 * time.Hour)} },
		},
		{
			name:  "message in idle",
			setup: func(h *harness) {},
			event: func(h *harness) events.Event {
				return events.InboundMessage{Message: events.Message{ID: "m", ThreadID: "t", From: manager}}
			},
		},
		{
			name:  "message in pending",
			setup: func(h *harness) { h.toPending() },
			event: func(h *harness) events.Event {
				return events.InboundMessage{Message: events.Message{ID: "m", ThreadID: "t", From: manager}}
			},
		},
		{
			name:  "approve with old ref in pending",
			setup: func(h *harness) { h.toPending() },
			event: func(h *harness) events.Event { return events.OperatorAction{PromptRef: "p-999", Action: events.Approve} },
		},
		{
			name:  "approve without ref in pending",
			setup: func(h *harness) { h.toPending() },
			event: func(h *harness) events.Event { return events.OperatorAction{Action: events.Approve} },
		},
		{
			name:  "approve in waiting",
			setup: func(h *harness) { h.toWaiting() },
			event: func(h *harness) events.Event { return events.OperatorAction{Action: events.Approve} },
		},
		{
			name:  "retry in waiting before documents",
			setup: func(h *harness) { h.toWaiting() },
			event: func(h *harness) events.Event { return events.OperatorAction{Action: events.Retry} },
		},
		{
			name:  "new document in waiting",
			setup: func(h *harness) { h.toWaiting() },
			event: func(h *harness) events.Event { return events.NewDocument{Path: h.dropTimesheet(timesheetPDF)} },
		},
		{
			name:  "message in ready",
			setup: func(h *harness) { h.toReady() },
			event: func(h *harness) events.Event { return h.approvalReply("m-5", "approved again") },
		},
		{
			name:  "tick in ready",
			setup: func(h *harness) { h.toReady() },
			event: func(h *harness) events.Event { return events.Tick{At: start.Add(30 * 24 * time.Hour)} },
		},
		{
			name:  "edit in ready",
			setup: func(h *harness) { h.toReady() },
			event: func(h *harness) events.Event {
				return events.OperatorAction{PromptRef: h.rec().PendingUIRef, Action: events.Edit, Value: "10"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)
			e := tt.event(h)
			before := h.rec()
			sent := len(h.transport.sent)

			err := h.apply(e)
			assert.ErrorIs(t, err, coordinator.ErrStaleEvent)
			assert.Equal(t, before, h.rec())
			assert.Len(t, h.transport.sent, sent)
		})
	}
}

func TestBusyDocumentLeftInPlace(t *testing.T) {
	h := newHarness(t)
	h.toPending()

	p := h.dropTimesheet(timesheetPDF)
	err := h.apply(events.NewDocument{Path: p})
	assert.ErrorIs(t, err, coordinator.ErrStaleEvent)
	assert.FileExists(t, p)
	assert.Contains(t, h.operator.lastNotice(), "timesheet.pdf")
}

func TestUnparseableTimesheet(t *testing.T) {
	h := newHarness(t)

	p := h.dropTimesheet("%PDF-1.7\nnothing useful here\n")
	err := h.apply(events.NewDocument{Path: p})
	assert.ErrorIs(t, err, coordinator.ErrValidation)
	assert.Equal(t, record.Idle, h.rec().State)
	assert.FileExists(t, p)
	assert.Contains(t, h.operator.lastNotice(), "Could not parse")

	require.NoError(t, os.WriteFile(p, []byte("plain text"), 0o644))
	err = h.apply(events.NewDocument{Path: p})
	assert.ErrorIs(t, err, coordinator.ErrValidation)
}

func TestPartialSendResumes(t *testing.T) {
	h := newHarness(t)
	h.toPending()
	h.transport.fail[2] = errors.New("smtp down")

	err := h.act(events.Approve, "")
	assert.ErrorIs(t, err, coordinator.ErrTransient)

	rec := h.rec()
	assert.Equal(t, record.PendingInitApproval, rec.State)
	assert.NotEmpty(t, rec.Threads[record.Approval])
	assert.Empty(t, rec.Threads[record.CounterDocument])
	require.Len(t, h.transport.sent, 1)
	assert.Contains(t, h.operator.lastNotice(), "failed")

	require.NoError(t, h.act(events.Approve, ""))
	rec = h.rec()
	assert.Equal(t, record.WaitingDocs, rec.State)
	require.Len(t, h.transport.sent, 2)
	assert.Equal(t, []string{accountant}, h.transport.sent[1].To)
}

func TestFinalSendFailureKeepsReady(t *testing.T) {
	h := newHarness(t)
	h.toReady()
	h.transport.fail[3] = errors.New("smtp down")

	err := h.act(events.Approve, "")
	assert.ErrorIs(t, err, coordinator.ErrTransient)
	assert.Equal(t, record.AllDocsReady, h.rec().State)
	assert.Empty(t, h.documents.archives)

	require.NoError(t, h.act(events.Approve, ""))
	assert.Equal(t, record.Idle, h.rec().State)
}

func TestMergeFailureOffersRetry(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()
	h.assembler.fail = errors.New("render failed")

	require.NoError(t, h.apply(h.approvalReply("m-1", "approved")))
	err := h.apply(h.invoiceReply("m-2", invoicePDF))
	assert.ErrorIs(t, err, coordinator.ErrTransient)

	rec := h.rec()
	assert.Equal(t, record.WaitingDocs, rec.State)
	assert.True(t, rec.Ready())
	assert.Equal(t, []operator.Kind{operator.KindRetry}, h.operator.kinds())

	h.assembler.fail = nil
	require.NoError(t, h.act(events.Retry, ""))
	assert.Equal(t, record.AllDocsReady, h.rec().State)
	assert.Equal(t, []operator.Kind{operator.KindFinal}, h.operator.kinds())
}

func TestArchiveFailureRetries(t *testing.T) {
	h := newHarness(t)
	h.toReady()
	h.documents.failArchive = errors.New("blob offline")

	err := h.act(events.Approve, "")
	assert.ErrorIs(t, err, coordinator.ErrTransient)
	assert.Equal(t, record.Complete, h.rec().State)
	assert.Equal(t, []operator.Kind{operator.KindRetry}, h.operator.kinds())

	h.documents.failArchive = nil
	require.NoError(t, h.act(events.Retry, ""))
	assert.Equal(t, record.Idle, h.rec().State)
	assert.Len(t, h.transport.sent, 3)
}

func TestReminders(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()
	day := 24 * time.Hour

	require.NoError(t, h.apply(events.Tick{At: start.Add(3 * day)}))
	assert.Empty(t, h.operator.kinds())

	require.NoError(t, h.apply(events.Tick{At: start.Add(7*day + time.Hour)}))
	assert.Equal(t, []operator.Kind{operator.KindReminder}, h.operator.kinds())
	first := h.rec().LastReminderAt
	require.NotNil(t, first)

	require.NoError(t, h.apply(events.Tick{At: start.Add(8 * day)}))
	assert.Equal(t, first, h.rec().LastReminderAt)

	require.NoError(t, h.apply(events.Tick{At: start.Add(14*day + time.Hour)}))
	second := h.rec().LastReminderAt
	require.NotNil(t, second)
	assert.True(t, second.After(*first))
	assert.Len(t, h.operator.kinds(), 1)

	require.NoError(t, h.apply(events.Tick{At: start.Add(14*day + 2*time.Hour)}))
	assert.Equal(t, second, h.rec().LastReminderAt)

	require.NoError(t, h.apply(events.Tick{At: start.Add(15*day + time.Hour)}))
	assert.True(t, h.rec().LastReminderAt.After(*second))

	require.NoError(t, h.act(events.Cancel, ""))
	assert.Equal(t, record.Idle, h.rec().State)
}

func TestRunProcessesQueue(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()

	require.True(t, h.c.Submit(events.NewDocument{Path: h.dropTimesheet(timesheetPDF)}))
	require.Eventually(t, func() bool {
		return h.c.Status().State == record.PendingInitApproval
	}, 2*time.Second, 10*time.Millisecond)

	ref := h.c.Status().PromptRef
	require.True(t, h.c.Submit(events.OperatorAction{PromptRef: ref, Action: events.Approve}))
	require.Eventually(t, func() bool {
		return h.c.Status().State == record.WaitingDocs
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestShutdownAppliesQueuedMessages(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()

	inbox := &fakeInbox{pending: []events.Message{h.approvalReply("m-1", "ok approved").Message}}
	retryCfg := retry.Config{MaxRetries: 1, InitialInterval: "1ms", MaxInterval: "1ms"}
	p := mailbox.NewPoller(inbox, h.c, time.Hour, retryCfg, discard())

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Empty(t, inbox.marked())

	lc := lifecycle.New()
	require.NoError(t, h.c.Start(lc))
	require.NoError(t, lc.Shutdown(5*time.Second))

	assert.Equal(t, []string{"m-1"}, inbox.marked())
	assert.Zero(t, p.InFlight())
	assert.False(t, h.c.Submit(events.Tick{At: h.now}))

	restarted := h.build()
	_, ok := restarted.Record().Received[record.Approval]
	assert.True(t, ok, "approval survives the restart")
}

func TestFailedMessageIsNotAcknowledged(t *testing.T) {
	h := newHarness(t)
	h.toWaiting()

	h.documents.failStore = errors.New("blob service unavailable")
	msg := h.approvalReply("m-1", "ok approved")

	var acks []bool
	msg.Ack = func(handled bool) { acks = append(acks, handled) }
	require.True(t, h.c.Submit(msg))

	lc := lifecycle.New()
	require.NoError(t, h.c.Start(lc))
	require.NoError(t, lc.Shutdown(5*time.Second))

	assert.Equal(t, []bool{false}, acks)
	_, ok := h.rec().Received[record.Approval]
	assert.False(t, ok)
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/geniehr/payroll-service/internal/domain"
	"github.com/geniehr/payroll-service/pkg/payclient"
)

func TestAllowedTransitionCoversOnlyTableEntries(t *testing.T) {
	statuses := []domain.BatchStatus{
		domain.BatchDraft,
		domain.BatchAwaitingApproval,
		domain.BatchApproved,
		domain.BatchExecuting,
		domain.BatchPartiallyFailed,
		domain.BatchCompleted,
	}
	events := []string{
		EventSubmitForApproval,
		EventApprove,
		EventDecline,
		EventWithdraw,
		EventExecute,
		EventRetryFailed,
		EventAllSucceeded,
		EventAnyFailed,
	}

	// Late receipts complete a partially-failed batch through settlement
	// evaluation, not through a caller-invoked event, so that pair is
	// deliberately absent here.
	defined := map[string]domain.BatchStatus{
		string(domain.BatchDraft) + "/" + EventSubmitForApproval:     domain.BatchAwaitingApproval,
		string(domain.BatchAwaitingApproval) + "/" + EventApprove:    domain.BatchApproved,
		string(domain.BatchAwaitingApproval) + "/" + EventDecline:    domain.BatchDraft,
		string(domain.BatchAwaitingApproval) + "/" + EventWithdraw:   domain.BatchDraft,
		string(domain.BatchApproved) + "/" + EventExecute:            domain.BatchExecuting,
		string(domain.BatchExecuting) + "/" + EventAllSucceeded:      domain.BatchCompleted,
		string(domain.BatchExecuting) + "/" + EventAnyFailed:         domain.BatchPartiallyFailed,
		string(domain.BatchPartiallyFailed) + "/" + EventRetryFailed: domain.BatchExecuting,
	}

	for _, status := range statuses {
		for _, event := range events {
			to, ok := allowedTransition(status, event)
			want, wantOK := defined[string(status)+"/"+event]
			if ok != wantOK {
				t.Errorf("(%s, %s): allowed=%v, want %v", status, event, ok, wantOK)
				continue
			}
			if ok && to != want {
				t.Errorf("(%s, %s): target %s, want %s", status, event, to, want)
			}
		}
	}
}

func TestInvalidTransitionLeavesStatusAndRecordsErrorEvent(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	batch := h.draftBatch(t, testPayee(t, "w-1", "EUR", "3000"))

	_, err := h.service.ExecuteBatch(ctx, batch.ID, "user-1")
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != domain.BatchDraft || invalid.Event != EventExecute {
		t.Fatalf("unexpected error detail: %+v", invalid)
	}

	loaded, err := h.service.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if loaded.Status != domain.BatchDraft {
		t.Fatalf("status must be unchanged, got %s", loaded.Status)
	}
	if !hasEventContaining(loaded, domain.LevelError, "execute rejected") {
		t.Fatal("expected an error-level event recording the rejected attempt")
	}
}

func TestExecuteDispatchesEveryPayee(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	batch := h.approvedBatch(t,
		testPayee(t, "w-1", "EUR", "3000"),
		testPayee(t, "w-2", "GBP", "2500"),
	)

	batch, err := h.service.ExecuteBatch(ctx, batch.ID, "ops-1")
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if batch.Status != domain.BatchExecuting {
		t.Fatalf("expected executing, got %s", batch.Status)
	}
	if len(h.dispatcher.dispatched) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(h.dispatcher.dispatched))
	}
	for _, workerID := range []string{"w-1", "w-2"} {
		receipt := batch.ReceiptByPayeeID(workerID)
		if receipt == nil || receipt.Status != domain.ReceiptInitiated {
			t.Fatalf("expected initiated receipt for %s, got %+v", workerID, receipt)
		}
		if batch.PayeeByWorkerID(workerID).Status != domain.PayeeExecuting {
			t.Fatalf("expected payee %s executing", workerID)
		}
	}
}

func TestExecuteWithExpiredLockRejected(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	batch := h.approvedBatch(t, testPayee(t, "w-1", "EUR", "3000"))

	h.advance(time.Duration(DefaultLockTTLSeconds)*time.Second + time.Second)

	_, err := h.service.ExecuteBatch(ctx, batch.ID, "ops-1")
	var expired *domain.LockExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected LockExpiredError, got %v", err)
	}

	loaded, err := h.service.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if loaded.Status != domain.BatchApproved {
		t.Fatalf("batch must stay approved, got %s", loaded.Status)
	}
	if len(h.dispatcher.dispatched) != 0 {
		t.Fatal("no payment may be dispatched at expired rates")
	}
	if !hasEventContaining(loaded, domain.LevelError, "fx lock expired") {
		t.Fatal("expected an error-level event recording the expired lock")
	}
}

func TestDispatchFailureMovesBatchToPartiallyFailed(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.dispatcher.failFor["w-2"] = fmt.Errorf("provider timeout")

	batch := h.approvedBatch(t,
		testPayee(t, "w-1", "EUR", "3000"),
		testPayee(t, "w-2", "GBP", "2500"),
	)

	batch, err := h.service.ExecuteBatch(ctx, batch.ID, "ops-1")
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if batch.Status != domain.BatchPartiallyFailed {
		t.Fatalf("expected partially_failed, got %s", batch.Status)
	}
	if batch.PayeeByWorkerID("w-2").Status != domain.PayeeFailed {
		t.Fatal("expected w-2 to be failed")
	}
	if batch.PayeeByWorkerID("w-1").Status != domain.PayeeExecuting {
		t.Fatal("w-1 must keep executing")
	}
}

func TestExplicitProviderRejectionRecordedAsError(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	var rejection payclient.ErrorResponse
	if err := json.Unmarshal([]byte(`{"errors":[{"title":"invalid account","detail":"payee bank account closed","status":"422"}]}`), &rejection); err != nil {
		t.Fatalf("unmarshal rejection: %v", err)
	}
	h.dispatcher.failFor["w-2"] = &rejection

	batch := h.approvedBatch(t,
		testPayee(t, "w-1", "EUR", "3000"),
		testPayee(t, "w-2", "GBP", "2500"),
	)

	batch, err := h.service.ExecuteBatch(ctx, batch.ID, "ops-1")
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if batch.PayeeByWorkerID("w-2").Status != domain.PayeeFailed {
		t.Fatal("expected w-2 to be failed")
	}
	if !hasEventContaining(batch, domain.LevelError, "dispatch rejected for payee w-2") {
		t.Fatal("an affirmative provider rejection must be recorded at error level")
	}
	if hasEventContaining(batch, domain.LevelWarn, "dispatch failed for payee w-2") {
		t.Fatal("a rejection must not also be recorded as an ambiguous failure")
	}
}

func TestRetryFailedOnlyRedispatchesFailedPayees(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.dispatcher.failFor["w-2"] = fmt.Errorf("provider timeout")

	batch := h.approvedBatch(t,
		testPayee(t, "w-1", "EUR", "3000"),
		testPayee(t, "w-2", "GBP", "2500"),
	)
	batch, err := h.service.ExecuteBatch(ctx, batch.ID, "ops-1")
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if batch.Status != domain.BatchPartiallyFailed {
		t.Fatalf("expected partially_failed, got %s", batch.Status)
	}
	firstRef := batch.ReceiptByPayeeID("w-1").ProviderRef

	delete(h.dispatcher.failFor, "w-2")
	h.dispatcher.dispatched = nil

	batch, err = h.service.RetryFailed(ctx, batch.ID, "ops-1")
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if batch.Status != domain.BatchExecuting {
		t.Fatalf("expected executing after retry, got %s", batch.Status)
	}
	if len(h.dispatcher.dispatched) != 1 || h.dispatcher.dispatched[0] != "w-2" {
		t.Fatalf("only w-2 may be re-dispatched, got %v", h.dispatcher.dispatched)
	}
	if batch.ReceiptByPayeeID("w-1").ProviderRef != firstRef {
		t.Fatal("succeeded payee's receipt must be untouched by retry")
	}
	if batch.ReceiptByPayeeID("w-2").Status != domain.ReceiptInitiated {
		t.Fatal("retried payee must hold a fresh initiated receipt")
	}
}

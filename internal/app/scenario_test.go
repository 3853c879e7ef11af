package app

import (
	"context"
	"testing"
	"time"

	"github.com/geniehr/payroll-service/internal/domain"
)

// TestHappyPathPayrollRun walks one batch through the full lifecycle:
// draft, payee setup, FX recalculation and lock, dual-control approval,
// execution, and settlement to completed.
func TestHappyPathPayrollRun(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	batch, err := h.service.CreateBatch(ctx, "2026-03", "prep-1")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	for _, p := range []domain.PayrollPayee{
		testPayee(t, "w-1", "EUR", "3000"),
		testPayee(t, "w-2", "GBP", "2500"),
	} {
		if _, err := h.service.AddPayee(ctx, batch.ID, p, "prep-1"); err != nil {
			t.Fatalf("AddPayee(%s): %v", p.WorkerID, err)
		}
		if _, err := h.service.RecomputeReadiness(ctx, batch.ID, p.WorkerID, "prep-1"); err != nil {
			t.Fatalf("RecomputeReadiness(%s): %v", p.WorkerID, err)
		}
	}

	if _, err := h.service.EditAdjustment(ctx, batch.ID, "w-1",
		domain.Adjustment{Amount: money(t, "250", "EUR"), Label: "on-call bonus"}, "prep-1"); err != nil {
		t.Fatalf("EditAdjustment: %v", err)
	}

	b, err := h.service.RecalculateFX(ctx, batch.ID, "prep-1")
	if err != nil {
		t.Fatalf("RecalculateFX: %v", err)
	}
	if _, err := h.service.LockFX(ctx, batch.ID, b.FXSnapshot.ID, 600, "prep-1"); err != nil {
		t.Fatalf("LockFX: %v", err)
	}

	if _, err := h.service.SubmitForApproval(ctx, batch.ID, "prep-1", "march payroll"); err != nil {
		t.Fatalf("SubmitForApproval: %v", err)
	}
	h.advance(2 * time.Minute)
	if _, err := h.service.Approve(ctx, batch.ID, "appr-1", "checked totals"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	h.advance(2 * time.Minute)
	if _, err := h.service.ExecuteBatch(ctx, batch.ID, "appr-1"); err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}

	if _, err := h.service.IngestBankFile(ctx, batch.ID, []BankFileRow{
		{PayeeID: "w-1", ProviderRef: "bank-1", Amount: "3250", Currency: "EUR", Status: "paid"},
		{PayeeID: "w-2", ProviderRef: "bank-2", Amount: "2500", Currency: "GBP", Status: "paid"},
	}); err != nil {
		t.Fatalf("IngestBankFile: %v", err)
	}

	final, err := h.service.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if final.Status != domain.BatchCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}

	// The trail must record every lifecycle step of the run.
	trail, err := h.service.AuditTrail(ctx, batch.ID, AuditFilter{})
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(trail) < 5 {
		t.Fatalf("expected a rich audit trail, got %d entries", len(trail))
	}
	for _, want := range []string{
		"batch created",
		"fx rates locked",
		"batch moved from draft to awaiting_approval",
		"batch moved from awaiting_approval to approved",
		"batch moved from approved to executing",
		"batch moved from executing to completed",
	} {
		if !hasEventContaining(final, domain.LevelInfo, want) {
			t.Errorf("missing audit entry containing %q", want)
		}
	}

	summary, err := h.service.GetBatchSummary(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatchSummary: %v", err)
	}
	if summary.PercentComplete != 100 {
		t.Fatalf("expected 100%% complete, got %d", summary.PercentComplete)
	}
}

// TestRefreshDraftSnapshotsSkipsLockedBatches exercises the background FX
// refresh sweep: draft batches with unlocked snapshots are refreshed, live
// locks are left alone.
func TestRefreshDraftSnapshotsSkipsLockedBatches(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	unlocked := h.draftBatch(t, testPayee(t, "w-1", "EUR", "3000"))
	if _, err := h.service.RecalculateFX(ctx, unlocked.ID, "prep-1"); err != nil {
		t.Fatalf("RecalculateFX: %v", err)
	}
	locked := h.lockedBatch(t, testPayee(t, "w-2", "GBP", "2500"))

	h.fxPrimary.calls = 0
	refreshed, err := h.service.RefreshDraftSnapshots(ctx)
	if err != nil {
		t.Fatalf("RefreshDraftSnapshots: %v", err)
	}
	if refreshed != 1 {
		t.Fatalf("expected exactly the unlocked batch to refresh, got %d", refreshed)
	}

	stillLocked, _ := h.service.GetBatch(ctx, locked.ID)
	if !stillLocked.FXSnapshot.IsLocked() {
		t.Fatal("locked snapshot must survive the sweep untouched")
	}
}

// TestRemindStaleApprovals exercises the reminder sweep threshold.
func TestRemindStaleApprovals(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	batch := h.lockedBatch(t, testPayee(t, "w-1", "EUR", "3000"))
	if _, err := h.service.SubmitForApproval(ctx, batch.ID, "prep-1", ""); err != nil {
		t.Fatalf("SubmitForApproval: %v", err)
	}

	// Fresh submission: below the threshold, no reminder.
	reminded, err := h.service.RemindStaleApprovals(ctx, time.Hour)
	if err != nil {
		t.Fatalf("RemindStaleApprovals: %v", err)
	}
	if reminded != 0 {
		t.Fatalf("expected no reminders for a fresh submission, got %d", reminded)
	}

	h.advance(2 * time.Hour)
	reminded, err = h.service.RemindStaleApprovals(ctx, time.Hour)
	if err != nil {
		t.Fatalf("RemindStaleApprovals: %v", err)
	}
	if reminded != 1 {
		t.Fatalf("expected one reminder past the threshold, got %d", reminded)
	}
}

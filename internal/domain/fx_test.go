package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func lockedSnapshot(lockedAt time.Time, ttlSeconds int64) *FXSnapshot {
	ttl := ttlSeconds
	at := lockedAt
	return &FXSnapshot{
		ID:             uuid.New(),
		BaseCurrency:   "USD",
		LockedAt:       &at,
		LockTTLSeconds: &ttl,
		CreatedAt:      lockedAt,
	}
}

func TestSnapshotExpiryBoundary(t *testing.T) {
	t0 := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	snap := lockedSnapshot(t0, 900)

	if snap.IsExpired(t0.Add(899 * time.Second)) {
		t.Fatal("lock must be live one second before the boundary")
	}
	if !snap.IsExpired(t0.Add(900 * time.Second)) {
		t.Fatal("lock must be expired exactly at the boundary")
	}
	if !snap.IsExpired(t0.Add(901 * time.Second)) {
		t.Fatal("lock must stay expired past the boundary")
	}
}

func TestUnlockedSnapshotNeverExpires(t *testing.T) {
	snap := &FXSnapshot{ID: uuid.New(), BaseCurrency: "USD"}
	if snap.IsLocked() {
		t.Fatal("snapshot without LockedAt must not count as locked")
	}
	if snap.IsExpired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Fatal("unlocked snapshots never expire")
	}
	if _, ok := snap.ExpiresAt(); ok {
		t.Fatal("unlocked snapshot has no expiry instant")
	}
}

func TestExpiredLockStillCountsAsLocked(t *testing.T) {
	t0 := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	snap := lockedSnapshot(t0, 60)

	now := t0.Add(time.Hour)
	if !snap.IsExpired(now) {
		t.Fatal("lock should have lapsed")
	}
	// Spent, not reusable: the lock flag never resets.
	if !snap.IsLocked() {
		t.Fatal("expired snapshot must still report locked")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	t0 := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	snap := lockedSnapshot(t0, 900)
	variance := 25
	snap.VarianceBps = &variance

	cp := snap.Clone()
	*cp.LockTTLSeconds = 1
	*cp.VarianceBps = 99

	if *snap.LockTTLSeconds != 900 {
		t.Fatal("clone must not share the TTL pointer")
	}
	if *snap.VarianceBps != 25 {
		t.Fatal("clone must not share the variance pointer")
	}
}

func TestPreparerWalksBackToLastRequest(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	b := NewPayrollBatch("2026-03", now)

	if got := b.Preparer(); got != "" {
		t.Fatalf("unsubmitted batch has no preparer, got %q", got)
	}

	b.AppendApproval(now, RolePreparer, ApprovalRequested, "alice", "")
	b.AppendApproval(now, RoleApprover, ApprovalDeclined, "bob", "")
	b.AppendApproval(now, RolePreparer, ApprovalRequested, "carol", "")

	if got := b.Preparer(); got != "carol" {
		t.Fatalf("expected preparer of the latest submission, got %q", got)
	}
}

func TestAppendStampsMonotonicSequence(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	b := NewPayrollBatch("2026-03", now)

	b.AppendEvent(now, ActorUser, "alice", LevelInfo, "one")
	b.AppendApproval(now, RolePreparer, ApprovalRequested, "alice", "")
	b.AppendEvent(now, ActorSystem, "", LevelWarn, "two")

	if b.Events[0].Seq != 1 || b.Approvals[0].Seq != 2 || b.Events[1].Seq != 3 {
		t.Fatalf("sequence must be shared and monotonic across both logs: %d, %d, %d",
			b.Events[0].Seq, b.Approvals[0].Seq, b.Events[1].Seq)
	}
}

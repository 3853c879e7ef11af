package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
)

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	batch := domain.NewPayrollBatch("2026-03", now)
	batch.AppendEvent(now, domain.ActorUser, "prep-1", domain.LevelInfo, "batch created")
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	loaded, err := repo.FindBatchByID(ctx, batch.ID)
	if err != nil {
		t.Fatalf("FindBatchByID: %v", err)
	}
	if loaded.PayPeriod != "2026-03" || len(loaded.Events) != 1 {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}

func TestMemoryRepositoryHandsOutDeepCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	batch := domain.NewPayrollBatch("2026-03", now)
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	first, _ := repo.FindBatchByID(ctx, batch.ID)
	first.Status = domain.BatchCompleted
	first.AppendEvent(now, domain.ActorSystem, "", domain.LevelError, "mutated copy")

	second, _ := repo.FindBatchByID(ctx, batch.ID)
	if second.Status != domain.BatchDraft {
		t.Fatal("mutating a returned copy must not affect the stored aggregate")
	}
	if len(second.Events) != 0 {
		t.Fatal("events appended to a copy must not leak into the store")
	}
}

func TestMemoryRepositoryFindUnknownBatch(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.FindBatchByID(context.Background(), uuid.New()); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
	if err := repo.SaveBatch(context.Background(), domain.NewPayrollBatch("2026-03", time.Now())); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound on save, got %v", err)
	}
}

func TestMemoryRepositoryListByStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	draft := domain.NewPayrollBatch("2026-03", now)
	executing := domain.NewPayrollBatch("2026-03", now)
	executing.Status = domain.BatchExecuting
	for _, b := range []*domain.PayrollBatch{draft, executing} {
		if err := repo.CreateBatch(ctx, b); err != nil {
			t.Fatalf("CreateBatch: %v", err)
		}
	}

	drafts, err := repo.ListBatchesByStatus(ctx, domain.BatchDraft)
	if err != nil {
		t.Fatalf("ListBatchesByStatus: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != draft.ID {
		t.Fatalf("expected exactly the draft batch, got %+v", drafts)
	}
}

func TestMemoryRepositoryDeleteDraftOnly(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	executing := domain.NewPayrollBatch("2026-03", now)
	executing.Status = domain.BatchExecuting
	if err := repo.CreateBatch(ctx, executing); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := repo.DeleteDraftBatch(ctx, executing.ID); !errors.Is(err, ErrBatchNotDraft) {
		t.Fatalf("expected ErrBatchNotDraft, got %v", err)
	}

	draft := domain.NewPayrollBatch("2026-03", now)
	if err := repo.CreateBatch(ctx, draft); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := repo.DeleteDraftBatch(ctx, draft.ID); err != nil {
		t.Fatalf("DeleteDraftBatch: %v", err)
	}
	if _, err := repo.FindBatchByID(ctx, draft.ID); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected batch gone, got %v", err)
	}
}

/**
 * @description
 * In-memory implementation of the `Repository` interface. Used by tests and as
 * the backing store when no DATABASE_URL is configured (demo mode). Reads and
 * writes exchange deep copies, so readers get snapshot isolation for free.
 */

package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
)

// MemoryRepository is a thread-safe, map-backed Repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]*domain.PayrollBatch
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{batches: make(map[uuid.UUID]*domain.PayrollBatch)}
}

func (r *MemoryRepository) CreateBatch(ctx context.Context, batch *domain.PayrollBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = batch.Clone()
	return nil
}

func (r *MemoryRepository) FindBatchByID(ctx context.Context, batchID uuid.UUID) (*domain.PayrollBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return batch.Clone(), nil
}

func (r *MemoryRepository) SaveBatch(ctx context.Context, batch *domain.PayrollBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batch.ID]; !ok {
		return ErrBatchNotFound
	}
	r.batches[batch.ID] = batch.Clone()
	return nil
}

func (r *MemoryRepository) ListBatchesByStatus(ctx context.Context, status domain.BatchStatus) ([]domain.PayrollBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PayrollBatch
	for _, batch := range r.batches {
		if batch.Status == status {
			out = append(out, *batch.Clone())
		}
	}
	return out, nil
}

func (r *MemoryRepository) DeleteDraftBatch(ctx context.Context, batchID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	if batch.Status != domain.BatchDraft {
		return ErrBatchNotDraft
	}
	delete(r.batches, batchID)
	return nil
}

/**
 * @description
 * This file defines the `Repository` interface: the contract for persisting
 * payroll batch aggregates. The app layer loads the whole aggregate, mutates
 * it under the batch's critical section, and saves it back; the repository
 * never exposes partial writes to `status`, `approvals`, or `receipts`.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: Batch identifiers.
 * - internal/domain: The payroll domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
)

var (
	ErrBatchNotFound = errors.New("payroll batch not found")

	// ErrBatchNotDraft guards deletion: batches that have left draft are never
	// deleted, only archived (archival is out of scope for this service).
	ErrBatchNotDraft = errors.New("payroll batch is not in draft and cannot be deleted")
)

// Repository defines the set of methods for persisting payroll batches.
// Implementations must return deep copies from reads so callers can never
// observe a partially mutated aggregate.
type Repository interface {
	CreateBatch(ctx context.Context, batch *domain.PayrollBatch) error
	FindBatchByID(ctx context.Context, batchID uuid.UUID) (*domain.PayrollBatch, error)
	SaveBatch(ctx context.Context, batch *domain.PayrollBatch) error
	ListBatchesByStatus(ctx context.Context, status domain.BatchStatus) ([]domain.PayrollBatch, error)
	DeleteDraftBatch(ctx context.Context, batchID uuid.UUID) error
}

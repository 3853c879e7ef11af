/**
 * @description
 * This file contains the core service for the payroll batch processing engine.
 * The `Service` struct owns the batch lifecycle: it coordinates the payee
 * ledger, the FX snapshot manager, the dual-control approval workflow, batch
 * execution through the payment dispatcher, and reconciliation of settlement
 * receipts, appending every state-affecting action to the batch's audit trail.
 *
 * Key invariants enforced here:
 * - All mutations for one batch are serialized through a per-batch mutex; the
 *   repository hands out deep copies, so readers never observe partial state.
 * - FX lock validity is re-checked at the point of use (approve, execute),
 *   never cached from an earlier step.
 * - Transitions are atomic: the aggregate is mutated on a private copy and
 *   persisted in one save.
 *
 * @dependencies
 * - context, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: Batch identifiers.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/fxclient, pkg/payclient, pkg/complianceclient, pkg/rabbitmq: External collaborators.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
	"github.com/geniehr/payroll-service/internal/store"
	"github.com/geniehr/payroll-service/pkg/complianceclient"
	"github.com/geniehr/payroll-service/pkg/fxclient"
	"github.com/geniehr/payroll-service/pkg/payclient"
	"github.com/geniehr/payroll-service/pkg/rabbitmq"
)

// DefaultLockTTLSeconds is the FX lock window applied when the caller does not
// request a specific TTL.
const DefaultLockTTLSeconds int64 = 900

// Service provides the core business logic for payroll batches.
type Service struct {
	repo                 store.Repository
	fxPrimary            fxclient.RateProvider
	fxFallback           fxclient.RateProvider
	dispatcher           payclient.Dispatcher
	compliance           complianceclient.Evaluator
	producer             rabbitmq.Publisher
	notificationExchange string
	baseCurrency         string
	defaultLockTTL       int64

	locks *batchLocker

	// now is the service clock; tests substitute a fixed clock to exercise
	// lock-expiry boundaries deterministically.
	now func() time.Time
}

// NewService creates a new payroll service instance.
func NewService(
	repo store.Repository,
	fxPrimary fxclient.RateProvider,
	fxFallback fxclient.RateProvider,
	dispatcher payclient.Dispatcher,
	compliance complianceclient.Evaluator,
	producer rabbitmq.Publisher,
	notificationExchange string,
	baseCurrency string,
	defaultLockTTLSeconds int64,
) *Service {
	if defaultLockTTLSeconds <= 0 {
		defaultLockTTLSeconds = DefaultLockTTLSeconds
	}
	return &Service{
		repo:                 repo,
		fxPrimary:            fxPrimary,
		fxFallback:           fxFallback,
		dispatcher:           dispatcher,
		compliance:           compliance,
		producer:             producer,
		notificationExchange: notificationExchange,
		baseCurrency:         baseCurrency,
		defaultLockTTL:       defaultLockTTLSeconds,
		locks:                newBatchLocker(),
		now:                  func() time.Time { return time.Now().UTC() },
	}
}

// CreateBatch creates an empty draft batch for a pay period.
func (s *Service) CreateBatch(ctx context.Context, payPeriod, actorID string) (*domain.PayrollBatch, error) {
	now := s.now()
	batch := domain.NewPayrollBatch(payPeriod, now)
	batch.AppendEvent(now, domain.ActorUser, actorID, domain.LevelInfo,
		fmt.Sprintf("batch created for pay period %s", payPeriod))
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	return batch, nil
}

// GetBatch returns a snapshot copy of the aggregate. Reads do not take the
// batch lock; the repository's deep copies give snapshot isolation.
func (s *Service) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.PayrollBatch, error) {
	return s.repo.FindBatchByID(ctx, batchID)
}

// GetBatchSummary derives the read-only progress rollup for a batch.
func (s *Service) GetBatchSummary(ctx context.Context, batchID uuid.UUID) (*domain.BatchSummary, error) {
	batch, err := s.repo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	summary := domain.Summarize(batch)
	return &summary, nil
}

// DeleteDraftBatch removes a batch that is still in draft.
func (s *Service) DeleteDraftBatch(ctx context.Context, batchID uuid.UUID) error {
	unlock := s.locks.Lock(batchID)
	defer unlock()
	return s.repo.DeleteDraftBatch(ctx, batchID)
}

// mutateBatch runs fn on a private copy of the aggregate under the batch's
// critical section and persists the result in one save. fn may return an
// error and still have appended audit events; the save happens regardless so
// failed attempts remain visible in the trail.
func (s *Service) mutateBatch(ctx context.Context, batchID uuid.UUID, fn func(batch *domain.PayrollBatch) error) (*domain.PayrollBatch, error) {
	unlock := s.locks.Lock(batchID)
	defer unlock()

	batch, err := s.repo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	opErr := fn(batch)

	if saveErr := s.repo.SaveBatch(ctx, batch); saveErr != nil {
		if opErr != nil {
			return nil, fmt.Errorf("failed to persist batch after %v: %w", opErr, saveErr)
		}
		return nil, fmt.Errorf("failed to persist batch: %w", saveErr)
	}
	if opErr != nil {
		return batch, opErr
	}
	return batch, nil
}

// notify publishes a batch notification. Failures are logged and surfaced to
// the caller so they can be recorded as warn-level batch events; they are
// never fatal to the core.
func (s *Service) notify(ctx context.Context, batch *domain.PayrollBatch, kind, message, actorID string) error {
	if s.producer == nil {
		return nil
	}
	err := s.producer.PublishBatchNotification(ctx, s.notificationExchange, rabbitmq.BatchNotificationEvent{
		BatchID:   batch.ID.String(),
		PayPeriod: batch.PayPeriod,
		Status:    string(batch.Status),
		Kind:      kind,
		Message:   message,
		ActorID:   actorID,
		Timestamp: s.now(),
	})
	if err != nil {
		log.Printf("level=warn component=service flow=notify msg=\"notification publish failed\" batch_id=%s kind=%s err=%v", batch.ID, kind, err)
	}
	return err
}

/**
 * @description
 * This file implements the payee ledger: adding, removing, and adjusting
 * per-worker pay lines, and recording readiness verdicts from the external
 * country compliance evaluator. Every mutating operation requires the parent
 * batch to still be in draft.
 */

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
)

// AddPayee appends a worker's pay line to a draft batch. New payees start
// NotReady until the compliance evaluator has passed them.
func (s *Service) AddPayee(ctx context.Context, batchID uuid.UUID, payee domain.PayrollPayee, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if batch.Status != domain.BatchDraft {
			return domain.ErrBatchNotEditable
		}
		if batch.PayeeByWorkerID(payee.WorkerID) != nil {
			return fmt.Errorf("worker %s is already in the batch", payee.WorkerID)
		}
		if payee.Status == "" {
			payee.Status = domain.PayeeNotReady
		}
		// Adjustments must share the gross currency; reject up front so net
		// derivation can never fail later.
		if _, err := payee.NetPay(); err != nil {
			return err
		}
		batch.Payees = append(batch.Payees, payee)
		batch.AppendEvent(s.now(), domain.ActorUser, actorID, domain.LevelInfo,
			fmt.Sprintf("payee %s (%s) added to batch", payee.WorkerID, payee.Name))
		return nil
	})
}

// RemovePayee removes a worker's pay line from a draft batch.
func (s *Service) RemovePayee(ctx context.Context, batchID uuid.UUID, workerID, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if batch.Status != domain.BatchDraft {
			return domain.ErrBatchNotEditable
		}
		for i := range batch.Payees {
			if batch.Payees[i].WorkerID == workerID {
				batch.Payees = append(batch.Payees[:i], batch.Payees[i+1:]...)
				batch.AppendEvent(s.now(), domain.ActorUser, actorID, domain.LevelInfo,
					fmt.Sprintf("payee %s removed from batch", workerID))
				return nil
			}
		}
		return fmt.Errorf("worker %s is not in the batch", workerID)
	})
}

// EditAdjustment appends a signed, labelled adjustment to a payee's pay line.
func (s *Service) EditAdjustment(ctx context.Context, batchID uuid.UUID, workerID string, adjustment domain.Adjustment, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if batch.Status != domain.BatchDraft {
			return domain.ErrBatchNotEditable
		}
		payee := batch.PayeeByWorkerID(workerID)
		if payee == nil {
			return fmt.Errorf("worker %s is not in the batch", workerID)
		}
		if adjustment.Amount.Currency != payee.Gross.Currency {
			return &domain.CurrencyMismatchError{Left: payee.Gross.Currency, Right: adjustment.Amount.Currency}
		}
		payee.Adjustments = append(payee.Adjustments, adjustment)
		batch.AppendEvent(s.now(), domain.ActorUser, actorID, domain.LevelInfo,
			fmt.Sprintf("adjustment %q of %s applied to payee %s", adjustment.Label, adjustment.Amount, workerID))
		return nil
	})
}

// RecomputeReadiness asks the external country-rules evaluator for a fresh
// verdict on the payee and records the result. The ledger stores the verdict
// and its annotations; it never evaluates country law itself.
func (s *Service) RecomputeReadiness(ctx context.Context, batchID uuid.UUID, workerID, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if batch.Status != domain.BatchDraft {
			return domain.ErrBatchNotEditable
		}
		payee := batch.PayeeByWorkerID(workerID)
		if payee == nil {
			return fmt.Errorf("worker %s is not in the batch", workerID)
		}
		if s.compliance == nil {
			return fmt.Errorf("compliance evaluator is not configured")
		}
		verdict, err := s.compliance.Evaluate(ctx, payee.WorkerID, payee.CountryCode, payee.Currency)
		if err != nil {
			return fmt.Errorf("compliance evaluation failed for worker %s: %w", workerID, err)
		}

		payee.BlockingIssues = verdict.BlockingIssues
		payee.Warnings = verdict.Warnings
		if verdict.Ready {
			payee.Status = domain.PayeeReady
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelInfo,
				fmt.Sprintf("payee %s passed compliance checks for %s", workerID, payee.CountryCode))
		} else {
			payee.Status = domain.PayeeNotReady
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelWarn,
				fmt.Sprintf("payee %s blocked by compliance: %d issue(s) for %s", workerID, len(verdict.BlockingIssues), payee.CountryCode))
		}
		return nil
	})
}

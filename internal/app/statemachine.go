/**
 * @description
 * This file implements the batch lifecycle state machine: the transition
 * table, batch execution through the payment dispatcher, retry of failed
 * payees, and the settlement evaluation that moves an executing batch to its
 * terminal state.
 *
 * Transition rules:
 * - Any event invoked outside the table fails with InvalidTransitionError,
 *   leaves the status untouched, and is recorded as an error-level batch
 *   event so auditors can see the attempt.
 * - Every successful transition appends an info-level batch event naming the
 *   old state, the new state, and the actor.
 * - Execution re-validates the FX lock at the instant of the call. Approval
 *   and execution are separated by human-paced time; an approved batch with a
 *   lapsed lock must not silently execute at stale rates.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
	"github.com/geniehr/payroll-service/pkg/payclient"
)

// Lifecycle event names, as recorded in the audit trail.
const (
	EventSubmitForApproval = "submitForApproval"
	EventApprove           = "approve"
	EventDecline           = "decline"
	EventWithdraw          = "withdraw"
	EventExecute           = "execute"
	EventRetryFailed       = "retryFailed"
	EventAllSucceeded      = "allSucceeded"
	EventAnyFailed         = "anyFailed"

	// EventIngestReceipts is not a lifecycle transition; it names receipt
	// ingestion in rejection events when a settlement arrives before the
	// batch has dispatched anything.
	EventIngestReceipts = "ingestReceipts"
)

// transitions is the complete lifecycle table. Completed is terminal.
var transitions = map[domain.BatchStatus]map[string]domain.BatchStatus{
	domain.BatchDraft: {
		EventSubmitForApproval: domain.BatchAwaitingApproval,
	},
	domain.BatchAwaitingApproval: {
		EventApprove:  domain.BatchApproved,
		EventDecline:  domain.BatchDraft,
		EventWithdraw: domain.BatchDraft,
	},
	domain.BatchApproved: {
		EventExecute: domain.BatchExecuting,
	},
	domain.BatchExecuting: {
		EventAllSucceeded: domain.BatchCompleted,
		EventAnyFailed:    domain.BatchPartiallyFailed,
	},
	domain.BatchPartiallyFailed: {
		EventRetryFailed: domain.BatchExecuting,
	},
}

// allowedTransition looks up the target state for (from, event).
func allowedTransition(from domain.BatchStatus, event string) (domain.BatchStatus, bool) {
	row, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := row[event]
	return to, ok
}

// recordRejection appends the error-level audit entry for a failed transition
// attempt and returns the error unchanged. The batch status is untouched.
func (s *Service) recordRejection(batch *domain.PayrollBatch, event, actorID string, err error) error {
	batch.AppendEvent(s.now(), domain.ActorSystem, actorID, domain.LevelError,
		fmt.Sprintf("%s rejected: %v", event, err))
	return err
}

// applyTransition moves the batch to the target state and appends the
// info-level audit entry naming old state, new state, and actor.
func (s *Service) applyTransition(batch *domain.PayrollBatch, event string, to domain.BatchStatus, actor domain.Actor, actorID string) {
	from := batch.Status
	batch.Status = to
	batch.AppendEvent(s.now(), actor, actorID, domain.LevelInfo,
		fmt.Sprintf("batch moved from %s to %s (%s)", from, to, event))
}

// guardTransition validates (status, event) against the table, recording a
// rejection on failure.
func (s *Service) guardTransition(batch *domain.PayrollBatch, event, actorID string) (domain.BatchStatus, error) {
	to, ok := allowedTransition(batch.Status, event)
	if !ok {
		err := &domain.InvalidTransitionError{From: batch.Status, Event: event}
		return "", s.recordRejection(batch, event, actorID, err)
	}
	return to, nil
}

// ExecuteBatch dispatches one payment per payee and moves the batch to
// Executing. The FX lock is re-validated at the instant of the call, not
// carried over from approval.
func (s *Service) ExecuteBatch(ctx context.Context, batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		to, err := s.guardTransition(batch, EventExecute, actorID)
		if err != nil {
			return err
		}
		if err := s.validateLockForUse(batch); err != nil {
			return s.recordRejection(batch, EventExecute, actorID, err)
		}

		s.applyTransition(batch, EventExecute, to, domain.ActorUser, actorID)
		for i := range batch.Payees {
			s.dispatchPayee(ctx, batch, &batch.Payees[i])
		}
		s.evaluateSettlement(batch)
		return nil
	})
}

// RetryFailed re-dispatches only the payees whose settlement failed and moves
// the batch back to Executing. Succeeded payees and their receipts are never
// touched, so the retry is idempotent over the currently-failed set.
func (s *Service) RetryFailed(ctx context.Context, batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		to, err := s.guardTransition(batch, EventRetryFailed, actorID)
		if err != nil {
			return err
		}

		s.applyTransition(batch, EventRetryFailed, to, domain.ActorUser, actorID)
		retried := 0
		for i := range batch.Payees {
			if batch.Payees[i].Status != domain.PayeeFailed {
				continue
			}
			s.dispatchPayee(ctx, batch, &batch.Payees[i])
			retried++
		}
		batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelInfo,
			fmt.Sprintf("re-dispatched %d failed payee(s)", retried))
		s.evaluateSettlement(batch)
		return nil
	})
}

// dispatchPayee submits one payment instruction and records the resulting
// receipt. A dispatcher failure marks the payee failed and never aborts the
// rest of the batch. An affirmative provider rejection is recorded at error
// level; an ambiguous failure, where the payment may still have gone out, at
// warn level so operators know reconciliation could still land a receipt.
func (s *Service) dispatchPayee(ctx context.Context, batch *domain.PayrollBatch, payee *domain.PayrollPayee) {
	net, err := payee.NetPay()
	if err != nil {
		// Mixed-currency lines are rejected at edit time; reaching this means
		// corrupted state, which we surface rather than pay incorrectly.
		payee.Status = domain.PayeeFailed
		s.upsertReceipt(batch, domain.PaymentReceipt{
			PayeeID: payee.WorkerID,
			Status:  domain.ReceiptFailed,
			Amount:  payee.Gross,
		})
		batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelError,
			fmt.Sprintf("payee %s not dispatched: %v", payee.WorkerID, err))
		return
	}

	payee.Status = domain.PayeeExecuting
	if s.dispatcher == nil {
		payee.Status = domain.PayeeFailed
		s.upsertReceipt(batch, domain.PaymentReceipt{PayeeID: payee.WorkerID, Status: domain.ReceiptFailed, Amount: net})
		batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelError,
			fmt.Sprintf("payee %s not dispatched: payment dispatcher not configured", payee.WorkerID))
		return
	}

	ref, err := s.dispatcher.DispatchPayment(ctx, batch.ID.String(), payee.WorkerID, net.Amount.String(), net.Currency)
	if err != nil {
		payee.Status = domain.PayeeFailed
		s.upsertReceipt(batch, domain.PaymentReceipt{PayeeID: payee.WorkerID, Status: domain.ReceiptFailed, Amount: net})
		var rejection *payclient.ErrorResponse
		if errors.As(err, &rejection) && rejection.IsExplicitRejection() {
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelError,
				fmt.Sprintf("dispatch rejected for payee %s: %v", payee.WorkerID, err))
		} else {
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelWarn,
				fmt.Sprintf("dispatch failed for payee %s: %v", payee.WorkerID, err))
		}
		log.Printf("level=warn component=service flow=execute msg=\"payment dispatch failed\" batch_id=%s payee_id=%s err=%v", batch.ID, payee.WorkerID, err)
		return
	}

	s.upsertReceipt(batch, domain.PaymentReceipt{
		PayeeID:     payee.WorkerID,
		ProviderRef: ref,
		Amount:      net,
		Status:      domain.ReceiptInitiated,
	})
}

// upsertReceipt replaces the payee's receipt or appends a new one. One receipt
// per payee per batch.
func (s *Service) upsertReceipt(batch *domain.PayrollBatch, receipt domain.PaymentReceipt) {
	if existing := batch.ReceiptByPayeeID(receipt.PayeeID); existing != nil {
		*existing = receipt
		return
	}
	batch.Receipts = append(batch.Receipts, receipt)
}

// evaluateSettlement derives the batch's terminal state from its receipts.
// Called after execution, retry, and every receipt application, so the result
// is independent of the order receipts arrive in.
func (s *Service) evaluateSettlement(batch *domain.PayrollBatch) {
	if batch.Status != domain.BatchExecuting && batch.Status != domain.BatchPartiallyFailed {
		return
	}
	if len(batch.Payees) == 0 {
		return
	}

	paid := 0
	failed := 0
	for i := range batch.Payees {
		switch batch.Payees[i].Status {
		case domain.PayeePaid:
			paid++
		case domain.PayeeFailed:
			failed++
		}
	}

	if paid == len(batch.Payees) {
		s.applyTransition(batch, EventAllSucceeded, domain.BatchCompleted, domain.ActorSystem, "")
		return
	}
	if failed > 0 && batch.Status == domain.BatchExecuting {
		s.applyTransition(batch, EventAnyFailed, domain.BatchPartiallyFailed, domain.ActorSystem, "")
	}
}

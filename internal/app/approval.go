/**
 * @description
 * This file implements the dual-control approval workflow wrapped around the
 * batch state machine: submit, approve, decline, withdraw, and the
 * no-state-change reminder. Each call appends exactly one approval event; the
 * current approval state is always derived from the last event.
 *
 * Dual control: the actor who approves or declines must differ from the actor
 * who submitted. Withdrawal is the opposite: only the preparer may pull back
 * their own submission.
 */

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
)

// SubmitForApproval moves a draft batch into the approval queue. Every payee
// must be ready and an FX snapshot (locked or unlocked) must exist.
func (s *Service) SubmitForApproval(ctx context.Context, batchID uuid.UUID, actorID, note string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		to, err := s.guardTransition(batch, EventSubmitForApproval, actorID)
		if err != nil {
			return err
		}
		if len(batch.Payees) == 0 {
			return s.recordRejection(batch, EventSubmitForApproval, actorID,
				fmt.Errorf("batch has no payees"))
		}
		notReady := 0
		for i := range batch.Payees {
			if batch.Payees[i].Status != domain.PayeeReady {
				notReady++
			}
		}
		if notReady > 0 {
			return s.recordRejection(batch, EventSubmitForApproval, actorID,
				fmt.Errorf("%d payee(s) are not ready — resolve compliance issues before submitting", notReady))
		}
		if batch.FXSnapshot == nil {
			return s.recordRejection(batch, EventSubmitForApproval, actorID, domain.ErrNoSnapshot)
		}

		s.applyTransition(batch, EventSubmitForApproval, to, domain.ActorUser, actorID)
		for i := range batch.Payees {
			batch.Payees[i].Status = domain.PayeeAwaitingApproval
		}
		batch.AppendApproval(s.now(), domain.RolePreparer, domain.ApprovalRequested, actorID, note)

		if err := s.notify(ctx, batch, "submitted", fmt.Sprintf("batch %s awaits approval", batch.ID), actorID); err != nil {
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelWarn,
				fmt.Sprintf("approval notification failed: %v", err))
		}
		return nil
	})
}

// Approve applies the approver's sign-off. The FX lock is validated here and
// again at execution: approval is human-paced, and a lock that was live now
// may be dead by the time someone executes.
func (s *Service) Approve(ctx context.Context, batchID uuid.UUID, actorID, note string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		to, err := s.guardTransition(batch, EventApprove, actorID)
		if err != nil {
			return err
		}
		if err := s.requireOpenRequest(batch, EventApprove, actorID); err != nil {
			return err
		}
		if batch.Preparer() == actorID {
			return s.recordRejection(batch, EventApprove, actorID, domain.ErrSelfApprovalForbidden)
		}
		if err := s.validateLockForUse(batch); err != nil {
			return s.recordRejection(batch, EventApprove, actorID, err)
		}

		s.applyTransition(batch, EventApprove, to, domain.ActorUser, actorID)
		batch.AppendApproval(s.now(), domain.RoleApprover, domain.ApprovalApproved, actorID, note)
		return nil
	})
}

// Decline sends the batch back to draft with the approver's note. Dual
// control applies to declines as well: rejecting your own submission is not a
// second pair of eyes.
func (s *Service) Decline(ctx context.Context, batchID uuid.UUID, actorID, note string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		to, err := s.guardTransition(batch, EventDecline, actorID)
		if err != nil {
			return err
		}
		if err := s.requireOpenRequest(batch, EventDecline, actorID); err != nil {
			return err
		}
		if batch.Preparer() == actorID {
			return s.recordRejection(batch, EventDecline, actorID, domain.ErrSelfApprovalForbidden)
		}

		s.applyTransition(batch, EventDecline, to, domain.ActorUser, actorID)
		s.resetPayeesToReady(batch)
		batch.AppendApproval(s.now(), domain.RoleApprover, domain.ApprovalDeclined, actorID, note)

		if err := s.notify(ctx, batch, "declined", fmt.Sprintf("batch %s was declined", batch.ID), actorID); err != nil {
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelWarn,
				fmt.Sprintf("decline notification failed: %v", err))
		}
		return nil
	})
}

// Withdraw lets the preparer pull back their own submission.
func (s *Service) Withdraw(ctx context.Context, batchID uuid.UUID, actorID, note string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		to, err := s.guardTransition(batch, EventWithdraw, actorID)
		if err != nil {
			return err
		}
		if preparer := batch.Preparer(); preparer != actorID {
			return s.recordRejection(batch, EventWithdraw, actorID,
				fmt.Errorf("only the preparer (%s) may withdraw this submission", preparer))
		}

		s.applyTransition(batch, EventWithdraw, to, domain.ActorUser, actorID)
		s.resetPayeesToReady(batch)
		batch.AppendApproval(s.now(), domain.RolePreparer, domain.ApprovalWithdrawn, actorID, note)
		return nil
	})
}

// Remind nudges the approver without changing any state. No approval event is
// appended, only an informational batch event, or a warn event if the
// notification sender is down.
func (s *Service) Remind(ctx context.Context, batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if batch.Status != domain.BatchAwaitingApproval {
			err := &domain.InvalidTransitionError{From: batch.Status, Event: "remind"}
			return s.recordRejection(batch, "remind", actorID, err)
		}
		if err := s.notify(ctx, batch, "reminder", fmt.Sprintf("batch %s is still awaiting approval", batch.ID), actorID); err != nil {
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelWarn,
				fmt.Sprintf("approval reminder could not be delivered: %v", err))
			return nil
		}
		batch.AppendEvent(s.now(), domain.ActorGenie, actorID, domain.LevelInfo, "approval reminder sent")
		return nil
	})
}

// requireOpenRequest checks that the last approval event is an unresolved
// submission. The batch status should guarantee this; the check guards
// against replayed or out-of-band calls.
func (s *Service) requireOpenRequest(batch *domain.PayrollBatch, event, actorID string) error {
	last, ok := batch.LastApproval()
	if !ok || last.Action != domain.ApprovalRequested {
		return s.recordRejection(batch, event, actorID,
			fmt.Errorf("no open approval request on this batch"))
	}
	return nil
}

func (s *Service) resetPayeesToReady(batch *domain.PayrollBatch) {
	for i := range batch.Payees {
		if batch.Payees[i].Status == domain.PayeeAwaitingApproval {
			batch.Payees[i].Status = domain.PayeeReady
		}
	}
}

/**
 * @description
 * This file implements the reconciliation engine: matching settlement
 * receipts from the bank file upload or the provider API against the batch's
 * payees, and deriving the batch's terminal state from the merged result.
 *
 * The merge is idempotent and commutative. Receipts may arrive out of order
 * and from multiple sources concurrently; each application is a monotone
 * merge over a receipt-status ladder (initiated < in_transit < failed < paid),
 * so any permutation of the same receipts lands on the same final state, and
 * re-applying a receipt is a no-op rather than a duplicate event.
 *
 * A receipt referencing an unknown payee is never dropped silently: it is
 * recorded once as a warn-level OrphanReceipt event for manual investigation,
 * since it indicates a data-integrity gap between systems.
 *
 * Receipts are only accepted once the batch has actually dispatched payments.
 * Before that there is nothing a settlement could refer to, so ingestion into
 * a draft, awaiting-approval, or approved batch is rejected and recorded as an
 * error-level batch event.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/geniehr/payroll-service/internal/domain"
)

// BankFileRow is one row of an uploaded bank settlement file, already parsed
// from the transport format by the caller.
type BankFileRow struct {
	PayeeID     string     `json:"payee_id"`
	ProviderRef string     `json:"provider_ref"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// receiptRank orders settlement statuses for the monotone merge. A receipt
// only overwrites one of strictly lower rank; paid outranks failed so a late
// correction wins regardless of arrival order, and nothing downgrades paid.
func receiptRank(status domain.ReceiptStatus) int {
	switch status {
	case domain.ReceiptInitiated:
		return 0
	case domain.ReceiptInTransit:
		return 1
	case domain.ReceiptFailed:
		return 2
	case domain.ReceiptPaid:
		return 3
	default:
		return -1
	}
}

// ParseReceiptStatus normalizes provider and bank-file status spellings onto
// the receipt ladder.
func ParseReceiptStatus(raw string) (domain.ReceiptStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "initiated", "created", "pending":
		return domain.ReceiptInitiated, true
	case "in_transit", "processing", "sent":
		return domain.ReceiptInTransit, true
	case "paid", "completed", "settled":
		return domain.ReceiptPaid, true
	case "failed", "rejected", "returned":
		return domain.ReceiptFailed, true
	default:
		return "", false
	}
}

// receiptsAccepted reports whether the batch has dispatched payments, so a
// settlement receipt can refer to something real. Completed stays open so
// replays and late corrections remain no-ops instead of errors.
func receiptsAccepted(status domain.BatchStatus) bool {
	switch status {
	case domain.BatchExecuting, domain.BatchPartiallyFailed, domain.BatchCompleted:
		return true
	default:
		return false
	}
}

// receiptTally folds one applyReceipt outcome into a result fragment.
func receiptTally(matched, failed bool) domain.ReconciliationResult {
	if !matched {
		return domain.ReconciliationResult{Orphaned: 1}
	}
	tally := domain.ReconciliationResult{Matched: 1}
	if failed {
		tally.Failed = 1
	}
	return tally
}

// applyReceipt merges one receipt into the batch. Returns whether the receipt
// matched a payee and whether it reported a failed settlement.
func (s *Service) applyReceipt(batch *domain.PayrollBatch, receipt domain.PaymentReceipt) (matched bool, failed bool) {
	payee := batch.PayeeByWorkerID(receipt.PayeeID)
	if payee == nil {
		ref := receipt.ProviderRef
		if ref == "" {
			ref = receipt.PayeeID
		}
		if !batch.HasOrphanRef(ref) {
			batch.OrphanRefs = append(batch.OrphanRefs, ref)
			batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelWarn,
				fmt.Sprintf("OrphanReceipt: settlement %s references unknown payee %s — needs manual investigation", receipt.ProviderRef, receipt.PayeeID))
		}
		return false, false
	}

	existing := batch.ReceiptByPayeeID(receipt.PayeeID)
	if existing != nil && receiptRank(receipt.Status) <= receiptRank(existing.Status) {
		// Same or lower rank: a replay or a stale out-of-order update. The
		// merged state already reflects everything this receipt could add.
		return true, existing.Status == domain.ReceiptFailed
	}

	if receipt.Status == domain.ReceiptPaid && receipt.PaidAt == nil {
		now := s.now()
		receipt.PaidAt = &now
	}
	s.upsertReceipt(batch, receipt)

	switch receipt.Status {
	case domain.ReceiptPaid:
		payee.Status = domain.PayeePaid
		batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelInfo,
			fmt.Sprintf("settlement confirmed for payee %s (ref %s)", receipt.PayeeID, receipt.ProviderRef))
	case domain.ReceiptFailed:
		payee.Status = domain.PayeeFailed
		batch.AppendEvent(s.now(), domain.ActorSystem, "", domain.LevelWarn,
			fmt.Sprintf("settlement failed for payee %s (ref %s)", receipt.PayeeID, receipt.ProviderRef))
	default:
		payee.Status = domain.PayeeExecuting
	}
	return true, receipt.Status == domain.ReceiptFailed
}

// IngestProviderReceipt applies a single receipt delivered by the provider
// API or the receipt event queue.
func (s *Service) IngestProviderReceipt(ctx context.Context, batchID uuid.UUID, receipt domain.PaymentReceipt) (*domain.ReconciliationResult, error) {
	var result domain.ReconciliationResult
	_, err := s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if !receiptsAccepted(batch.Status) {
			return s.recordRejection(batch, EventIngestReceipts, "",
				&domain.InvalidTransitionError{From: batch.Status, Event: EventIngestReceipts})
		}
		result.Merge(receiptTally(s.applyReceipt(batch, receipt)))
		s.evaluateSettlement(batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// IngestBankFile applies a batch of parsed bank-file rows. Rows that cannot
// be interpreted as receipts are counted as skipped and logged; they never
// abort the rest of the file.
func (s *Service) IngestBankFile(ctx context.Context, batchID uuid.UUID, rows []BankFileRow) (*domain.ReconciliationResult, error) {
	var result domain.ReconciliationResult
	_, err := s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if !receiptsAccepted(batch.Status) {
			return s.recordRejection(batch, EventIngestReceipts, "",
				&domain.InvalidTransitionError{From: batch.Status, Event: EventIngestReceipts})
		}
		for _, row := range rows {
			receipt, ok := s.receiptFromBankRow(batch, row)
			if !ok {
				result.Skipped++
				continue
			}
			result.Merge(receiptTally(s.applyReceipt(batch, receipt)))
		}
		s.evaluateSettlement(batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) receiptFromBankRow(batch *domain.PayrollBatch, row BankFileRow) (domain.PaymentReceipt, bool) {
	status, ok := ParseReceiptStatus(row.Status)
	if !ok {
		log.Printf("level=warn component=service flow=reconcile msg=\"bank row skipped: unknown status\" batch_id=%s payee_id=%s status=%q", batch.ID, row.PayeeID, row.Status)
		return domain.PaymentReceipt{}, false
	}
	if strings.TrimSpace(row.PayeeID) == "" {
		log.Printf("level=warn component=service flow=reconcile msg=\"bank row skipped: missing payee id\" batch_id=%s ref=%q", batch.ID, row.ProviderRef)
		return domain.PaymentReceipt{}, false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
	if err != nil {
		log.Printf("level=warn component=service flow=reconcile msg=\"bank row skipped: bad amount\" batch_id=%s payee_id=%s amount=%q err=%v", batch.ID, row.PayeeID, row.Amount, err)
		return domain.PaymentReceipt{}, false
	}
	return domain.PaymentReceipt{
		PayeeID:     strings.TrimSpace(row.PayeeID),
		ProviderRef: strings.TrimSpace(row.ProviderRef),
		Amount:      domain.NewMoney(amount, row.Currency),
		Status:      status,
		PaidAt:      row.PaidAt,
	}, true
}

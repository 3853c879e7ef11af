/**
 * @description
 * This file defines the PayrollBatch aggregate: the batch lifecycle status,
 * its payees, the FX snapshot, the append-only approval and batch event logs,
 * and the settlement receipts. The aggregate is the single source of truth;
 * everything a dashboard shows (percent complete, status labels) is derived
 * from it on read.
 *
 * @notes
 * - `events` and `approvals` are append-only. Corrections are expressed as new
 *   events, never by editing history.
 * - `EventSeq` is a per-batch monotonic counter stamped onto every appended
 *   event so the audit log has a stable tie-break when timestamps collide.
 * - Only the app layer's state machine, approval workflow, and reconciliation
 *   engine may write `Status`, `Approvals`, or `Receipts`.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the lifecycle status of a payroll batch.
type BatchStatus string

const (
	BatchDraft            BatchStatus = "draft"
	BatchAwaitingApproval BatchStatus = "awaiting_approval"
	BatchApproved         BatchStatus = "approved"
	BatchExecuting        BatchStatus = "executing"
	BatchPartiallyFailed  BatchStatus = "partially_failed"
	BatchCompleted        BatchStatus = "completed"
)

// Actor identifies who (or what) caused a batch event.
type Actor string

const (
	ActorGenie  Actor = "genie"
	ActorSystem Actor = "system"
	ActorUser   Actor = "user"
)

// EventLevel is the severity of a batch event.
type EventLevel string

const (
	LevelInfo  EventLevel = "info"
	LevelWarn  EventLevel = "warn"
	LevelError EventLevel = "error"
)

// BatchEvent is one entry in the batch's system-of-record event log.
type BatchEvent struct {
	Seq     int64      `json:"seq"`
	At      time.Time  `json:"at"`
	Actor   Actor      `json:"actor"`
	ActorID string     `json:"actor_id,omitempty"`
	Level   EventLevel `json:"level"`
	Message string     `json:"message"`
}

// ApprovalRole distinguishes the two sides of dual control.
type ApprovalRole string

const (
	RolePreparer ApprovalRole = "preparer"
	RoleApprover ApprovalRole = "approver"
)

// ApprovalAction is what the actor did.
type ApprovalAction string

const (
	ApprovalRequested ApprovalAction = "requested"
	ApprovalApproved  ApprovalAction = "approved"
	ApprovalDeclined  ApprovalAction = "declined"
	ApprovalWithdrawn ApprovalAction = "withdrawn"
)

// ApprovalEvent is one entry in the batch's append-only approval history. The
// current approval state is always derived from the last event, never stored.
type ApprovalEvent struct {
	Seq     int64          `json:"seq"`
	Role    ApprovalRole   `json:"role"`
	Action  ApprovalAction `json:"action"`
	ActorID string         `json:"actor_id"`
	At      time.Time      `json:"at"`
	Note    string         `json:"note,omitempty"`
}

// ReceiptStatus is the settlement status reported by the bank or provider.
type ReceiptStatus string

const (
	ReceiptInitiated ReceiptStatus = "initiated"
	ReceiptInTransit ReceiptStatus = "in_transit"
	ReceiptPaid      ReceiptStatus = "paid"
	ReceiptFailed    ReceiptStatus = "failed"
)

// PaymentReceipt records one payee's settlement outcome. One receipt per payee
// per batch; immutable once Paid.
type PaymentReceipt struct {
	PayeeID     string        `json:"payee_id"`
	ProviderRef string        `json:"provider_ref"`
	Amount      Money         `json:"amount"`
	Status      ReceiptStatus `json:"status"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
}

// PayrollBatch is the aggregate root for one payroll run.
type PayrollBatch struct {
	ID         uuid.UUID        `json:"id"`
	PayPeriod  string           `json:"pay_period"`
	Status     BatchStatus      `json:"status"`
	Payees     []PayrollPayee   `json:"payees"`
	FXSnapshot *FXSnapshot      `json:"fx_snapshot,omitempty"`
	Approvals  []ApprovalEvent  `json:"approvals"`
	Events     []BatchEvent     `json:"events"`
	Receipts   []PaymentReceipt `json:"receipts"`

	// EventSeq is the next sequence number handed out to an appended batch or
	// approval event.
	EventSeq int64 `json:"event_seq"`

	// OrphanRefs remembers provider refs already reported as orphans so that
	// re-applying the same orphan receipt does not duplicate the warn event.
	OrphanRefs []string `json:"orphan_refs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPayrollBatch creates an empty draft batch for a pay period.
func NewPayrollBatch(payPeriod string, now time.Time) *PayrollBatch {
	return &PayrollBatch{
		ID:        uuid.New(),
		PayPeriod: payPeriod,
		Status:    BatchDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// nextSeq hands out the next event sequence number.
func (b *PayrollBatch) nextSeq() int64 {
	b.EventSeq++
	return b.EventSeq
}

// AppendEvent appends a batch event, stamping the sequence number.
func (b *PayrollBatch) AppendEvent(at time.Time, actor Actor, actorID string, level EventLevel, message string) {
	b.Events = append(b.Events, BatchEvent{
		Seq:     b.nextSeq(),
		At:      at,
		Actor:   actor,
		ActorID: actorID,
		Level:   level,
		Message: message,
	})
	b.UpdatedAt = at
}

// AppendApproval appends an approval event, stamping the sequence number.
func (b *PayrollBatch) AppendApproval(at time.Time, role ApprovalRole, action ApprovalAction, actorID, note string) {
	b.Approvals = append(b.Approvals, ApprovalEvent{
		Seq:     b.nextSeq(),
		Role:    role,
		Action:  action,
		ActorID: actorID,
		At:      at,
		Note:    note,
	})
	b.UpdatedAt = at
}

// LastApproval returns the most recent approval event, if any.
func (b *PayrollBatch) LastApproval() (ApprovalEvent, bool) {
	if len(b.Approvals) == 0 {
		return ApprovalEvent{}, false
	}
	return b.Approvals[len(b.Approvals)-1], true
}

// Preparer returns the actor id of the most recent submission, walking the
// approval history backwards. Empty if the batch has never been submitted.
func (b *PayrollBatch) Preparer() string {
	for i := len(b.Approvals) - 1; i >= 0; i-- {
		if b.Approvals[i].Action == ApprovalRequested {
			return b.Approvals[i].ActorID
		}
	}
	return ""
}

// PayeeByWorkerID returns a pointer into the aggregate's payee slice, for
// in-place mutation under the batch's critical section.
func (b *PayrollBatch) PayeeByWorkerID(workerID string) *PayrollPayee {
	for i := range b.Payees {
		if b.Payees[i].WorkerID == workerID {
			return &b.Payees[i]
		}
	}
	return nil
}

// ReceiptByPayeeID returns a pointer to the payee's receipt, if one exists.
func (b *PayrollBatch) ReceiptByPayeeID(payeeID string) *PaymentReceipt {
	for i := range b.Receipts {
		if b.Receipts[i].PayeeID == payeeID {
			return &b.Receipts[i]
		}
	}
	return nil
}

// HasOrphanRef reports whether an orphan receipt with this provider ref has
// already been recorded.
func (b *PayrollBatch) HasOrphanRef(providerRef string) bool {
	for _, ref := range b.OrphanRefs {
		if ref == providerRef {
			return true
		}
	}
	return false
}

// Clone deep-copies the aggregate. The store hands out clones so concurrent
// readers observe either the pre- or post-mutation state, never a partial one.
func (b *PayrollBatch) Clone() *PayrollBatch {
	cp := *b
	cp.Payees = make([]PayrollPayee, len(b.Payees))
	for i := range b.Payees {
		cp.Payees[i] = *b.Payees[i].Clone()
	}
	cp.FXSnapshot = b.FXSnapshot.Clone()
	cp.Approvals = append([]ApprovalEvent(nil), b.Approvals...)
	cp.Events = append([]BatchEvent(nil), b.Events...)
	cp.Receipts = make([]PaymentReceipt, len(b.Receipts))
	for i, r := range b.Receipts {
		cp.Receipts[i] = r
		if r.PaidAt != nil {
			t := *r.PaidAt
			cp.Receipts[i].PaidAt = &t
		}
	}
	cp.OrphanRefs = append([]string(nil), b.OrphanRefs...)
	return &cp
}

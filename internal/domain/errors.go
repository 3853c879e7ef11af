/**
 * @description
 * This file defines the typed error taxonomy for the payroll core. Callers
 * branch on these with errors.Is/errors.As; the messages are written so that a
 * UI or automation client can tell the user exactly which precondition failed
 * and what the remedial action is.
 *
 * @notes
 * - Value-type errors (CurrencyMismatchError, NegativeRateError) are returned
 *   to the immediate caller only and never appear in the audit log.
 * - State-machine and workflow errors are additionally recorded as error-level
 *   batch events by the app layer, because other observers of the batch need
 *   visibility into attempted operations against shared state.
 */

package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrProviderUnavailable indicates the upstream FX rate source could not be
	// reached. The caller may retry or keep the previous snapshot.
	ErrProviderUnavailable = errors.New("fx rate provider unavailable")

	// ErrAlreadyLocked indicates a lock attempt on a snapshot that is already locked.
	ErrAlreadyLocked = errors.New("fx snapshot is already locked")

	// ErrStaleSnapshot indicates a lock attempt on a snapshot that has been
	// superseded by a newer recalculation.
	ErrStaleSnapshot = errors.New("fx snapshot has been superseded by a newer recalculation")

	// ErrLockedSnapshotImmutable indicates an attempt to recalculate or switch
	// provider while the current snapshot holds an unexpired lock.
	ErrLockedSnapshotImmutable = errors.New("fx snapshot is locked; rates are frozen until the lock expires")

	// ErrBatchNotEditable indicates a payee mutation on a batch that has left Draft.
	ErrBatchNotEditable = errors.New("batch is no longer editable; payee changes are only allowed in draft")

	// ErrSelfApprovalForbidden indicates the preparer attempted to approve or
	// decline their own submission.
	ErrSelfApprovalForbidden = errors.New("dual control violation: the preparer cannot approve or decline their own submission")

	// ErrNoSnapshot indicates an operation that requires an FX snapshot was
	// attempted before any recalculation produced one.
	ErrNoSnapshot = errors.New("batch has no fx snapshot; recalculate rates first")

	// ErrSnapshotNotLocked indicates approval or execution was attempted against
	// an unlocked snapshot.
	ErrSnapshotNotLocked = errors.New("fx snapshot is not locked; lock rates before approving or executing")
)

// CurrencyMismatchError is returned by Money arithmetic across two currencies.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: cannot combine %s with %s", e.Left, e.Right)
}

// NegativeRateError is returned when an FX quote carries a non-positive rate or
// a negative fee.
type NegativeRateError struct {
	Currency string
	Rate     decimal.Decimal
}

func (e *NegativeRateError) Error() string {
	return fmt.Sprintf("invalid fx rate %s for %s: rates must be positive and fees non-negative", e.Rate.String(), e.Currency)
}

// InvalidTransitionError is returned when a lifecycle event is invoked from a
// state that does not permit it. The batch is left unchanged.
type InvalidTransitionError struct {
	From  BatchStatus
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q is not allowed while the batch is %s", e.Event, e.From)
}

// LockExpiredError is returned when approval or execution is attempted against
// a snapshot whose lock has lapsed. The message tells the caller how stale the
// lock is so the UI can prompt a re-lock rather than a generic failure.
type LockExpiredError struct {
	ExpiredAt time.Time
	Now       time.Time
}

func (e *LockExpiredError) Error() string {
	age := e.Now.Sub(e.ExpiredAt).Truncate(time.Second)
	return fmt.Sprintf("fx lock expired %s ago (at %s) — request a fresh lock before executing", age, e.ExpiredAt.UTC().Format(time.RFC3339))
}

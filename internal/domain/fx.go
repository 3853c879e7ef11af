/**
 * @description
 * This file defines the FX snapshot model: a point-in-time set of exchange
 * rates for a batch, optionally frozen under a time-boxed lock.
 *
 * @notes
 * - Expiry is never driven by a timer. It is a pure predicate over the lock
 *   timestamp and TTL, evaluated lazily by every operation that depends on
 *   lock validity. This keeps the authoritative check race-free: there is no
 *   window between "timer fired" and "execute checked".
 * - A snapshot is either unlocked (rates may be recalculated freely) or locked
 *   (rates frozen until expiry). Once expired it can never be re-locked; a new
 *   snapshot must be produced.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// FXSnapshot is a point-in-time set of exchange rates associated with a batch.
type FXSnapshot struct {
	ID             uuid.UUID  `json:"id"`
	BaseCurrency   string     `json:"base_currency"`
	Quotes         []FXQuote  `json:"quotes"`
	Provider       string     `json:"provider"`
	VarianceBps    *int       `json:"variance_bps,omitempty"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	LockTTLSeconds *int64     `json:"lock_ttl_seconds,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsLocked reports whether the snapshot has ever been locked. An expired lock
// still counts as locked: the snapshot is spent, not reusable.
func (s *FXSnapshot) IsLocked() bool {
	return s != nil && s.LockedAt != nil
}

// ExpiresAt returns the instant the lock lapses. The second return value is
// false for unlocked snapshots.
func (s *FXSnapshot) ExpiresAt() (time.Time, bool) {
	if !s.IsLocked() || s.LockTTLSeconds == nil {
		return time.Time{}, false
	}
	return s.LockedAt.Add(time.Duration(*s.LockTTLSeconds) * time.Second), true
}

// IsExpired reports whether the lock has lapsed at the given instant. The
// boundary itself counts as expired: a 900s lock taken at t0 is unusable from
// t0+900s onward. Unlocked snapshots never expire.
func (s *FXSnapshot) IsExpired(now time.Time) bool {
	expiresAt, ok := s.ExpiresAt()
	if !ok {
		return false
	}
	return !expiresAt.After(now)
}

// QuoteFor returns the quote for the given currency, if present.
func (s *FXSnapshot) QuoteFor(currency string) (FXQuote, bool) {
	if s == nil {
		return FXQuote{}, false
	}
	for _, q := range s.Quotes {
		if q.Currency == currency {
			return q, true
		}
	}
	return FXQuote{}, false
}

// Clone returns a deep copy so stored snapshots can be handed to readers
// without sharing mutable state.
func (s *FXSnapshot) Clone() *FXSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Quotes = append([]FXQuote(nil), s.Quotes...)
	if s.VarianceBps != nil {
		v := *s.VarianceBps
		cp.VarianceBps = &v
	}
	if s.LockedAt != nil {
		t := *s.LockedAt
		cp.LockedAt = &t
	}
	if s.LockTTLSeconds != nil {
		ttl := *s.LockTTLSeconds
		cp.LockTTLSeconds = &ttl
	}
	return &cp
}

/**
 * @description
 * This file implements the FX snapshot manager: recalculating rates from the
 * upstream provider, taking the one-shot time-boxed lock, and switching to the
 * fallback provider. Lock expiry itself is a pure timestamp predicate on the
 * snapshot (domain.FXSnapshot.IsExpired); this file only enforces the
 * snapshot lifecycle rules around it.
 *
 * Lifecycle: recalculation produces a fresh unlocked snapshot that supersedes
 * the previous one → the snapshot may be locked once → the lock lapses at the
 * TTL boundary → only a new snapshot can be locked again.
 */

package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
	"github.com/geniehr/payroll-service/pkg/fxclient"
)

// targetCurrencies collects the distinct payee currencies that need a quote
// against the base currency.
func targetCurrencies(batch *domain.PayrollBatch, baseCurrency string) []string {
	seen := make(map[string]bool)
	for i := range batch.Payees {
		c := batch.Payees[i].Currency
		if c != "" && c != baseCurrency {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// snapshotMutable reports whether the batch's current snapshot permits
// recalculation. A locked snapshot freezes rates until its lock lapses; an
// expired lock is spent and no longer protects anything.
func (s *Service) snapshotMutable(batch *domain.PayrollBatch) bool {
	snap := batch.FXSnapshot
	if snap == nil || !snap.IsLocked() {
		return true
	}
	return snap.IsExpired(s.now())
}

// buildSnapshot fetches rates from the given provider and assembles a fresh
// unlocked snapshot. Provider transport failures surface as
// ProviderUnavailable so the caller can retry or keep the previous snapshot.
func (s *Service) buildSnapshot(ctx context.Context, provider fxclient.RateProvider, batch *domain.PayrollBatch) (*domain.FXSnapshot, error) {
	if provider == nil {
		return nil, domain.ErrProviderUnavailable
	}
	targets := targetCurrencies(batch, s.baseCurrency)

	rates, err := provider.GetRates(ctx, s.baseCurrency, targets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	snapshot := &domain.FXSnapshot{
		ID:           uuid.New(),
		BaseCurrency: s.baseCurrency,
		Provider:     rates.Data.Provider,
		VarianceBps:  rates.Data.VarianceBps,
		CreatedAt:    s.now(),
	}
	for _, q := range rates.Data.Quotes {
		quote, err := domain.NewFXQuote(q.Currency, q.Rate, q.Fee)
		if err != nil {
			return nil, fmt.Errorf("provider %s returned invalid quote: %w", provider.Name(), err)
		}
		if _, dup := snapshot.QuoteFor(quote.Currency); dup {
			continue
		}
		snapshot.Quotes = append(snapshot.Quotes, quote)
	}
	return snapshot, nil
}

// applySnapshot installs the snapshot on the batch and refreshes each payee's
// proposed FX terms from it.
func applySnapshot(batch *domain.PayrollBatch, snapshot *domain.FXSnapshot) {
	batch.FXSnapshot = snapshot
	for i := range batch.Payees {
		p := &batch.Payees[i]
		if quote, ok := snapshot.QuoteFor(p.Currency); ok {
			rate := quote.Rate
			p.ProposedFxRate = &rate
			fee := domain.NewMoney(quote.Fee, p.Currency)
			p.FxFee = &fee
		}
	}
}

// RecalculateFX produces a fresh unlocked snapshot from the primary provider,
// superseding the previous one. Rejected while an unexpired lock is held.
func (s *Service) RecalculateFX(ctx context.Context, batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if !s.snapshotMutable(batch) {
			return domain.ErrLockedSnapshotImmutable
		}
		snapshot, err := s.buildSnapshot(ctx, s.fxPrimary, batch)
		if err != nil {
			// Keep the previous snapshot; the caller decides whether to retry.
			return err
		}
		applySnapshot(batch, snapshot)
		batch.AppendEvent(s.now(), domain.ActorUser, actorID, domain.LevelInfo,
			fmt.Sprintf("fx rates recalculated via %s (%d quotes against %s)", snapshot.Provider, len(snapshot.Quotes), snapshot.BaseCurrency))
		return nil
	})
}

// LockFX freezes the batch's current snapshot for ttlSeconds. The snapshotID
// guards against locking a snapshot that has since been superseded.
func (s *Service) LockFX(ctx context.Context, batchID, snapshotID uuid.UUID, ttlSeconds int64, actorID string) (*domain.PayrollBatch, error) {
	if ttlSeconds <= 0 {
		ttlSeconds = s.defaultLockTTL
	}
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		snap := batch.FXSnapshot
		if snap == nil {
			return domain.ErrNoSnapshot
		}
		if snap.ID != snapshotID {
			return domain.ErrStaleSnapshot
		}
		if snap.IsLocked() {
			return domain.ErrAlreadyLocked
		}
		now := s.now()
		snap.LockedAt = &now
		snap.LockTTLSeconds = &ttlSeconds
		expiresAt, _ := snap.ExpiresAt()
		batch.AppendEvent(now, domain.ActorUser, actorID, domain.LevelInfo,
			fmt.Sprintf("fx rates locked for %ds (until %s) via %s", ttlSeconds, expiresAt.UTC().Format("15:04:05Z"), snap.Provider))
		return nil
	})
}

// SwitchFXProvider discards the current unlocked snapshot and recalculates
// from the fallback provider. Not permitted while an unexpired lock is held.
func (s *Service) SwitchFXProvider(ctx context.Context, batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
	return s.mutateBatch(ctx, batchID, func(batch *domain.PayrollBatch) error {
		if !s.snapshotMutable(batch) {
			return domain.ErrLockedSnapshotImmutable
		}
		snapshot, err := s.buildSnapshot(ctx, s.fxFallback, batch)
		if err != nil {
			return err
		}
		applySnapshot(batch, snapshot)
		batch.AppendEvent(s.now(), domain.ActorUser, actorID, domain.LevelInfo,
			fmt.Sprintf("fx provider switched; rates recalculated via %s", snapshot.Provider))
		return nil
	})
}

// validateLockForUse is the re-entrant precondition shared by approve and
// execute: the snapshot must exist, be locked, and the lock must still be live
// at the instant of the call.
func (s *Service) validateLockForUse(batch *domain.PayrollBatch) error {
	snap := batch.FXSnapshot
	if snap == nil {
		return domain.ErrNoSnapshot
	}
	if !snap.IsLocked() {
		return domain.ErrSnapshotNotLocked
	}
	now := s.now()
	if snap.IsExpired(now) {
		expiresAt, _ := snap.ExpiresAt()
		return &domain.LockExpiredError{ExpiredAt: expiresAt, Now: now}
	}
	return nil
}

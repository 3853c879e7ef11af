/**
 * @description
 * This file implements the audit trail replay: the chronological merge of a
 * batch's lifecycle events and its approval events into a single stream,
 * newest first. The trail is derived on every read from the aggregate's two
 * append-only logs; nothing here writes state.
 */

package app

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/geniehr/payroll-service/internal/domain"
)

// AuditFilter narrows the replayed trail. Zero values match everything.
type AuditFilter struct {
	Actor domain.Actor
	Level domain.EventLevel
}

func (f AuditFilter) matches(e domain.UnifiedEvent) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	return true
}

// ReplayAuditTrail merges the batch's event log and approval log into one
// stream sorted newest first. Entries written in the same clock instant keep
// their append order via the per-batch sequence number, so the trail is stable
// across replays.
func ReplayAuditTrail(batch *domain.PayrollBatch, filter AuditFilter) []domain.UnifiedEvent {
	merged := make([]domain.UnifiedEvent, 0, len(batch.Events)+len(batch.Approvals))
	for _, e := range batch.Events {
		if u := domain.UnifyBatchEvent(e); filter.matches(u) {
			merged = append(merged, u)
		}
	}
	for _, e := range batch.Approvals {
		if u := domain.UnifyApprovalEvent(e); filter.matches(u) {
			merged = append(merged, u)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].At.Equal(merged[j].At) {
			return merged[i].At.After(merged[j].At)
		}
		return merged[i].Seq > merged[j].Seq
	})
	return merged
}

// AuditTrail loads the batch and replays its full audit trail.
func (s *Service) AuditTrail(ctx context.Context, batchID uuid.UUID, filter AuditFilter) ([]domain.UnifiedEvent, error) {
	batch, err := s.repo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return ReplayAuditTrail(batch, filter), nil
}

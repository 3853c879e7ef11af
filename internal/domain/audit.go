/**
 * @description
 * This file defines the unified audit event: the read-only merge of batch
 * events and approval events that the audit trail replays. It is a derived
 * view, never an independent store.
 */

package domain

import (
	"fmt"
	"time"
)

// UnifiedEventSource tells which log an audit entry came from.
type UnifiedEventSource string

const (
	SourceBatchEvent    UnifiedEventSource = "batch_event"
	SourceApprovalEvent UnifiedEventSource = "approval_event"
)

// UnifiedEvent is one entry of the merged audit trail.
type UnifiedEvent struct {
	Seq     int64              `json:"seq"`
	At      time.Time          `json:"at"`
	Actor   Actor              `json:"actor"`
	ActorID string             `json:"actor_id,omitempty"`
	Level   EventLevel         `json:"level"`
	Message string             `json:"message"`
	Source  UnifiedEventSource `json:"source"`
}

// UnifyBatchEvent maps a batch event onto the audit shape.
func UnifyBatchEvent(e BatchEvent) UnifiedEvent {
	return UnifiedEvent{
		Seq:     e.Seq,
		At:      e.At,
		Actor:   e.Actor,
		ActorID: e.ActorID,
		Level:   e.Level,
		Message: e.Message,
		Source:  SourceBatchEvent,
	}
}

// UnifyApprovalEvent maps an approval event onto the audit shape. Approval
// entries are always synthesized at info level with a User actor, since every
// approval action is human-initiated.
func UnifyApprovalEvent(e ApprovalEvent) UnifiedEvent {
	msg := fmt.Sprintf("approval: %s %s by %s", e.Role, e.Action, e.ActorID)
	if e.Note != "" {
		msg = fmt.Sprintf("%s — %q", msg, e.Note)
	}
	return UnifiedEvent{
		Seq:     e.Seq,
		At:      e.At,
		Actor:   ActorUser,
		ActorID: e.ActorID,
		Level:   LevelInfo,
		Message: msg,
		Source:  SourceApprovalEvent,
	}
}

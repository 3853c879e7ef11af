/**
 * @description
 * This file implements the receipt event consumer: the bridge between the
 * provider's settlement event queue and the reconciliation engine. Each queue
 * delivery is decoded, validated, and applied as a receipt; malformed or
 * unresolvable events are acknowledged and dropped (re-queuing cannot fix
 * them), while transient persistence failures are re-queued for another
 * attempt.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/geniehr/payroll-service/internal/domain"
	"github.com/geniehr/payroll-service/internal/store"
)

// ReceiptEventConsumer applies provider settlement events to batches.
type ReceiptEventConsumer struct {
	service *Service
}

func NewReceiptEventConsumer(service *Service) *ReceiptEventConsumer {
	return &ReceiptEventConsumer{service: service}
}

// HandleDelivery is the queue binding handler. It returns true when the
// delivery should be acknowledged, false to re-queue it.
func (c *ReceiptEventConsumer) HandleDelivery(body []byte) bool {
	var event domain.ReceiptStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=receipt_consumer msg=\"dropping undecodable receipt event\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.ProcessEvent(ctx, event); err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			// The provider references a batch this service never created.
			// Redelivery cannot make it appear.
			log.Printf("level=warn component=receipt_consumer msg=\"dropping receipt event for unknown batch\" event_id=%s batch_id=%s", event.EventID, event.BatchID)
			return true
		}
		var invalid *domain.InvalidTransitionError
		if errors.As(err, &invalid) {
			// A settlement for a batch that never dispatched payments. The
			// rejection is already on the batch's audit trail; re-queueing
			// would just spin on the same anomalous event.
			log.Printf("level=warn component=receipt_consumer msg=\"dropping receipt event for undispatched batch\" event_id=%s batch_id=%s status=%s", event.EventID, event.BatchID, invalid.From)
			return true
		}
		log.Printf("level=error component=receipt_consumer msg=\"receipt event failed; re-queuing\" event_id=%s batch_id=%s err=%v", event.EventID, event.BatchID, err)
		return false
	}
	return true
}

// ProcessEvent validates the event and applies it through the reconciliation
// engine. Validation failures are logged and swallowed; they are permanent and
// must not block the queue.
func (c *ReceiptEventConsumer) ProcessEvent(ctx context.Context, event domain.ReceiptStatusEvent) error {
	batchID, err := uuid.Parse(strings.TrimSpace(event.BatchID))
	if err != nil {
		log.Printf("level=warn component=receipt_consumer msg=\"dropping receipt event with bad batch id\" event_id=%s batch_id=%q", event.EventID, event.BatchID)
		return nil
	}

	status, ok := ParseReceiptStatus(event.Status)
	if !ok {
		log.Printf("level=warn component=receipt_consumer msg=\"dropping receipt event with unknown status\" event_id=%s status=%q", event.EventID, event.Status)
		return nil
	}

	amount := decimal.Zero
	if strings.TrimSpace(event.Amount) != "" {
		amount, err = decimal.NewFromString(strings.TrimSpace(event.Amount))
		if err != nil {
			log.Printf("level=warn component=receipt_consumer msg=\"dropping receipt event with bad amount\" event_id=%s amount=%q err=%v", event.EventID, event.Amount, err)
			return nil
		}
	}

	receipt := domain.PaymentReceipt{
		PayeeID:     strings.TrimSpace(event.PayeeID),
		ProviderRef: strings.TrimSpace(event.ProviderRef),
		Amount:      domain.NewMoney(amount, event.Currency),
		Status:      status,
	}
	if status == domain.ReceiptPaid && !event.OccurredAt.IsZero() {
		at := event.OccurredAt
		receipt.PaidAt = &at
	}

	result, err := c.service.IngestProviderReceipt(ctx, batchID, receipt)
	if err != nil {
		return err
	}
	log.Printf("level=info component=receipt_consumer msg=\"receipt event applied\" event_id=%s batch_id=%s matched=%d orphaned=%d failed=%d",
		event.EventID, event.BatchID, result.Matched, result.Orphaned, result.Failed)
	return nil
}

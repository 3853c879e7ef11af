package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geniehr/payroll-service/internal/domain"
	"github.com/geniehr/payroll-service/internal/store"
	"github.com/geniehr/payroll-service/pkg/complianceclient"
	"github.com/geniehr/payroll-service/pkg/fxclient"
	"github.com/geniehr/payroll-service/pkg/rabbitmq"
)

// stubRateProvider serves canned quotes, or an error when failWith is set.
type stubRateProvider struct {
	name     string
	rates    map[string]string
	fee      string
	failWith error
	calls    int
}

func (s *stubRateProvider) Name() string { return s.name }

func (s *stubRateProvider) GetRates(ctx context.Context, baseCurrency string, targetCurrencies []string) (*fxclient.RatesResponse, error) {
	s.calls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	resp := &fxclient.RatesResponse{}
	resp.Data.Provider = s.name
	resp.Data.Base = baseCurrency
	for _, currency := range targetCurrencies {
		rate, ok := s.rates[currency]
		if !ok {
			continue
		}
		fee := s.fee
		if fee == "" {
			fee = "0"
		}
		resp.Data.Quotes = append(resp.Data.Quotes, fxclient.Quote{
			Currency: currency,
			Rate:     decimal.RequireFromString(rate),
			Fee:      decimal.RequireFromString(fee),
		})
	}
	return resp, nil
}

// stubDispatcher hands out sequential provider refs and can be told to fail
// specific payees.
type stubDispatcher struct {
	failFor    map[string]error
	dispatched []string
	nextRef    int
}

func (s *stubDispatcher) DispatchPayment(ctx context.Context, batchID, payeeID, amount, currency string) (string, error) {
	s.dispatched = append(s.dispatched, payeeID)
	if err, ok := s.failFor[payeeID]; ok {
		return "", err
	}
	s.nextRef++
	return fmt.Sprintf("ref-%d", s.nextRef), nil
}

// stubEvaluator returns ready verdicts unless a worker is listed in blocked.
type stubEvaluator struct {
	blocked  map[string][]string
	failWith error
}

func (s *stubEvaluator) Evaluate(ctx context.Context, workerID, countryCode, currency string) (*complianceclient.EvaluateResponse, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	if issues, ok := s.blocked[workerID]; ok {
		return &complianceclient.EvaluateResponse{Ready: false, BlockingIssues: issues}, nil
	}
	return &complianceclient.EvaluateResponse{Ready: true}, nil
}

// stubPublisher records notifications and can simulate a broker outage.
type stubPublisher struct {
	published []rabbitmq.BatchNotificationEvent
	failWith  error
}

func (s *stubPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return s.failWith
}

func (s *stubPublisher) PublishBatchNotification(ctx context.Context, exchange string, event rabbitmq.BatchNotificationEvent) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.published = append(s.published, event)
	return nil
}

func (s *stubPublisher) Close() {}

// testHarness bundles the service with its stub collaborators and a settable
// clock.
type testHarness struct {
	service    *Service
	repo       *store.MemoryRepository
	fxPrimary  *stubRateProvider
	fxFallback *stubRateProvider
	dispatcher *stubDispatcher
	compliance *stubEvaluator
	publisher  *stubPublisher
	clock      time.Time
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		repo: store.NewMemoryRepository(),
		fxPrimary: &stubRateProvider{
			name:  "primary",
			rates: map[string]string{"EUR": "0.91", "GBP": "0.78", "NGN": "1530.25"},
			fee:   "1.50",
		},
		fxFallback: &stubRateProvider{
			name:  "fallback",
			rates: map[string]string{"EUR": "0.92", "GBP": "0.79", "NGN": "1528.00"},
			fee:   "2.00",
		},
		dispatcher: &stubDispatcher{failFor: map[string]error{}},
		compliance: &stubEvaluator{blocked: map[string][]string{}},
		publisher:  &stubPublisher{},
		clock:      time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
	}
	h.service = NewService(
		h.repo,
		h.fxPrimary,
		h.fxFallback,
		h.dispatcher,
		h.compliance,
		h.publisher,
		"payroll.notifications",
		"USD",
		DefaultLockTTLSeconds,
	)
	h.service.now = func() time.Time { return h.clock }
	return h
}

// advance moves the harness clock forward.
func (h *testHarness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func money(t *testing.T, amount, currency string) domain.Money {
	t.Helper()
	return domain.NewMoney(decimal.RequireFromString(amount), currency)
}

func testPayee(t *testing.T, workerID, currency, gross string) domain.PayrollPayee {
	t.Helper()
	return domain.PayrollPayee{
		WorkerID:    workerID,
		Name:        "Worker " + workerID,
		CountryCode: "DE",
		Currency:    currency,
		Gross:       money(t, gross, currency),
	}
}

// draftBatch creates a draft batch holding the given payees, all passed
// through the compliance evaluator.
func (h *testHarness) draftBatch(t *testing.T, payees ...domain.PayrollPayee) *domain.PayrollBatch {
	t.Helper()
	ctx := context.Background()
	batch, err := h.service.CreateBatch(ctx, "2026-03", "prep-1")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	for _, p := range payees {
		if _, err := h.service.AddPayee(ctx, batch.ID, p, "prep-1"); err != nil {
			t.Fatalf("AddPayee(%s): %v", p.WorkerID, err)
		}
		if _, err := h.service.RecomputeReadiness(ctx, batch.ID, p.WorkerID, "prep-1"); err != nil {
			t.Fatalf("RecomputeReadiness(%s): %v", p.WorkerID, err)
		}
	}
	updated, err := h.service.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	return updated
}

// lockedBatch takes a draft batch through recalculate and lock.
func (h *testHarness) lockedBatch(t *testing.T, payees ...domain.PayrollPayee) *domain.PayrollBatch {
	t.Helper()
	ctx := context.Background()
	batch := h.draftBatch(t, payees...)
	batch, err := h.service.RecalculateFX(ctx, batch.ID, "prep-1")
	if err != nil {
		t.Fatalf("RecalculateFX: %v", err)
	}
	batch, err = h.service.LockFX(ctx, batch.ID, batch.FXSnapshot.ID, 0, "prep-1")
	if err != nil {
		t.Fatalf("LockFX: %v", err)
	}
	return batch
}

// approvedBatch takes a locked batch through submit and approve.
func (h *testHarness) approvedBatch(t *testing.T, payees ...domain.PayrollPayee) *domain.PayrollBatch {
	t.Helper()
	ctx := context.Background()
	batch := h.lockedBatch(t, payees...)
	if _, err := h.service.SubmitForApproval(ctx, batch.ID, "prep-1", ""); err != nil {
		t.Fatalf("SubmitForApproval: %v", err)
	}
	batch, err := h.service.Approve(ctx, batch.ID, "appr-1", "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return batch
}

func hasEventContaining(batch *domain.PayrollBatch, level domain.EventLevel, substr string) bool {
	for _, e := range batch.Events {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

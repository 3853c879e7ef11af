/**
 * @description
 * This file contains the HTTP handlers for the payroll-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/geniehr/payroll-service/internal/app"
	"github.com/geniehr/payroll-service/internal/domain"
	"github.com/geniehr/payroll-service/internal/store"
)

// PayrollHandlers holds the application service that handlers will use.
type PayrollHandlers struct {
	service *app.Service

	limiter             app.IngestionRateLimiter
	bankFileLimitPerMin int
}

// NewPayrollHandlers creates a new instance of PayrollHandlers. The limiter may
// be nil, in which case ingestion endpoints are not rate limited.
func NewPayrollHandlers(service *app.Service, limiter app.IngestionRateLimiter, bankFileLimitPerMin int) *PayrollHandlers {
	return &PayrollHandlers{
		service:             service,
		limiter:             limiter,
		bankFileLimitPerMin: bankFileLimitPerMin,
	}
}

type createBatchRequest struct {
	PayPeriod string `json:"pay_period"`
}

type addPayeeRequest struct {
	WorkerID      string `json:"worker_id"`
	Name          string `json:"name"`
	CountryCode   string `json:"country_code"`
	Currency      string `json:"currency"`
	GrossAmount   string `json:"gross_amount"`
	EmployerCosts string `json:"employer_costs,omitempty"`
	ETA           string `json:"eta,omitempty"`
}

type adjustmentRequest struct {
	Amount string `json:"amount"`
	Label  string `json:"label"`
}

type lockFXRequest struct {
	SnapshotID string `json:"snapshot_id"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type approvalNoteRequest struct {
	Note string `json:"note,omitempty"`
}

// CreateBatchHandler creates an empty draft batch for a pay period.
func (h *PayrollHandlers) CreateBatchHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.PayPeriod == "" {
		h.writeError(w, http.StatusBadRequest, "pay_period is required")
		return
	}

	batch, err := h.service.CreateBatch(r.Context(), req.PayPeriod, actorID)
	if err != nil {
		log.Printf("level=error component=api endpoint=create_batch msg=\"batch creation failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to create batch")
		return
	}
	h.writeJSON(w, http.StatusCreated, batch)
}

// GetBatchHandler returns the full batch aggregate.
func (h *PayrollHandlers) GetBatchHandler(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	batch, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		h.writeServiceError(w, r, "get_batch", err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// GetBatchSummaryHandler returns the progress rollup for a batch.
func (h *PayrollHandlers) GetBatchSummaryHandler(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.GetBatchSummary(r.Context(), batchID)
	if err != nil {
		h.writeServiceError(w, r, "get_batch_summary", err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// DeleteBatchHandler deletes a batch that is still in draft.
func (h *PayrollHandlers) DeleteBatchHandler(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDraftBatch(r.Context(), batchID); err != nil {
		if errors.Is(err, store.ErrBatchNotDraft) {
			h.writeError(w, http.StatusConflict, "Only draft batches can be deleted")
			return
		}
		h.writeServiceError(w, r, "delete_batch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPayeeHandler adds a worker's pay line to a draft batch.
func (h *PayrollHandlers) AddPayeeHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}

	var req addPayeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.WorkerID == "" || req.Currency == "" {
		h.writeError(w, http.StatusBadRequest, "worker_id and currency are required")
		return
	}
	gross, err := decimal.NewFromString(req.GrossAmount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "gross_amount must be a decimal string")
		return
	}

	payee := domain.PayrollPayee{
		WorkerID:    req.WorkerID,
		Name:        req.Name,
		CountryCode: req.CountryCode,
		Currency:    req.Currency,
		Gross:       domain.NewMoney(gross, req.Currency),
	}
	if req.ETA != "" {
		eta, err := time.Parse(time.RFC3339, req.ETA)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "eta must be an RFC 3339 timestamp")
			return
		}
		payee.ETA = &eta
	}
	if req.EmployerCosts != "" {
		costs, err := decimal.NewFromString(req.EmployerCosts)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "employer_costs must be a decimal string")
			return
		}
		payee.EmployerCosts = domain.NewMoney(costs, req.Currency)
	}

	batch, err := h.service.AddPayee(r.Context(), batchID, payee, actorID)
	if err != nil {
		h.writeServiceError(w, r, "add_payee", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, batch)
}

// RemovePayeeHandler removes a worker's pay line from a draft batch.
func (h *PayrollHandlers) RemovePayeeHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	workerID := chi.URLParam(r, "workerID")

	batch, err := h.service.RemovePayee(r.Context(), batchID, workerID, actorID)
	if err != nil {
		h.writeServiceError(w, r, "remove_payee", err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// EditAdjustmentHandler appends a signed, labelled adjustment to a pay line.
func (h *PayrollHandlers) EditAdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	workerID := chi.URLParam(r, "workerID")

	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "amount must be a decimal string")
		return
	}

	batch, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		h.writeServiceError(w, r, "edit_adjustment", err)
		return
	}
	payee := batch.PayeeByWorkerID(workerID)
	if payee == nil {
		h.writeError(w, http.StatusNotFound, "Worker is not in the batch")
		return
	}

	adjustment := domain.Adjustment{
		Amount: domain.NewMoney(amount, payee.Gross.Currency),
		Label:  req.Label,
	}
	batch, err = h.service.EditAdjustment(r.Context(), batchID, workerID, adjustment, actorID)
	if err != nil {
		h.writeServiceError(w, r, "edit_adjustment", err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// RecomputeReadinessHandler re-runs the compliance verdict for one payee.
func (h *PayrollHandlers) RecomputeReadinessHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	workerID := chi.URLParam(r, "workerID")

	batch, err := h.service.RecomputeReadiness(r.Context(), batchID, workerID, actorID)
	if err != nil {
		h.writeServiceError(w, r, "recompute_readiness", err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// RecalculateFXHandler refreshes the batch's FX snapshot from the primary provider.
func (h *PayrollHandlers) RecalculateFXHandler(w http.ResponseWriter, r *http.Request) {
	h.runLifecycleOp(w, r, "recalculate_fx", func(batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
		return h.service.RecalculateFX(r.Context(), batchID, actorID)
	})
}

// LockFXHandler takes the one-shot time-boxed lock on the current snapshot.
func (h *PayrollHandlers) LockFXHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}

	var req lockFXRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	snapshotID, err := uuid.Parse(req.SnapshotID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "snapshot_id must be a UUID")
		return
	}

	batch, err := h.service.LockFX(r.Context(), batchID, snapshotID, req.TTLSeconds, actorID)
	if err != nil {
		h.writeServiceError(w, r, "lock_fx", err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// SwitchFXProviderHandler recalculates from the fallback provider.
func (h *PayrollHandlers) SwitchFXProviderHandler(w http.ResponseWriter, r *http.Request) {
	h.runLifecycleOp(w, r, "switch_fx_provider", func(batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
		return h.service.SwitchFXProvider(r.Context(), batchID, actorID)
	})
}

// SubmitHandler moves a draft batch into the approval queue.
func (h *PayrollHandlers) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	h.runApprovalOp(w, r, "submit", h.service.SubmitForApproval)
}

// ApproveHandler applies the approver's sign-off.
func (h *PayrollHandlers) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	h.runApprovalOp(w, r, "approve", h.service.Approve)
}

// DeclineHandler sends the batch back to draft.
func (h *PayrollHandlers) DeclineHandler(w http.ResponseWriter, r *http.Request) {
	h.runApprovalOp(w, r, "decline", h.service.Decline)
}

// WithdrawHandler lets the preparer pull back their submission.
func (h *PayrollHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.runApprovalOp(w, r, "withdraw", h.service.Withdraw)
}

// RemindHandler nudges the approver without changing state.
func (h *PayrollHandlers) RemindHandler(w http.ResponseWriter, r *http.Request) {
	h.runLifecycleOp(w, r, "remind", func(batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
		return h.service.Remind(r.Context(), batchID, actorID)
	})
}

// ExecuteHandler dispatches the approved batch for payment.
func (h *PayrollHandlers) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	h.runLifecycleOp(w, r, "execute", func(batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
		return h.service.ExecuteBatch(r.Context(), batchID, actorID)
	})
}

// RetryFailedHandler re-dispatches only the failed payees.
func (h *PayrollHandlers) RetryFailedHandler(w http.ResponseWriter, r *http.Request) {
	h.runLifecycleOp(w, r, "retry_failed", func(batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error) {
		return h.service.RetryFailed(r.Context(), batchID, actorID)
	})
}

// AuditTrailHandler replays the merged audit trail, newest first. Supports
// ?actor= and ?level= filters.
func (h *PayrollHandlers) AuditTrailHandler(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	filter := app.AuditFilter{
		Actor: domain.Actor(r.URL.Query().Get("actor")),
		Level: domain.EventLevel(r.URL.Query().Get("level")),
	}
	trail, err := h.service.AuditTrail(r.Context(), batchID, filter)
	if err != nil {
		h.writeServiceError(w, r, "audit_trail", err)
		return
	}
	h.writeJSON(w, http.StatusOK, trail)
}

// IngestReceiptHandler applies a single provider receipt (internal).
func (h *PayrollHandlers) IngestReceiptHandler(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}

	var row app.BankFileRow
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.IngestBankFile(r.Context(), batchID, []app.BankFileRow{row})
	if err != nil {
		h.writeServiceError(w, r, "ingest_receipt", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// IngestBankFileHandler applies a full bank settlement file (internal).
func (h *PayrollHandlers) IngestBankFileHandler(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}

	if h.limiter != nil && h.bankFileLimitPerMin > 0 {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "bank_file", batchID.String(), h.bankFileLimitPerMin, time.Minute)
		if err != nil {
			log.Printf("level=warn component=api endpoint=ingest_bank_file msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > h.bankFileLimitPerMin {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many bank file uploads for this batch; slow down")
			return
		}
	}

	var rows []app.BankFileRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.IngestBankFile(r.Context(), batchID, rows)
	if err != nil {
		h.writeServiceError(w, r, "ingest_bank_file", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// runApprovalOp factors the shared shape of the approval endpoints: parse the
// batch ID, read the optional note, call the service, map the error.
func (h *PayrollHandlers) runApprovalOp(w http.ResponseWriter, r *http.Request, endpoint string, op func(ctx context.Context, batchID uuid.UUID, actorID, note string) (*domain.PayrollBatch, error)) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}

	var req approvalNoteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
	}

	batch, err := op(r.Context(), batchID, actorID, req.Note)
	if err != nil {
		h.writeServiceError(w, r, endpoint, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

func (h *PayrollHandlers) runLifecycleOp(w http.ResponseWriter, r *http.Request, endpoint string, op func(batchID uuid.UUID, actorID string) (*domain.PayrollBatch, error)) {
	actorID, ok := GetActorID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}

	batch, err := op(batchID, actorID)
	if err != nil {
		h.writeServiceError(w, r, endpoint, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

func (h *PayrollHandlers) parseBatchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	batchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Batch ID must be a UUID")
		return uuid.Nil, false
	}
	return batchID, true
}

// writeServiceError maps domain and store errors onto HTTP statuses.
func (h *PayrollHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var invalidTransition *domain.InvalidTransitionError
	var lockExpired *domain.LockExpiredError
	var currencyMismatch *domain.CurrencyMismatchError

	switch {
	case errors.Is(err, store.ErrBatchNotFound):
		h.writeError(w, http.StatusNotFound, "Batch not found")
	case errors.As(err, &invalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &lockExpired):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBatchNotEditable),
		errors.Is(err, domain.ErrAlreadyLocked),
		errors.Is(err, domain.ErrStaleSnapshot),
		errors.Is(err, domain.ErrLockedSnapshotImmutable),
		errors.Is(err, domain.ErrSnapshotNotLocked),
		errors.Is(err, domain.ErrNoSnapshot):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSelfApprovalForbidden):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &currencyMismatch):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PayrollHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PayrollHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

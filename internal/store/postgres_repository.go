/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. The batch is persisted as an aggregate row: lifecycle columns for
 * querying (status, pay period) plus JSONB documents for the payees, snapshot,
 * event logs, and receipts, which are only ever read and written as a whole
 * under the app layer's per-batch critical section.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geniehr/payroll-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// batchDocument is the JSONB payload stored alongside the queryable columns.
type batchDocument struct {
	Payees     []domain.PayrollPayee   `json:"payees"`
	FXSnapshot *domain.FXSnapshot      `json:"fx_snapshot,omitempty"`
	Approvals  []domain.ApprovalEvent  `json:"approvals"`
	Events     []domain.BatchEvent     `json:"events"`
	Receipts   []domain.PaymentReceipt `json:"receipts"`
	OrphanRefs []string                `json:"orphan_refs,omitempty"`
}

func encodeBatchDocument(batch *domain.PayrollBatch) ([]byte, error) {
	doc := batchDocument{
		Payees:     batch.Payees,
		FXSnapshot: batch.FXSnapshot,
		Approvals:  batch.Approvals,
		Events:     batch.Events,
		Receipts:   batch.Receipts,
		OrphanRefs: batch.OrphanRefs,
	}
	return json.Marshal(doc)
}

func decodeBatchDocument(batch *domain.PayrollBatch, raw []byte) error {
	var doc batchDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode batch document: %w", err)
	}
	batch.Payees = doc.Payees
	batch.FXSnapshot = doc.FXSnapshot
	batch.Approvals = doc.Approvals
	batch.Events = doc.Events
	batch.Receipts = doc.Receipts
	batch.OrphanRefs = doc.OrphanRefs
	return nil
}

// CreateBatch inserts a new batch aggregate.
func (r *PostgresRepository) CreateBatch(ctx context.Context, batch *domain.PayrollBatch) error {
	doc, err := encodeBatchDocument(batch)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO payroll_batches (id, pay_period, status, event_seq, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.Exec(ctx, query,
		batch.ID, batch.PayPeriod, string(batch.Status), batch.EventSeq, doc, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payroll batch: %w", err)
	}
	return nil
}

// FindBatchByID loads the full aggregate.
func (r *PostgresRepository) FindBatchByID(ctx context.Context, batchID uuid.UUID) (*domain.PayrollBatch, error) {
	var (
		batch  domain.PayrollBatch
		status string
		doc    []byte
	)
	query := `SELECT id, pay_period, status, event_seq, document, created_at, updated_at FROM payroll_batches WHERE id = $1`
	err := r.db.QueryRow(ctx, query, batchID).Scan(
		&batch.ID, &batch.PayPeriod, &status, &batch.EventSeq, &doc, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	batch.Status = domain.BatchStatus(status)
	if err := decodeBatchDocument(&batch, doc); err != nil {
		return nil, err
	}
	return &batch, nil
}

// SaveBatch replaces the stored aggregate. The updated_at column is bumped so
// listing queries can order by recency.
func (r *PostgresRepository) SaveBatch(ctx context.Context, batch *domain.PayrollBatch) error {
	doc, err := encodeBatchDocument(batch)
	if err != nil {
		return err
	}
	query := `
		UPDATE payroll_batches
		SET pay_period = $2, status = $3, event_seq = $4, document = $5, updated_at = $6
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		batch.ID, batch.PayPeriod, string(batch.Status), batch.EventSeq, doc, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save payroll batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// ListBatchesByStatus returns all batches currently in the given lifecycle status.
func (r *PostgresRepository) ListBatchesByStatus(ctx context.Context, status domain.BatchStatus) ([]domain.PayrollBatch, error) {
	query := `SELECT id, pay_period, status, event_seq, document, created_at, updated_at FROM payroll_batches WHERE status = $1 ORDER BY updated_at DESC`
	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PayrollBatch
	for rows.Next() {
		var (
			batch     domain.PayrollBatch
			statusCol string
			doc       []byte
		)
		if err := rows.Scan(&batch.ID, &batch.PayPeriod, &statusCol, &batch.EventSeq, &doc, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
			return nil, err
		}
		batch.Status = domain.BatchStatus(statusCol)
		if err := decodeBatchDocument(&batch, doc); err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

// DeleteDraftBatch removes a batch only while it is still in draft.
func (r *PostgresRepository) DeleteDraftBatch(ctx context.Context, batchID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payroll_batches WHERE id = $1 AND status = $2`, batchID, string(domain.BatchDraft))
	if err != nil {
		return fmt.Errorf("failed to delete draft batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from non-draft for a precise caller-facing error.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_batches WHERE id = $1)`, batchID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrBatchNotDraft
		}
		return ErrBatchNotFound
	}
	return nil
}

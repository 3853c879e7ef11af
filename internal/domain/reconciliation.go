/**
 * @description
 * This file defines the result shape returned by the reconciliation ingestion
 * entrypoints: how many receipts matched a payee, how many referenced an
 * unknown payee, and how many reported a failed settlement.
 */

package domain

// ReconciliationResult summarizes one ingestion pass over a set of receipts.
type ReconciliationResult struct {
	Matched  int `json:"matched"`
	Orphaned int `json:"orphaned"`
	Failed   int `json:"failed"`

	// Skipped counts rows that could not be parsed into a receipt at all
	// (bank-file ingestion only). They are logged, never fatal.
	Skipped int `json:"skipped,omitempty"`
}

// Merge folds another result into this one.
func (r *ReconciliationResult) Merge(other ReconciliationResult) {
	r.Matched += other.Matched
	r.Orphaned += other.Orphaned
	r.Failed += other.Failed
	r.Skipped += other.Skipped
}

/**
 * @description
 * This file derives batch-level status summaries (counts, totals, percent
 * complete) from the canonical aggregate. Dashboards read these instead of
 * recomputing ad hoc; nothing here is ever stored.
 */

package domain

import "github.com/shopspring/decimal"

// BatchSummary is a read-only rollup of a batch's progress.
type BatchSummary struct {
	BatchID          string            `json:"batch_id"`
	PayPeriod        string            `json:"pay_period"`
	Status           BatchStatus       `json:"status"`
	PayeeCount       int               `json:"payee_count"`
	StatusCounts     map[string]int    `json:"status_counts"`
	TotalsByCurrency map[string]string `json:"totals_by_currency"`
	PercentComplete  int               `json:"percent_complete"`
	FxLocked         bool              `json:"fx_locked"`
}

// Summarize derives the rollup. Net totals are grouped per currency so a
// multi-currency batch never sums across currencies.
func Summarize(b *PayrollBatch) BatchSummary {
	s := BatchSummary{
		BatchID:          b.ID.String(),
		PayPeriod:        b.PayPeriod,
		Status:           b.Status,
		PayeeCount:       len(b.Payees),
		StatusCounts:     make(map[string]int),
		TotalsByCurrency: make(map[string]string),
		FxLocked:         b.FXSnapshot.IsLocked(),
	}

	totals := make(map[string]decimal.Decimal)
	paid := 0
	for i := range b.Payees {
		p := &b.Payees[i]
		s.StatusCounts[string(p.Status)]++
		if p.Status == PayeePaid {
			paid++
		}
		net, err := p.NetPay()
		if err != nil {
			// Mixed-currency adjustments are rejected at edit time; a line that
			// still fails derivation is skipped from totals rather than guessed at.
			continue
		}
		totals[net.Currency] = totals[net.Currency].Add(net.Amount)
	}
	for currency, amount := range totals {
		s.TotalsByCurrency[currency] = amount.String()
	}
	if len(b.Payees) > 0 {
		s.PercentComplete = paid * 100 / len(b.Payees)
	}
	return s
}

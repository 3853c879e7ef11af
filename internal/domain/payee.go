/**
 * @description
 * This file defines the per-worker pay line within a payroll batch: gross pay,
 * employer costs, adjustments, the proposed FX terms, and the payee's own
 * lifecycle status.
 *
 * @notes
 * - Net pay is always derived (gross + adjustments), never stored, so it can
 *   never drift from its inputs.
 * - Readiness is decided by an external country-rules collaborator; the core
 *   only records the verdict and its annotations. Country law is not encoded
 *   here.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayeeStatus is the lifecycle status of a single payee within a batch.
type PayeeStatus string

const (
	PayeeNotReady         PayeeStatus = "not_ready"
	PayeeReady            PayeeStatus = "ready"
	PayeeAwaitingApproval PayeeStatus = "awaiting_approval"
	PayeeExecuting        PayeeStatus = "executing"
	PayeePaid             PayeeStatus = "paid"
	PayeeFailed           PayeeStatus = "failed"
)

// Adjustment is a signed, labelled delta applied on top of gross pay
// (expense reimbursement, bonus, deduction, ...).
type Adjustment struct {
	Amount Money  `json:"amount"`
	Label  string `json:"label"`
}

// PayrollPayee is one worker's pay line within a batch.
type PayrollPayee struct {
	WorkerID       string           `json:"worker_id"`
	Name           string           `json:"name"`
	CountryCode    string           `json:"country_code"`
	Currency       string           `json:"currency"`
	Gross          Money            `json:"gross"`
	EmployerCosts  Money            `json:"employer_costs"`
	Adjustments    []Adjustment     `json:"adjustments"`
	ProposedFxRate *decimal.Decimal `json:"proposed_fx_rate,omitempty"`
	FxFee          *Money           `json:"fx_fee,omitempty"`
	ETA            *time.Time       `json:"eta,omitempty"`
	Status         PayeeStatus      `json:"status"`
	BlockingIssues []string         `json:"blocking_issues,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// NetPay derives gross + the sum of adjustments. Every adjustment must share
// the gross currency; the first mismatch fails the derivation.
func (p *PayrollPayee) NetPay() (Money, error) {
	net := p.Gross
	for _, adj := range p.Adjustments {
		var err error
		net, err = net.Add(adj.Amount)
		if err != nil {
			return Money{}, err
		}
	}
	return net, nil
}

// Clone returns a deep copy of the payee.
func (p *PayrollPayee) Clone() *PayrollPayee {
	cp := *p
	cp.Adjustments = append([]Adjustment(nil), p.Adjustments...)
	cp.BlockingIssues = append([]string(nil), p.BlockingIssues...)
	cp.Warnings = append([]string(nil), p.Warnings...)
	if p.ProposedFxRate != nil {
		r := *p.ProposedFxRate
		cp.ProposedFxRate = &r
	}
	if p.FxFee != nil {
		f := *p.FxFee
		cp.FxFee = &f
	}
	if p.ETA != nil {
		t := *p.ETA
		cp.ETA = &t
	}
	return &cp
}

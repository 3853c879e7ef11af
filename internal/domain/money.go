/**
 * @description
 * This file defines the monetary value types used across the payroll-service.
 * Amounts are represented with shopspring/decimal rather than floats so that
 * gross-to-net arithmetic and FX conversion never accumulate binary rounding
 * error.
 *
 * @notes
 * - Money is a value type: every operation returns a new Money and leaves the
 *   receiver untouched.
 * - All cross-currency operations fail closed with a typed error instead of
 *   silently coercing; there is no implicit conversion anywhere in the core.
 */

package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in a single ISO-4217 currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money value, normalizing the currency code to upper case.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return NewMoney(decimal.Zero, currency)
}

// Add returns m + other. Mixed currencies fail with CurrencyMismatchError.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, &CurrencyMismatchError{Left: m.Currency, Right: other.Currency}
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. Mixed currencies fail with CurrencyMismatchError.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, &CurrencyMismatchError{Left: m.Currency, Right: other.Currency}
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Cmp compares two amounts of the same currency: -1 if m < other, 0 if equal,
// +1 if m > other. Mixed currencies fail with CurrencyMismatchError.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, &CurrencyMismatchError{Left: m.Currency, Right: other.Currency}
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.String(), m.Currency)
}

// FXQuote expresses how many units of Currency one unit of the snapshot's base
// currency buys, plus the provider's conversion fee for that pair.
type FXQuote struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
	Fee      decimal.Decimal `json:"fee"`
}

// NewFXQuote validates and builds a quote. Rates must be strictly positive and
// fees non-negative.
func NewFXQuote(currency string, rate, fee decimal.Decimal) (FXQuote, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return FXQuote{}, fmt.Errorf("fx quote requires a currency code")
	}
	if !rate.IsPositive() {
		return FXQuote{}, &NegativeRateError{Currency: code, Rate: rate}
	}
	if fee.IsNegative() {
		return FXQuote{}, &NegativeRateError{Currency: code, Rate: fee}
	}
	return FXQuote{Currency: code, Rate: rate, Fee: fee}, nil
}

// Convert converts an amount of the snapshot's base currency into the quote
// currency at this quote's rate. The fee is not applied here; it is surfaced
// separately on the payee line.
func (q FXQuote) Convert(base Money) Money {
	return Money{Amount: base.Amount.Mul(q.Rate), Currency: q.Currency}
}

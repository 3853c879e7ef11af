package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func TestMoneyAddSameCurrency(t *testing.T) {
	a := NewMoney(dec(t, "100.10"), "usd")
	b := NewMoney(dec(t, "0.20"), "USD")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.Amount.String() != "100.3" {
		t.Fatalf("expected 100.3, got %s", sum.Amount)
	}
	if sum.Currency != "USD" {
		t.Fatalf("currency must normalize to USD, got %q", sum.Currency)
	}
	// The receiver is untouched.
	if a.Amount.String() != "100.1" {
		t.Fatalf("receiver mutated: %s", a.Amount)
	}
}

func TestMoneyMixedCurrencyFailsClosed(t *testing.T) {
	a := NewMoney(dec(t, "100"), "USD")
	b := NewMoney(dec(t, "100"), "EUR")

	if _, err := a.Add(b); err == nil {
		t.Fatal("expected mixed-currency add to fail")
	}
	_, err := a.Sub(b)
	var mismatch *CurrencyMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected CurrencyMismatchError, got %v", err)
	}
	if mismatch.Left != "USD" || mismatch.Right != "EUR" {
		t.Fatalf("unexpected error detail: %+v", mismatch)
	}
	if _, err := a.Cmp(b); err == nil {
		t.Fatal("expected mixed-currency cmp to fail")
	}
}

func TestMoneyNoBinaryRoundingDrift(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3.
	sum, err := NewMoney(dec(t, "0.1"), "USD").Add(NewMoney(dec(t, "0.2"), "USD"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !sum.Amount.Equal(dec(t, "0.3")) {
		t.Fatalf("expected exactly 0.3, got %s", sum.Amount)
	}
}

func TestNewFXQuoteRejectsNonPositiveRate(t *testing.T) {
	for _, rate := range []string{"0", "-1.5"} {
		_, err := NewFXQuote("EUR", dec(t, rate), decimal.Zero)
		var bad *NegativeRateError
		if !errors.As(err, &bad) {
			t.Fatalf("rate %s: expected NegativeRateError, got %v", rate, err)
		}
	}
}

func TestNewFXQuoteRejectsNegativeFee(t *testing.T) {
	if _, err := NewFXQuote("EUR", dec(t, "0.91"), dec(t, "-0.01")); err == nil {
		t.Fatal("expected negative fee to be rejected")
	}
}

func TestFXQuoteConvert(t *testing.T) {
	quote, err := NewFXQuote("EUR", dec(t, "0.91"), dec(t, "1.50"))
	if err != nil {
		t.Fatalf("NewFXQuote: %v", err)
	}
	converted := quote.Convert(NewMoney(dec(t, "1000"), "USD"))
	if converted.Currency != "EUR" {
		t.Fatalf("expected EUR, got %q", converted.Currency)
	}
	if !converted.Amount.Equal(dec(t, "910")) {
		t.Fatalf("expected 910, got %s", converted.Amount)
	}
}

func TestNetPaySumsGrossAndAdjustments(t *testing.T) {
	payee := PayrollPayee{
		WorkerID: "w-1",
		Currency: "EUR",
		Gross:    NewMoney(dec(t, "3000"), "EUR"),
		Adjustments: []Adjustment{
			{Amount: NewMoney(dec(t, "250"), "EUR"), Label: "bonus"},
			{Amount: NewMoney(dec(t, "-100.50"), "EUR"), Label: "advance repayment"},
		},
	}
	net, err := payee.NetPay()
	if err != nil {
		t.Fatalf("NetPay: %v", err)
	}
	if !net.Amount.Equal(dec(t, "3149.50")) {
		t.Fatalf("expected 3149.50, got %s", net.Amount)
	}
}

func TestNetPayRejectsMixedCurrencyAdjustment(t *testing.T) {
	payee := PayrollPayee{
		WorkerID: "w-1",
		Currency: "EUR",
		Gross:    NewMoney(dec(t, "3000"), "EUR"),
		Adjustments: []Adjustment{
			{Amount: NewMoney(dec(t, "50"), "USD"), Label: "stray"},
		},
	}
	if _, err := payee.NetPay(); err == nil {
		t.Fatal("expected mixed-currency adjustment to fail net derivation")
	}
}

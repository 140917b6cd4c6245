package money

import (
	"strings"

	"getmyguide/internal/domain/shared/errs"
)

var (
	ErrInvalidCurrency  = errs.Sentinel(errs.KindValidation, "money: invalid currency code")
	ErrCurrencyMismatch = errs.Sentinel(errs.KindValidation, "money: currency mismatch")
	ErrInvalidPercent   = errs.Sentinel(errs.KindValidation, "money: percent must be between 0 and 100")
)

// Money keeps amounts in integer minor units (paise, cents) to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Percent returns p percent of the amount, rounded half-up to the minor unit.
func (m Money) Percent(p int64) (Money, error) {
	if p < 0 || p > 100 {
		return Money{}, ErrInvalidPercent
	}
	scaled := m.Amount * p
	q, r := scaled/100, scaled%100
	switch {
	case r >= 50:
		q++
	case r <= -50:
		q--
	}
	return Money{Amount: q, Currency: m.Currency}, nil
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	AZN Currency = "AZN"
	USD Currency = "USD"
)

// minorUnitExp is the exponent of one minor unit: amounts carry two decimals.
const minorUnitExp = -2

var (
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrSubMinorAmount    = errors.New("amount has more than two decimal places")
	ErrAmountOverflow    = errors.New("amount is too large")

	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Money holds an amount in minor units (cents).
// Example: 250.00 AZN is stored as 25000.
type Money struct {
	Amount   int64
	Currency Currency
}

func NewMoney(amount int64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// Add adds two Money instances safely
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot add %s to %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Subtract never produces a negative amount.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	if m.Amount < other.Amount {
		return Money{}, ErrInsufficientBalance
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

func (m Money) String() string {
	return FormatAmount(m.Amount) + " " + string(m.Currency)
}

// ToMinorUnits converts a positive decimal amount into cents.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	if !d.Equal(d.Truncate(-minorUnitExp)) {
		return 0, ErrSubMinorAmount
	}
	cents := d.Shift(-minorUnitExp)
	if cents.GreaterThan(decimal.NewFromInt(maxMinorUnits)) {
		return 0, ErrAmountOverflow
	}
	return cents.IntPart(), nil
}

// maxMinorUnits keeps any single credit far away from int64 overflow.
const maxMinorUnits = 1 << 53

// ParseAmount parses a decimal string such as "250" or "250.00" into cents.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return ToMinorUnits(d)
}

// FormatAmount renders cents with exactly two decimals, e.g. 25000 -> "250.00".
func FormatAmount(cents int64) string {
	return decimal.New(cents, minorUnitExp).StringFixed(-minorUnitExp)
}

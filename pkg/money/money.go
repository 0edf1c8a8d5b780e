// Package money provides the value object for monetary amounts in the ledger.
//
// Invariants:
//   - Amount is always stored in the smallest currency unit (e.g., cents for USD).
//   - Currency code must be valid ISO 4217 (3 uppercase letters).
//   - All arithmetic operations require matching currencies.
//
// The ledger never represents money as a float; floats appear only at the
// presentation boundary via AmountFloat.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
)

var (
	// ErrInvalidCurrency is returned when a currency code is malformed.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrMismatchedCurrencies is returned when performing operations on money
	// with different currencies.
	ErrMismatchedCurrencies = errors.New("mismatched currencies")

	// ErrAmountExceedsMaxSafeInt is returned when an amount overflows int64.
	ErrAmountExceedsMaxSafeInt = errors.New("amount exceeds maximum safe integer value")

	// ErrNegativeAmount is returned when an operation would result in a negative amount.
	ErrNegativeAmount = errors.New("resulting amount cannot be negative")
)

// Amount represents a monetary amount as an integer in the smallest currency
// unit (e.g., cents for USD).
type Amount = int64

// Money represents a monetary value in a specific currency.
type Money struct {
	amount   Amount
	currency Code
}

// New creates a Money value object from a main-unit amount (e.g., dollars).
// Invariants enforced:
//   - Currency code must be valid.
//   - Amount must not carry more decimal places than the currency allows.
//   - Amount is converted to the smallest currency unit.
func New(amount float64, currency Code) (Money, error) {
	if currency == "" {
		currency = DefaultCode
	}
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}
	smallest, err := convertToSmallestUnit(amount, currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: smallest, currency: currency}, nil
}

// NewFromSmallestUnit creates a Money object from the smallest currency unit.
func NewFromSmallestUnit(amount int64, currency Code) (Money, error) {
	if currency == "" {
		currency = DefaultCode
	}
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// Must creates a Money object and panics on invalid input. For tests and
// package-level constants only.
func Must(amount float64, currency Code) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(fmt.Sprintf("money.Must(%v, %v): %v", amount, currency, err))
	}
	return m
}

// Zero creates a Money object with zero amount in the specified currency.
func Zero(currency Code) Money {
	if currency == "" {
		currency = DefaultCode
	}
	return Money{amount: 0, currency: currency}
}

// Amount returns the amount in the smallest currency unit.
func (m Money) Amount() Amount {
	return m.amount
}

// AmountFloat returns the amount as a float64 in the main currency unit.
// Presentation only; never feed this back into the ledger.
func (m Money) AmountFloat() float64 {
	amount := new(big.Rat).SetInt64(m.amount)
	divisor := new(big.Rat).SetFloat64(math.Pow10(m.currency.Decimals()))
	result := new(big.Rat).Quo(amount, divisor)
	f, _ := result.Float64()
	return f
}

// Currency returns the currency code of the Money object.
func (m Money) Currency() Code {
	return m.currency
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount > 0
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.amount < 0
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.amount == 0
}

// IsSameCurrency reports whether both Money objects share a currency.
func (m Money) IsSameCurrency(other Money) bool {
	return m.currency == other.currency
}

// Equals reports whether both amount and currency match.
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount == other.amount
}

// Add returns a new Money object with the sum of amounts.
// Invariants enforced:
//   - Currencies must match.
//   - The sum must not overflow int64.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s",
			ErrMismatchedCurrencies, m.currency, other.currency)
	}
	sum := m.amount + other.amount
	if (other.amount > 0 && sum < m.amount) || (other.amount < 0 && sum > m.amount) {
		return Money{}, ErrAmountExceedsMaxSafeInt
	}
	return Money{amount: sum, currency: m.currency}, nil
}

// Subtract returns a new Money object with the difference of amounts.
// The result may be negative; callers who must stay non-negative check first.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s",
			ErrMismatchedCurrencies, m.currency, other.currency)
	}
	diff := m.amount - other.amount
	if (other.amount < 0 && diff < m.amount) || (other.amount > 0 && diff > m.amount) {
		return Money{}, ErrAmountExceedsMaxSafeInt
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// GreaterThan reports whether m is strictly greater than other.
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("%w: %s and %s",
			ErrMismatchedCurrencies, m.currency, other.currency)
	}
	return m.amount > other.amount, nil
}

// GreaterThanOrEqual reports whether m covers other.
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("%w: %s and %s",
			ErrMismatchedCurrencies, m.currency, other.currency)
	}
	return m.amount >= other.amount, nil
}

// String renders the amount in main units with the currency code appended.
func (m Money) String() string {
	return fmt.Sprintf("%.*f %s", m.currency.Decimals(), m.AmountFloat(), m.currency)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"amount":   m.amount,
		"currency": m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	code := Code(aux.Currency)
	if !code.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, aux.Currency)
	}
	m.amount = aux.Amount
	m.currency = code
	return nil
}

// convertToSmallestUnit converts a main-unit amount to the smallest currency
// unit, rejecting NaN/Inf and values outside the safe integer range.
func convertToSmallestUnit(amount float64, currency Code) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("invalid amount: %v", amount)
	}
	factor := math.Pow10(currency.Decimals())
	scaled := amount * factor
	if scaled > float64(math.MaxInt64) || scaled < float64(math.MinInt64) {
		return 0, ErrAmountExceedsMaxSafeInt
	}
	rounded := math.Round(scaled)
	// Reject amounts with more precision than the currency carries.
	if math.Abs(scaled-rounded) > 1e-6 {
		return 0, fmt.Errorf("amount %v has more decimal places than %s allows", amount, currency)
	}
	return int64(rounded), nil
}

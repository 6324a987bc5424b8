// Package types provides common types used across Bazaar.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Arithmetic errors returned by checked Money operations.
var (
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrAmountOverflow   = errors.New("money: amount overflow")
	ErrAmountUnderflow  = errors.New("money: amount underflow")
)

// Money is a non-negative amount in the smallest unit of a currency or
// token. Arithmetic is integer-only and checked.
//
// Examples:
//   - GAS(150000000) = 1.50000000 GAS (8 decimals)
//   - USD(4900) = $49.00
//   - NEO(3) = 3 NEO (indivisible)
type Money struct {
	Amount   uint64 `json:"amount"`   // Smallest unit
	Currency string `json:"currency"` // Lowercase code: "gas", "neo", "usd"
}

// New creates a Money value in the given currency.
func New(amount uint64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// GAS creates a Money value in GAS base units (1e-8 GAS).
func GAS(units uint64) Money { return Money{Amount: units, Currency: "gas"} }

// NEO creates a Money value in NEO (indivisible).
func NEO(units uint64) Money { return Money{Amount: units, Currency: "neo"} }

// USD creates a Money value in US Dollars (cents).
func USD(cents uint64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents uint64) Money { return Money{Amount: cents, Currency: "eur"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Currency: strings.ToLower(currency)} }

// Add returns m + other. It fails on currency mismatch or overflow.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	sum, carry := bits.Add64(m.Amount, other.Amount, 0)
	if carry != 0 {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrAmountOverflow, m, other)
	}
	return Money{Amount: sum, Currency: m.Currency}, nil
}

// Sub returns m - other. It fails on currency mismatch or when other > m.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	diff, borrow := bits.Sub64(m.Amount, other.Amount, 0)
	if borrow != 0 {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrAmountUnderflow, m, other)
	}
	return Money{Amount: diff, Currency: m.Currency}, nil
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// Equal reports whether both values carry the same amount and currency.
// Payments must match a price exactly, so this is the comparison the
// marketplace uses.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// SameCurrency reports whether both values share a currency.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// FormatMajor returns the amount in major units without a symbol.
// For GAS(150000000) it returns "1.50000000"; for NEO(3) it returns "3".
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return strconv.FormatUint(m.Amount, 10)
	}

	divisor := uint64(1)
	for range decimals {
		divisor *= 10
	}

	return fmt.Sprintf("%d.%0*d", m.Amount/divisor, decimals, m.Amount%divisor)
}

// String returns a human-readable representation.
// Examples: "$49.00", "1.50000000 GAS", "3 NEO".
func (m Money) String() string {
	if sym, ok := currencySymbol(m.Currency); ok {
		return sym + m.FormatMajor()
	}
	return m.FormatMajor() + " " + strings.ToUpper(m.Currency)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   uint64 `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}

// currencySymbol returns a prefix symbol for fiat currencies.
func currencySymbol(currency string) (string, bool) {
	switch strings.ToLower(currency) {
	case "usd":
		return "$", true
	case "eur":
		return "€", true
	case "gbp":
		return "£", true
	default:
		return "", false
	}
}

// currencyDecimals returns the number of decimal places for a currency.
func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "neo", "jpy", "krw":
		return 0
	case "gas":
		return 8
	default:
		return 2
	}
}

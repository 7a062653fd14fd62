// Package core holds the domain model of the group's books: members,
// contributions, loans, penalties, the ledger entry type, and the money
// and rate primitives they share.
//
// Amounts are integer cents everywhere; rate arithmetic goes through
// shopspring/decimal so principal×(1+rate/100) never touches floats.
package core

import (
	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string ("1234.56") to Money, rounding
// half-up on the third decimal place. Zero and negative amounts are
// rejected: every single financial event in the books is positive.
func ParseAmount(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// ParseRate parses a non-negative percentage ("12.5" for 12.5%).
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return Rate{}, ErrInvalidRate
	}
	return Rate{d: d}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// MulShares scales the amount by a share count.
func (m Money) MulShares(shares int64) Money {
	return Money{Cents: m.Cents * shares}
}

// ApplyRate returns m × rate/100, rounded half-up to cents.
func (m Money) ApplyRate(r Rate) Money {
	cents := decimal.NewFromInt(m.Cents).Mul(r.d).Div(hundred).Round(0)
	return Money{Cents: cents.IntPart()}
}

// IsPositive reports whether the amount is strictly positive.
func (m Money) IsPositive() bool { return m.Cents > 0 }

// String formats the amount with two decimals for display.
func (m Money) String() string {
	return decimal.NewFromInt(m.Cents).Div(hundred).StringFixed(2)
}

// Rate is a percentage carried as an exact decimal.
type Rate struct {
	d decimal.Decimal
}

// NewRate builds a Rate from a float for literals in code and tests;
// parsing user input should go through ParseRate.
func NewRate(pct float64) Rate {
	return Rate{d: decimal.NewFromFloat(pct)}
}

func (r Rate) Validate() error {
	if r.d.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

func (r Rate) IsZero() bool { return r.d.IsZero() }

func (r Rate) String() string { return r.d.String() }

// Decimal exposes the underlying value for storage round-trips.
func (r Rate) Decimal() decimal.Decimal { return r.d }

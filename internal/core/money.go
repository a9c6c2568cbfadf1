// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. On the wire they are plain JSON numbers
// with up to two decimals, which is how the stored snapshots encode them.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ErrAmountOutOfRange is returned for amounts whose cents do not fit in an int64.
var ErrAmountOutOfRange = fmt.Errorf("%w: out of range", ErrInvalidAmount)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

type Money struct {
	Cents int64
}

// FromDecimal converts a decimal amount to cents, rounding half away from zero.
func FromDecimal(d decimal.Decimal) (Money, error) {
	c := d.Mul(hundred).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return Money{}, ErrAmountOutOfRange
	}
	return Money{Cents: c.IntPart()}, nil
}

// FromFloat converts a float amount (as produced by JSON decoders) to cents.
func FromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(decimal.NewFromFloat(f))
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns the value as a float64 for display purposes and ratios.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

// String renders the shortest decimal form: 1250 cents -> "12.5".
func (m Money) String() string {
	return m.Decimal().String()
}

// Signed renders the amount with an explicit sign for positive values.
func (m Money) Signed() string {
	if m.Cents > 0 {
		return "+" + m.String()
	}
	return m.String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON never fails: anything that is not a number or a numeric
// string decodes to zero, and so does an amount too large to hold in cents.
// Quoted amounts may use a decimal comma ("12,34").
func (m *Money) UnmarshalJSON(b []byte) error {
	m.Cents = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	quoted := b[0] == '"'
	if quoted {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if s == "" || s == "null" || s == "true" || s == "false" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		if quoted && strings.Contains(s, ",") {
			if v, err := ParseAmount(s); err == nil {
				*m = v
			}
		}
		return nil
	}
	if v, err := FromDecimal(d); err == nil {
		*m = v
	}
	return nil
}

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrAmountOutOfRange
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	if fracCents > math.MaxInt64-iv*100 {
		return 0, ErrAmountOutOfRange
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseAmount is the lenient form-field parser: blank means zero, and
// zero is a valid amount (an unpaid advance, for instance).
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return Money{}, nil
	}
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		if d, derr := decimal.NewFromString(strings.ReplaceAll(s, ",", ".")); derr == nil && d.IsZero() {
			return Money{}, nil
		}
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

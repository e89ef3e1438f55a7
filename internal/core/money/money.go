// Package money implements the fixed-precision decimal amount type used
// everywhere carts, orders, and delivery fees are priced. It never compares
// or stores amounts as float64 — every value is backed by
// github.com/shopspring/decimal, rounded half-away-from-zero to two
// decimals at the boundaries that matter (display, persistence, totals).
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit decimal places money.Money rounds to.
const Scale = 2

// Money is an immutable fixed-precision monetary amount. The zero value is
// zero (0.00), ready to use.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{}

// New builds a Money from a decimal string (e.g. "12.50"). Malformed input
// returns an error rather than silently truncating — money never guesses.
func New(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return Money{d: d.Round(Scale)}, nil
}

// MustNew is New but panics on error; reserved for constants in tests and
// fixtures where the literal is known-good.
func MustNew(s string) Money {
	m, err := New(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMinor builds a Money from an integer count of minor units (cents).
func FromMinor(minor int64) Money {
	return Money{d: decimal.New(minor, -int32(Scale))}
}

// FromFloat builds a Money from a float64. Reserved for translating values
// that arrive as float64 from external JSON (e.g. the remote menu catalog);
// internal arithmetic never uses this path.
func FromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f).Round(Scale)}
}

// Minor returns the amount as an integer count of minor units (cents),
// rounded half-away-from-zero.
func (m Money) Minor() int64 {
	return m.d.Shift(int32(Scale)).Round(0).IntPart()
}

// Float64 is an escape hatch for presentation code that genuinely needs a
// float (e.g. building a JSON payload a third-party API requires as a
// number). It must never be used for comparisons.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d).Round(Scale)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d).Round(Scale)}
}

// MulInt returns m * n, rounded half-away-from-zero to Scale. Used for
// quantity × unit price.
func (m Money) MulInt(n int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(n))).Round(Scale)}
}

// MulFactor returns m * factor (e.g. a size multiplier or tax rate),
// rounded half-away-from-zero to Scale.
func (m Money) MulFactor(factor string) (Money, error) {
	f, err := decimal.NewFromString(factor)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid factor %q: %w", factor, err)
	}
	return Money{d: m.d.Mul(f).Round(Scale)}, nil
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool { return m.d.Sign() < 0 }

// IsZero reports whether m == 0.
func (m Money) IsZero() bool { return m.d.Sign() == 0 }

// Cmp returns -1, 0, or 1 comparing m to other, matching decimal.Cmp's
// contract. Never use Float64 for this.
func (m Money) Cmp(other Money) int { return m.d.Cmp(other.d) }

// LessThan reports m < other.
func (m Money) LessThan(other Money) bool { return m.Cmp(other) < 0 }

// GreaterThanOrEqual reports m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool { return m.Cmp(other) >= 0 }

// String renders the amount with exactly Scale decimal places, e.g. "9.00".
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

// Sum adds a slice of Money; returns Zero for an empty slice.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON encodes the amount as a JSON string ("12.50"), never a bare
// JSON number, so downstream parsers can't silently round-trip it through
// float64.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON string ("12.50") or a JSON number
// (12.5) for interoperability with the remote backend's two envelope
// shapes, but always normalizes through decimal, never float64 comparison.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := New(s)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("money: cannot unmarshal %s", data)
	}
	*m = FromFloat(f)
	return nil
}

// Value implements driver.Valuer for compatibility with SQL-backed stores.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Zero
		return nil
	case string:
		parsed, err := New(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		parsed, err := New(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case float64:
		*m = FromFloat(v)
		return nil
	default:
		return fmt.Errorf("money: unsupported scan type %T", value)
	}
}

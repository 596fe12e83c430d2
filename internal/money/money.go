// Package money provides a fixed-point currency amount.
//
// Amounts are stored as int64 minor units (cents) and only converted to
// decimal text at the edges: JSON, display formatting and user input.
// Arithmetic on Amount is exact, so the ledger never accumulates binary
// floating point error.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by an Amount.
const Scale = 2

var (
	// ErrInvalidAmount is returned when a textual amount cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrOverflow is returned when a sum does not fit in an Amount.
	ErrOverflow = errors.New("amount overflow")
)

// Amount is a signed currency value in minor units.
type Amount int64

// MaxAmount is the largest magnitude accepted from user input,
// 100 billion in major units.
const MaxAmount Amount = 100_000_000_000_00

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.NewFromInt(int64(MaxAmount))
)

// FromCents returns the Amount for a number of minor units.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// FromDecimal converts a computed decimal value to an Amount, rounding half
// away from zero to the nearest cent. d must lie within ±MaxAmount; input
// from users goes through Parse or UnmarshalJSON instead.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Mul(hundred).Round(0).IntPart())
}

// fromInput converts a user supplied decimal. It refuses more than Scale
// fractional digits and anything beyond MaxAmount.
func fromInput(d decimal.Decimal) (Amount, error) {
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d, Scale)
	}
	if cents.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d)
	}
	return Amount(cents.IntPart()), nil
}

// Parse reads a decimal string such as "12.34", "12,34" or "-3".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return fromInput(d)
}

// MustParse is like Parse but panics on malformed input. Intended for
// constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Cents returns the raw number of minor units.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Decimal returns the amount as a decimal in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Neg returns the amount with its sign flipped.
func (a Amount) Neg() Amount {
	return -a
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a == 0
}

// String renders the amount with exactly two fractional digits, e.g. "-3.50".
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// Format renders the amount for display, e.g. "$3.50" or "-$3.50".
func (a Amount) Format() string {
	if a < 0 {
		return "-$" + a.Abs().String()
	}
	return "$" + a.String()
}

// Sum adds the given amounts. It does not check for overflow; use
// CheckedSum when the amounts are not known to be bounded.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// CheckedSum adds the given amounts, failing with ErrOverflow instead of
// wrapping around.
func CheckedSum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		if (a > 0 && total > math.MaxInt64-a) || (a < 0 && total < math.MinInt64-a) {
			return 0, ErrOverflow
		}
		total += a
	}
	return total, nil
}

// MarshalJSON encodes the amount as a decimal string so clients never see
// a binary float.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both a JSON number and a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	v, err := fromInput(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value stores the amount as an integer number of cents.
func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

// Scan reads an integer number of cents.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*a = Amount(v)
	case int32:
		*a = Amount(v)
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("scan amount: %w", err)
		}
		*a = Amount(d.IntPart())
	case nil:
		*a = 0
	default:
		return fmt.Errorf("scan amount: unsupported type %T", src)
	}
	return nil
}

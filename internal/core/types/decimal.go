// Package types provides value types shared by the domain packages.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits kept for stored amounts.
const MoneyScale = 2

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// ErrFractionalUnits is returned when a unit count carries a fractional part.
var ErrFractionalUnits = errors.New("fractional quantities are not supported")

// ErrUnitsOutOfRange is returned when a unit count exceeds MaxUnits in magnitude.
var ErrUnitsOutOfRange = errors.New("quantity out of range")

// Units is a whole number of stock units. Positive is inbound, negative is outbound.
type Units int64

// MaxUnits is the largest accepted magnitude for one quantity.
const MaxUnits Units = 1 << 53

// InRange reports whether |u| <= MaxUnits.
func (u Units) InRange() bool {
	return u >= -MaxUnits && u <= MaxUnits
}

// Abs returns the magnitude.
func (u Units) Abs() Units {
	if u < 0 {
		return -u
	}
	return u
}

// Int64 returns the raw value.
func (u Units) Int64() int64 { return int64(u) }

// UnmarshalJSON accepts a JSON number or numeric string. Values with a non-zero
// fractional part ("1.5") fail with ErrFractionalUnits instead of being truncated.
func (u *Units) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}

	parsed, err := parseUnits(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func parseUnits(s string) (Units, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if !Units(v).InRange() {
			return 0, fmt.Errorf("quantity %q: %w", s, ErrUnitsOutOfRange)
		}
		return Units(v), nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, ErrFractionalUnits
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(int64(MaxUnits))) {
		return 0, fmt.Errorf("quantity %q: %w", s, ErrUnitsOutOfRange)
	}
	return Units(d.IntPart()), nil
}

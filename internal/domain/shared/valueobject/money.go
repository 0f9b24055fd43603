package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of minor-unit digits kept after RoundToCurrency.
const CurrencyScale int32 = 2

// DefaultCurrencyCode is the display currency of the ledger.
// The engine is single-currency; the code is only carried for rendering.
const DefaultCurrencyCode = "SAR"

// Money is a value object representing a monetary amount in the ledger currency.
// It is immutable - all operations return new Money instances.
// Comparisons are exact; there is no epsilon tolerance anywhere.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromString creates Money from a string representation such as "1250.50"
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d}, nil
}

// MustMoney is NewMoneyFromString for literals known to be valid. It panics otherwise.
func MustMoney(amount string) Money {
	m, err := NewMoneyFromString(amount)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMoneyFromInt64 creates Money from a whole amount
func NewMoneyFromInt64(amount int64) Money {
	return Money{amount: decimal.NewFromInt(amount)}
}

// NewMoneyFromMinorUnits creates Money from an amount expressed in minor units (halalas, cents)
func NewMoneyFromMinorUnits(minor int64) Money {
	return Money{amount: decimal.New(minor, -CurrencyScale)}
}

// Zero returns a zero amount
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Sum adds all amounts exactly
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, m := range amounts {
		total = total.Add(m.amount)
	}
	return Money{amount: total}
}

// Max returns the larger of two amounts
func Max(a, b Money) Money {
	if a.amount.GreaterThanOrEqual(b.amount) {
		return a
	}
	return b
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is strictly positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// HasCurrencyScale reports whether m carries no digits below the minor unit.
// 10.50 and 10.500 qualify; 10.005 does not.
func (m Money) HasCurrencyScale() bool {
	return m.amount.Equal(m.amount.Truncate(CurrencyScale))
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns the exact sum
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns the exact difference
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg()}
}

// MultiplyByInt returns m*factor. Exact, no rounding needed.
func (m Money) MultiplyByInt(factor int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor))}
}

// RoundToCurrency rounds half away from zero to CurrencyScale minor digits.
// Apply it once, at the end of any computation that may produce fractional minor units.
func (m Money) RoundToCurrency() Money {
	return Money{amount: m.amount.Round(CurrencyScale)}
}

// Percentage returns pct percent of m. The division happens last and is rounded immediately.
func (m Money) Percentage(pct decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(pct).Div(decimal.NewFromInt(100))}.RoundToCurrency()
}

// Ratio returns m/of as a percentage rounded to two places. Zero when of is zero.
func (m Money) Ratio(of Money) decimal.Decimal {
	if of.IsZero() {
		return decimal.Zero
	}
	return m.amount.Mul(decimal.NewFromInt(100)).Div(of.amount).Round(2)
}

// Cmp compares m and other: -1 if m < other, 0 if equal, +1 if m > other
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// Equals reports exact equality. 10.5 equals 10.50.
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// LessThan returns true if this Money is less than the other
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// GreaterThanOrEqual returns true if this Money is greater than or equal to the other
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.amount.GreaterThanOrEqual(other.amount)
}

// String returns the amount with two fixed decimal places
func (m Money) String() string {
	return m.amount.StringFixed(CurrencyScale)
}

// Format renders the amount with a currency code suffix, e.g. "1250.00 SAR"
func (m Money) Format(currencyCode string) string {
	if currencyCode == "" {
		currencyCode = DefaultCurrencyCode
	}
	return fmt.Sprintf("%s %s", m.String(), currencyCode)
}

// MarshalJSON encodes the amount as a JSON string to avoid float conversion by clients
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.amount.StringFixed(CurrencyScale))
}

// UnmarshalJSON accepts both "12.50" and 12.50
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.amount = decimal.Zero
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = amount
	return nil
}

// Value implements driver.Valuer for database storage
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner.
// SQLite returns NUMERIC columns as int64 or float64, Postgres as text.
func (m *Money) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		m.amount = decimal.Zero
		return nil
	case string:
		return m.scanString(v)
	case []byte:
		return m.scanString(string(v))
	case int64:
		m.amount = decimal.NewFromInt(v)
		return nil
	case float64:
		// shortest round-trip representation, exact for values stored at currency scale
		return m.scanString(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
}

func (m *Money) scanString(s string) error {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	m.amount = amount
	return nil
}

// Allocate splits m into n parts of equal size at currency scale.
// The leftover minor units go to the first parts so the parts always sum to m rounded.
func (m Money) Allocate(n int) ([]Money, error) {
	if n <= 0 {
		return nil, errors.New("allocation count must be positive")
	}
	unit := decimal.New(1, -CurrencyScale)
	total := m.amount.Round(CurrencyScale)
	minor := total.Div(unit).IntPart()
	base := minor / int64(n)
	remainder := minor % int64(n)

	parts := make([]Money, n)
	for i := range parts {
		share := base
		if int64(i) < remainder {
			share++
		} else if remainder < 0 && int64(i) < -remainder {
			share--
		}
		parts[i] = NewMoneyFromMinorUnits(share)
	}
	return parts, nil
}

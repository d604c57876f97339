// Package money holds campaign spend totals as currency amounts in minor units
// and the decimal rounding used for percentage shares.
package money

import (
	"encoding/json"
	"fmt"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Supported report currencies (ISO-4217).
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	JPY = "JPY"
)

// Money is a spend amount in the minor unit of its currency.
type Money struct {
	m *gomoney.Money
}

// FromMinor creates Money from minor units, cents for USD.
func FromMinor(minor int64, currencyCode string) *Money {
	return &Money{m: gomoney.New(minor, resolve(currencyCode))}
}

// FromSpend converts a raw spend value to Money, rounding half away from zero
// to the currency's minor unit. Unknown currencies fall back to USD.
func FromSpend(amount float64, currencyCode string) *Money {
	code := resolve(currencyCode)
	fraction := gomoney.GetCurrency(code).Fraction
	minor := decimal.NewFromFloat(amount).Shift(int32(fraction)).Round(0).IntPart()
	return FromMinor(minor, code)
}

// Zero returns an empty amount in the given currency.
func Zero(currencyCode string) *Money {
	return FromMinor(0, currencyCode)
}

// Sum adds amounts in currencyCode. Nil values are skipped and a value in
// another currency is an error.
func Sum(currencyCode string, values ...*Money) (*Money, error) {
	total := Zero(currencyCode).m
	for _, v := range values {
		if v == nil || v.m == nil {
			continue
		}
		next, err := total.Add(v.m)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to %s total: %w", v.Currency(), total.Currency().Code, err)
		}
		total = next
	}
	return &Money{m: total}, nil
}

func resolve(code string) string {
	if gomoney.GetCurrency(code) == nil {
		return USD
	}
	return code
}

// Minor returns the amount in minor units.
func (m *Money) Minor() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 code, empty for a nil amount.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// Display formats the amount with its currency symbol, e.g. "$1,234.56".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.m.Display()
}

// Decimal returns the amount in major units.
func (m *Money) Decimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(m.m.Currency().Fraction))
}

// Float64 is for spreadsheet cells and other numeric sinks only.
func (m *Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(struct {
		Minor    int64  `json:"minor"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Minor:    m.Minor(),
		Amount:   m.Decimal().StringFixed(int32(m.m.Currency().Fraction)),
		Currency: m.Currency(),
		Display:  m.Display(),
	})
}

package storefront

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is a Shopify money value. Shopify serializes amounts as decimal
// strings; they are parsed into decimal.Decimal on arrival and stay decimal
// for the lifetime of the value.
type Money struct {
	Amount       decimal.Decimal
	CurrencyCode string
}

// NewMoney parses a Shopify amount string into a Money value.
func NewMoney(amount, currencyCode string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: amount %q", ErrInvalidResponse, amount)
	}
	return Money{Amount: d, CurrencyCode: currencyCode}, nil
}

// IsZero reports whether the amount is zero or the value is unset.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Add returns the sum of two money values with the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.CurrencyCode != other.CurrencyCode {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.CurrencyCode, other.CurrencyCode)
	}
	return Money{Amount: m.Amount.Add(other.Amount), CurrencyCode: m.CurrencyCode}, nil
}

// String returns the plain "amount code" form, e.g. "19.99 EUR".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.String(), m.CurrencyCode)
}

// Format renders the value for the given locale, e.g. "€ 19,99" for de.
// Falls back to String when the currency code is unknown. The float
// conversion is display-only; the decimal amount is never mutated.
func (m Money) Format(tag language.Tag) string {
	unit, err := currency.ParseISO(m.CurrencyCode)
	if err != nil {
		return m.String()
	}
	f, _ := m.Amount.Float64()
	p := message.NewPrinter(tag)
	return p.Sprintf("%v", currency.Symbol(unit.Amount(f)))
}

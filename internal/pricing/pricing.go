// Package pricing holds the pure numeric functions of the report flow:
// UF subtotals per line item and UF-to-CLP conversion against the daily
// published rate. No I/O happens here.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrInvalidRate is returned when a CLP conversion is attempted with a
// missing or non-positive exchange rate.
var ErrInvalidRate = errors.New("invalid exchange rate")

var clpPrinter = message.NewPrinter(language.MustParse("es-CL"))

// Subtotal returns quantity x unitPrice in UF. Negative quantities clamp
// to zero instead of propagating a negative subtotal.
func Subtotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	if quantity.IsNegative() {
		quantity = decimal.Zero
	}
	return quantity.Mul(unitPrice)
}

// ConvertUFToCLP converts a UF amount into Chilean pesos at the given rate.
// Callers must not invoke this with an unavailable rate; a non-positive rate
// fails with ErrInvalidRate.
func ConvertUFToCLP(uf decimal.Decimal, rate float64) (decimal.Decimal, error) {
	if rate <= 0 {
		return decimal.Zero, ErrInvalidRate
	}
	return uf.Mul(decimal.NewFromFloat(rate)), nil
}

// FormatCLP renders a peso amount for display: es-CL thousands separation,
// no decimal places.
func FormatCLP(amount decimal.Decimal) string {
	rounded, _ := amount.Round(0).Float64()
	return clpPrinter.Sprint(number.Decimal(rounded, number.MaxFractionDigits(0)))
}

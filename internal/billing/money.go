// Package billing implements the enrollment billing engine: balance
// derivation over the transaction ledger, installment scheduling, payment
// method eligibility and the charge state machine. Everything in this package
// is pure and synchronous; callers supply the clock and perform all I/O.
package billing

import "github.com/shopspring/decimal"

// FixedString renders a monetary value with two fraction digits for display.
// All arithmetic stays in decimal form; this is strictly an output-boundary
// conversion.
func FixedString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// Meta is the derived billing state of an enrollment. It is recomputed from
// scratch on every load and after every fold; no incremental state is trusted
// across reloads.
type Meta struct {
	DiscountedCost decimal.Decimal `json:"discounted_cost"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Balance        decimal.Decimal `json:"balance"`
	// SuggestedCharge is min(installment, balance), floored at zero, so the
	// final installment of a plan never overcharges.
	SuggestedCharge decimal.Decimal `json:"suggested_charge"`
	NextInstallment *time.Time      `json:"next_installment,omitempty"`
}

// ComputeMeta derives the outstanding balance and next installment date for
// an enrollment.
//
// amountPaid sums Amount over every non-extra-charge transaction regardless
// of type: the ledger does not re-sign refunds, chargebacks or voids, it
// expects reversals to arrive with negative amounts from upstream. Balance is
// not floored at zero; overpayment stays representable as a negative balance.
func ComputeMeta(e models.Enrollment, now time.Time) Meta {
	discounted := e.Cost.Sub(e.Discount)

	paid := decimal.Zero
	for _, tx := range e.Transactions {
		if tx.ExtraCharge {
			continue
		}
		paid = paid.Add(tx.Amount)
	}

	balance := discounted.Sub(paid)

	suggested := decimal.Min(e.Installment, balance)
	if suggested.IsNegative() {
		suggested = decimal.Zero
	}

	return Meta{
		DiscountedCost:  discounted,
		AmountPaid:      paid,
		Balance:         balance,
		SuggestedCharge: suggested,
		NextInstallment: NextInstallmentDate(e, balance, now),
	}
}

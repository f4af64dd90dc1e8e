package dto

import (
	"time"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
)

// BillingMeta is the derived billing state with money rendered as fixed
// two-decimal strings. Decimal arithmetic never leaves the engine; this is
// the presentation boundary.
type BillingMeta struct {
	DiscountedCost  string     `json:"discounted_cost"`
	AmountPaid      string     `json:"amount_paid"`
	Balance         string     `json:"balance"`
	SuggestedCharge string     `json:"suggested_charge"`
	NextInstallment *time.Time `json:"next_installment,omitempty"`
}

// NewBillingMeta converts engine meta into its response form.
func NewBillingMeta(meta billing.Meta) BillingMeta {
	return BillingMeta{
		DiscountedCost:  billing.FixedString(meta.DiscountedCost),
		AmountPaid:      billing.FixedString(meta.AmountPaid),
		Balance:         billing.FixedString(meta.Balance),
		SuggestedCharge: billing.FixedString(meta.SuggestedCharge),
		NextInstallment: meta.NextInstallment,
	}
}

// PaymentMethodInfo describes a stored method with its current eligibility.
type PaymentMethodInfo struct {
	ID          string `json:"id"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	Primary     bool   `json:"primary"`
	ExpiryMonth *int   `json:"expiry_month,omitempty"`
	ExpiryYear  *int   `json:"expiry_year,omitempty"`
	Eligible    bool   `json:"eligible"`
}

// BillingResponse is the billing view of one enrollment.
type BillingResponse struct {
	EnrollmentID     string                  `json:"enrollment_id"`
	PaymentPlan      models.PaymentPlan      `json:"payment_plan"`
	PaymentFrequency models.PaymentFrequency `json:"payment_frequency"`
	Installment      string                  `json:"installment"`
	Meta             BillingMeta             `json:"meta"`
	SelectedMethodID string                  `json:"selected_method_id,omitempty"`
	PaymentMethods   []PaymentMethodInfo     `json:"payment_methods"`
}

// ChargeRequest is the payload for dispatching a charge.
type ChargeRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
	// Amount is optional; when empty the engine's suggested charge
	// (min of installment and balance) is used.
	Amount string `json:"amount,omitempty" validate:"omitempty,numeric"`
}

// ChargeResponse reports the outcome of a charge attempt.
type ChargeResponse struct {
	EnrollmentID string               `json:"enrollment_id"`
	Status       billing.ChargeStatus `json:"status"`
	Message      string               `json:"message,omitempty"`
	Reauth       bool                 `json:"reauth,omitempty"`
	Transaction  *models.Transaction  `json:"transaction,omitempty"`
	Meta         *BillingMeta         `json:"meta,omitempty"`
}

package billing

import (
	"time"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// EligibleMethod reports whether a stored payment method may be charged at
// now. A method is ineligible when deleted or disabled, when its expiry is
// unknown, or when its expiry month has already passed. A card expiring in
// the current month is still chargeable, matching card-network grace
// semantics.
func EligibleMethod(pm models.PaymentMethod, now time.Time) bool {
	if pm.Deleted || pm.Disabled {
		return false
	}
	if pm.ExpiryYear == nil || pm.ExpiryMonth == nil {
		return false
	}
	year, month := now.Year(), int(now.Month())
	if *pm.ExpiryYear < year {
		return false
	}
	if *pm.ExpiryYear == year && *pm.ExpiryMonth < month {
		return false
	}
	return true
}

// SelectPrimary returns the method flagged primary, or nil when none is.
// The primary designation is trusted as-is: no eligibility re-check and no
// fallback to the first eligible method.
func SelectPrimary(methods []models.PaymentMethod) *models.PaymentMethod {
	for i := range methods {
		if methods[i].Primary {
			return &methods[i]
		}
	}
	return nil
}

package models

import "time"

// PaymentMethod is a stored tokenized payment instrument. The engine never
// mutates one; deletion and disabling happen in the external vault.
type PaymentMethod struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Brand        string    `db:"brand" json:"brand"`
	Last4        string    `db:"last4" json:"last4"`
	Primary      bool      `db:"is_primary" json:"primary"`
	ExpiryMonth  *int      `db:"expiry_month" json:"expiry_month,omitempty"`
	ExpiryYear   *int      `db:"expiry_year" json:"expiry_year,omitempty"`
	Deleted      bool      `db:"deleted" json:"deleted"`
	Disabled     bool      `db:"disabled" json:"disabled"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

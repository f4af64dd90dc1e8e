package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

// Possible transaction types.
const (
	TransactionTypeCharge     TransactionType = "CHARGE"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeChargeback TransactionType = "CHARGEBACK"
	TransactionTypeNSFFee     TransactionType = "NSF_FEE"
	TransactionTypeVoid       TransactionType = "VOID"
)

// Transaction is one immutable ledger entry against an enrollment. Entries
// are only ever appended; reversals arrive as new entries with negative
// amounts rather than edits to existing rows.
type Transaction struct {
	ID              string          `db:"id" json:"id"`
	EnrollmentID    string          `db:"enrollment_id" json:"enrollment_id"`
	PaymentMethodID *string         `db:"payment_method_id" json:"payment_method_id,omitempty"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	AttemptedAmount decimal.Decimal `db:"attempted_amount" json:"attempted_amount"`
	Type            TransactionType `db:"transaction_type" json:"transaction_type"`
	// ExtraCharge marks entries outside principal repayment (rush fees,
	// NSF fees); they never count toward the outstanding balance.
	ExtraCharge bool      `db:"extra_charge" json:"extra_charge"`
	Voided      bool      `db:"voided" json:"voided"`
	ParentID    *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

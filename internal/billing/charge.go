package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// ChargeStatus is the state of a charge attempt.
type ChargeStatus string

// Charge attempt states. Declined and error are valid launch points for a
// retry; success is terminal for the attempt but the enrollment stays
// chargeable through a fresh cycle.
const (
	ChargeIdle       ChargeStatus = "IDLE"
	ChargeProcessing ChargeStatus = "PROCESSING"
	ChargeSuccess    ChargeStatus = "SUCCESS"
	ChargeDeclined   ChargeStatus = "DECLINED"
	ChargeError      ChargeStatus = "ERROR"
)

// GenericChargeErrorMessage is used when a failed dispatch carries no
// human-readable detail.
const GenericChargeErrorMessage = "payment could not be processed"

// ChargeState is an immutable snapshot of one enrollment's charge cycle.
// Apply never mutates a state in place; it returns a new value, which keeps
// the balance invariant checkable by snapshot comparison.
type ChargeState struct {
	Status           ChargeStatus
	Enrollment       models.Enrollment
	Meta             Meta
	SelectedMethodID string
	Amount           decimal.Decimal
	Message          string
}

// ChargeEvent is an input to the charge reducer.
type ChargeEvent interface{ isChargeEvent() }

// ChargeRequested asks to dispatch a charge for the selected method.
type ChargeRequested struct {
	PaymentMethodID string
	Amount          decimal.Decimal
}

// ChargeSucceeded carries the gateway's captured transaction.
type ChargeSucceeded struct {
	Transaction models.Transaction
}

// ChargeRefused carries the decline record the gateway produced. A decline
// still writes a ledger entry; only the resulting status differs from
// success.
type ChargeRefused struct {
	Transaction models.Transaction
	Message     string
}

// ChargeFailed signals a transport or validation failure: no transaction was
// produced and the ledger is untouched.
type ChargeFailed struct {
	Message string
}

// MethodSelected asks to switch the selected payment method.
type MethodSelected struct {
	PaymentMethodID string
}

func (ChargeRequested) isChargeEvent() {}
func (ChargeSucceeded) isChargeEvent() {}
func (ChargeRefused) isChargeEvent()   {}
func (ChargeFailed) isChargeEvent()    {}
func (MethodSelected) isChargeEvent()  {}

// NewChargeState seeds the cycle for a freshly loaded enrollment: meta is
// computed from the ledger, the proposed amount is the suggested charge, and
// the primary-flagged method (if any) is selected.
func NewChargeState(e models.Enrollment, now time.Time) ChargeState {
	meta := ComputeMeta(e, now)
	state := ChargeState{
		Status:     ChargeIdle,
		Enrollment: e,
		Meta:       meta,
		Amount:     meta.SuggestedCharge,
	}
	if primary := SelectPrimary(e.PaymentMethods); primary != nil {
		state.SelectedMethodID = primary.ID
	}
	return state
}

// CanDispatch reports whether a charge request is accepted in the given
// status. Requests arriving while processing are dropped: the triggering UI
// event can fire repeatedly before a response returns, and at most one
// charge may be in flight per enrollment.
func CanDispatch(status ChargeStatus) bool {
	switch status {
	case ChargeIdle, ChargeDeclined, ChargeError:
		return true
	}
	return false
}

// Apply is the pure charge reducer. It enforces the entry guard itself
// rather than trusting callers, and folds gateway outcomes back into the
// ledger. now feeds the meta recomputation after a fold.
func Apply(state ChargeState, event ChargeEvent, now time.Time) ChargeState {
	switch ev := event.(type) {
	case ChargeRequested:
		if !CanDispatch(state.Status) {
			return state
		}
		next := state
		next.Status = ChargeProcessing
		next.Message = ""
		if ev.PaymentMethodID != "" {
			next.SelectedMethodID = ev.PaymentMethodID
		}
		if !ev.Amount.IsZero() {
			next.Amount = ev.Amount
		}
		return next

	case ChargeSucceeded:
		next := state
		next.Enrollment, next.Meta = Fold(state.Enrollment, ev.Transaction, now)
		next.Status = ChargeSuccess
		next.Message = ""
		return next

	case ChargeRefused:
		next := state
		next.Enrollment, next.Meta = Fold(state.Enrollment, ev.Transaction, now)
		next.Status = ChargeDeclined
		next.Message = ev.Message
		if next.Message == "" {
			next.Message = GenericChargeErrorMessage
		}
		return next

	case ChargeFailed:
		next := state
		next.Status = ChargeError
		next.Message = ev.Message
		if next.Message == "" {
			next.Message = GenericChargeErrorMessage
		}
		return next

	case MethodSelected:
		target := findMethod(state.Enrollment.PaymentMethods, ev.PaymentMethodID)
		if target == nil || !EligibleMethod(*target, now) {
			return state
		}
		next := state
		next.SelectedMethodID = target.ID
		return next
	}
	return state
}

// Fold appends a transaction to the enrollment's ledger and recomputes meta.
// The input enrollment is left untouched; the returned copy owns a fresh
// transaction slice. Folding a transaction that belongs to a different
// enrollment is a caller bug and panics rather than corrupting the ledger.
func Fold(e models.Enrollment, tx models.Transaction, now time.Time) (models.Enrollment, Meta) {
	if tx.EnrollmentID != "" && tx.EnrollmentID != e.ID {
		panic(fmt.Sprintf("billing: transaction %s belongs to enrollment %s, not %s", tx.ID, tx.EnrollmentID, e.ID))
	}
	next := e
	next.Transactions = make([]models.Transaction, 0, len(e.Transactions)+1)
	next.Transactions = append(next.Transactions, e.Transactions...)
	next.Transactions = append(next.Transactions, tx)
	return next, ComputeMeta(next, now)
}

func findMethod(methods []models.PaymentMethod, id string) *models.PaymentMethod {
	for i := range methods {
		if methods[i].ID == id {
			return &methods[i]
		}
	}
	return nil
}

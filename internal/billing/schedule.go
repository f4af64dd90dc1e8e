package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// All generated installment dates carry a fixed 09:45 time-of-day. The
// automatic-payment cron fires on the same anchor; changing it here breaks
// scheduling parity with already-persisted runs.
const (
	anchorHour   = 9
	anchorMinute = 45
)

// NextInstallmentDate computes the next automatic-payment date for an
// enrollment, or nil when no further installment is scheduled: full plans,
// settled (or overpaid) balances, and cadences whose anchor inputs are
// missing all yield nil rather than a guess.
//
// Calendar fields are read in now's location, so the 09:45 anchor is local to
// the caller's clock.
func NextInstallmentDate(e models.Enrollment, balance decimal.Decimal, now time.Time) *time.Time {
	if e.PaymentPlan == models.PaymentPlanFull {
		return nil
	}
	if balance.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	switch e.PaymentFrequency {
	case models.PaymentFrequencyMonthly:
		return nextMonthly(e, now)
	case models.PaymentFrequencyWeekly:
		return nextInterval(e, now, 7)
	case models.PaymentFrequencyBiWeekly:
		return nextInterval(e, now, 14)
	}
	return nil
}

// LastInstallmentDate returns the most recent installment anchor at or before
// now, or nil when none has occurred yet. The automatic-payment sweep uses it
// to decide whether the current cycle is still unpaid; the nil rules mirror
// NextInstallmentDate.
func LastInstallmentDate(e models.Enrollment, balance decimal.Decimal, now time.Time) *time.Time {
	if e.PaymentPlan == models.PaymentPlanFull {
		return nil
	}
	if balance.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	switch e.PaymentFrequency {
	case models.PaymentFrequencyMonthly:
		return lastMonthly(e, now)
	case models.PaymentFrequencyWeekly:
		return lastInterval(e, now, 7)
	case models.PaymentFrequencyBiWeekly:
		return lastInterval(e, now, 14)
	}
	return nil
}

func lastMonthly(e models.Enrollment, now time.Time) *time.Time {
	var day int
	switch {
	case e.PaymentDay != nil:
		day = *e.PaymentDay
	case e.PaymentStart != nil:
		day = e.PaymentStart.In(now.Location()).Day()
	default:
		return nil
	}

	year, month := now.Year(), now.Month()
	candidate := monthlyCandidate(year, month, day, now.Location())
	if candidate.After(now) {
		// time.Date normalises month 0 to December of the prior year.
		candidate = monthlyCandidate(year, month-1, day, now.Location())
	}
	if e.PaymentStart != nil && candidate.Before(e.PaymentStart.In(now.Location())) {
		return nil
	}
	return &candidate
}

func lastInterval(e models.Enrollment, now time.Time, days int) *time.Time {
	if e.PaymentStart == nil {
		return nil
	}
	start := e.PaymentStart.In(now.Location())

	candidate := time.Date(start.Year(), start.Month(), start.Day(), anchorHour, anchorMinute, 0, 0, now.Location())
	if candidate.Before(start) {
		candidate = candidate.AddDate(0, 0, days)
	}
	if candidate.After(now) {
		return nil
	}
	for {
		next := candidate.AddDate(0, 0, days)
		if next.After(now) {
			return &candidate
		}
		candidate = next
	}
}

// nextMonthly walks month by month, clamping the billing day against each
// month's actual length (31st in February becomes the 28th or 29th). The
// loop rather than closed-form arithmetic is deliberate: a near-month-end
// billing day produces variable-length skips as month lengths change, and
// the walk mirrors that exactly. It terminates because the candidate strictly
// advances every iteration.
func nextMonthly(e models.Enrollment, now time.Time) *time.Time {
	var day int
	switch {
	case e.PaymentDay != nil:
		day = *e.PaymentDay
	case e.PaymentStart != nil:
		day = e.PaymentStart.In(now.Location()).Day()
	default:
		return nil
	}

	var start *time.Time
	if e.PaymentStart != nil {
		s := e.PaymentStart.In(now.Location())
		start = &s
	}

	year, month := now.Year(), now.Month()
	candidate := monthlyCandidate(year, month, day, now.Location())
	for candidate.Before(now) || (start != nil && candidate.Before(*start)) {
		month++
		candidate = monthlyCandidate(year, month, day, now.Location())
	}
	return &candidate
}

// monthlyCandidate builds the anchored date for a given month, clamping day
// to the month's last day. time.Date normalises out-of-range months, so the
// caller can increment month past December.
func monthlyCandidate(year int, month time.Month, day int, loc *time.Location) time.Time {
	// Day 0 of the following month is the last day of this one.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, anchorHour, anchorMinute, 0, 0, loc)
}

// nextInterval handles the weekly and bi-weekly cadences: seed at the payment
// start's calendar date with the anchor time, then step in fixed-size day
// increments until the candidate is neither before now nor before the start.
func nextInterval(e models.Enrollment, now time.Time, days int) *time.Time {
	if e.PaymentStart == nil {
		return nil
	}
	start := e.PaymentStart.In(now.Location())

	candidate := time.Date(start.Year(), start.Month(), start.Day(), anchorHour, anchorMinute, 0, 0, now.Location())
	for candidate.Before(now) || candidate.Before(start) {
		candidate = candidate.AddDate(0, 0, days)
	}
	return &candidate
}

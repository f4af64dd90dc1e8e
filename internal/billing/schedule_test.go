package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func monthlyEnrollment(day int, start time.Time) models.Enrollment {
	return models.Enrollment{
		ID:               "enr-sched",
		PaymentPlan:      models.PaymentPlanAccelerated,
		PaymentFrequency: models.PaymentFrequencyMonthly,
		PaymentDay:       intPtr(day),
		PaymentStart:     timePtr(start),
	}
}

func weeklyEnrollment(freq models.PaymentFrequency, start *time.Time) models.Enrollment {
	return models.Enrollment{
		ID:               "enr-sched",
		PaymentPlan:      models.PaymentPlanExtended,
		PaymentFrequency: freq,
		PaymentStart:     start,
	}
}

func TestNextInstallmentDateFullPlanAlwaysNil(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	e.PaymentPlan = models.PaymentPlanFull

	got := NextInstallmentDate(e, dec("700"), time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC))
	assert.Nil(t, got)
}

func TestNextInstallmentDateSettledBalanceNil(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, NextInstallmentDate(e, dec("0"), now))
	assert.Nil(t, NextInstallmentDate(e, dec("-10"), now))
}

func TestNextInstallmentDateMonthlyAdvancesPastNow(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	got := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 45, 0, 0, time.UTC), *got)
}

func TestNextInstallmentDateMonthlyClampsLeapFebruary(t *testing.T) {
	e := monthlyEnrollment(31, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	// Midday on Jan 31: the 09:45 anchor for the day has already passed.
	now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

	got := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 45, 0, 0, time.UTC), *got)
}

func TestNextInstallmentDateMonthlyClampsShortMonths(t *testing.T) {
	e := monthlyEnrollment(31, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC))

	// Non-leap February.
	got := NextInstallmentDate(e, dec("700"), time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2023, 2, 28, 9, 45, 0, 0, time.UTC), *got)

	// April has 30 days.
	got = NextInstallmentDate(e, dec("700"), time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2023, 4, 30, 9, 45, 0, 0, time.UTC), *got)
}

func TestNextInstallmentDateMonthlyRollsOverYear(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC)

	got := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 45, 0, 0, time.UTC), *got)
}

func TestNextInstallmentDateMonthlyFallsBackToStartDay(t *testing.T) {
	e := monthlyEnrollment(0, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	e.PaymentDay = nil
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	got := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 45, 0, 0, time.UTC), *got)
}

func TestNextInstallmentDateMonthlyRespectsStartBound(t *testing.T) {
	// Candidate on the billing day before paymentStart must advance even
	// though it is not before now.
	e := monthlyEnrollment(15, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 4, 15, 9, 45, 0, 0, time.UTC), *got)
}

func TestNextInstallmentDateMonthlyUndefinedWithoutAnchors(t *testing.T) {
	e := models.Enrollment{
		PaymentPlan:      models.PaymentPlanExtended,
		PaymentFrequency: models.PaymentFrequencyMonthly,
	}
	assert.Nil(t, NextInstallmentDate(e, dec("700"), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestNextInstallmentDateWeeklyKeepsDayOfWeek(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) // Monday
	e := weeklyEnrollment(models.PaymentFrequencyWeekly, &start)
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	got := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 2, 26, 9, 45, 0, 0, time.UTC), *got)
	assert.Equal(t, start.Weekday(), got.Weekday())
	assert.Zero(t, int(got.Sub(time.Date(2024, 1, 15, 9, 45, 0, 0, time.UTC)).Hours())%(7*24))
}

func TestNextInstallmentDateWeeklyGapIsMultipleOfSevenDays(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	e := weeklyEnrollment(models.PaymentFrequencyWeekly, &start)

	var prev *time.Time
	for day := 16; day < 40; day += 3 {
		now := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		got := NextInstallmentDate(e, dec("700"), now)
		require.NotNil(t, got)
		assert.Equal(t, start.Weekday(), got.Weekday())
		if prev != nil && !got.Equal(*prev) {
			gap := got.Sub(*prev)
			assert.Zero(t, int(gap.Hours())%(7*24), "gap %s not a whole number of weeks", gap)
		}
		prev = got
	}
}

func TestNextInstallmentDateBiWeeklyStepsFourteenDays(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	e := weeklyEnrollment(models.PaymentFrequencyBiWeekly, &start)
	now := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)

	got := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	// Jan 15 -> Jan 29 (before now) -> Feb 12.
	assert.Equal(t, time.Date(2024, 2, 12, 9, 45, 0, 0, time.UTC), *got)
}

func TestNextInstallmentDateWeeklyWithoutStartNil(t *testing.T) {
	e := weeklyEnrollment(models.PaymentFrequencyWeekly, nil)
	assert.Nil(t, NextInstallmentDate(e, dec("700"), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))

	e = weeklyEnrollment(models.PaymentFrequencyBiWeekly, nil)
	assert.Nil(t, NextInstallmentDate(e, dec("700"), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestNextInstallmentDateIsDeterministic(t *testing.T) {
	e := monthlyEnrollment(31, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	first := NextInstallmentDate(e, dec("700"), now)
	second := NextInstallmentDate(e, dec("700"), now)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}

func TestLastInstallmentDateMonthly(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	got := LastInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 2, 15, 9, 45, 0, 0, time.UTC), *got)
}

func TestLastInstallmentDateMonthlyBeforeFirstAnchorNil(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, LastInstallmentDate(e, dec("700"), now))
}

func TestLastInstallmentDateMonthlyCrossesYearBackwards(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	got := LastInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2023, 12, 15, 9, 45, 0, 0, time.UTC), *got)
}

func TestLastInstallmentDateWeekly(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	e := weeklyEnrollment(models.PaymentFrequencyWeekly, &start)
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	got := LastInstallmentDate(e, dec("700"), now)
	require.NotNil(t, got)
	// Most recent Monday anchor at or before now.
	assert.Equal(t, time.Date(2024, 2, 19, 9, 45, 0, 0, time.UTC), *got)
}

func TestLastInstallmentDateSettledNil(t *testing.T) {
	e := monthlyEnrollment(15, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, LastInstallmentDate(e, dec("0"), now))
}

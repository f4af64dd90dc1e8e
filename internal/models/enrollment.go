package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPlan represents how an enrollment's tuition is spread over time.
type PaymentPlan string

// Possible payment plans.
const (
	PaymentPlanFull        PaymentPlan = "FULL"
	PaymentPlanAccelerated PaymentPlan = "ACCELERATED"
	PaymentPlanExtended    PaymentPlan = "EXTENDED"
)

// PaymentFrequency represents the cadence of automatic installments.
type PaymentFrequency string

// Possible payment frequencies.
const (
	PaymentFrequencyMonthly  PaymentFrequency = "MONTHLY"
	PaymentFrequencyWeekly   PaymentFrequency = "WEEKLY"
	PaymentFrequencyBiWeekly PaymentFrequency = "BI_WEEKLY"
)

// Enrollment captures a student's purchase of a course together with its
// payment-plan configuration. Cost and discount are fixed at purchase time by
// the pricing service and never recomputed here.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	Cost             decimal.Decimal  `db:"cost" json:"cost"`
	Discount         decimal.Decimal  `db:"discount" json:"discount"`
	Installment      decimal.Decimal  `db:"installment" json:"installment"`
	PaymentPlan      PaymentPlan      `db:"payment_plan" json:"payment_plan"`
	PaymentFrequency PaymentFrequency `db:"payment_frequency" json:"payment_frequency"`
	PaymentDay       *int             `db:"payment_day" json:"payment_day,omitempty"`
	PaymentStart     *time.Time       `db:"payment_start" json:"payment_start,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`

	// Populated by the repository on billing loads; append-only from the
	// engine's point of view.
	Transactions   []Transaction   `db:"-" json:"transactions,omitempty"`
	PaymentMethods []PaymentMethod `db:"-" json:"payment_methods,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Plan      PaymentPlan
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

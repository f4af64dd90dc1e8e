package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "course_id", "cost", "discount", "installment",
		"payment_plan", "payment_frequency", "payment_day", "payment_start", "created_at",
	}).AddRow("enr-1", "stu-1", "crs-1", "1000", "200", "100",
		models.PaymentPlanAccelerated, models.PaymentFrequencyMonthly, 15, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), time.Now())
}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_id, cost, discount, installment, payment_plan, payment_frequency, payment_day, payment_start, created_at FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRows())

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.True(t, enrollment.Cost.Equal(enrollment.Discount.Add(enrollment.Cost.Sub(enrollment.Discount))))
	require.NotNil(t, enrollment.PaymentDay)
	require.Equal(t, 15, *enrollment.PaymentDay)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindBillingByIDLoadsAggregates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT id, student_id, course_id, .+ FROM enrollments WHERE id = ").
		WithArgs("enr-1").
		WillReturnRows(enrollmentRows())

	txRows := sqlmock.NewRows([]string{
		"id", "enrollment_id", "payment_method_id", "amount", "attempted_amount",
		"transaction_type", "extra_charge", "voided", "parent_id", "created_at",
	}).
		AddRow("tx-1", "enr-1", "pm-1", "100", "100", models.TransactionTypeCharge, false, false, nil, time.Now()).
		AddRow("tx-2", "enr-1", "pm-1", "50", "50", models.TransactionTypeCharge, false, false, nil, time.Now())
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE enrollment_id = .+ ORDER BY created_at ASC, id ASC").
		WithArgs("enr-1").
		WillReturnRows(txRows)

	pmRows := sqlmock.NewRows([]string{
		"id", "enrollment_id", "brand", "last4", "is_primary", "expiry_month", "expiry_year", "deleted", "disabled", "created_at",
	}).AddRow("pm-1", "enr-1", "visa", "4242", true, 12, 2026, false, false, time.Now())
	mock.ExpectQuery("SELECT .+ FROM payment_methods WHERE enrollment_id = ").
		WithArgs("enr-1").
		WillReturnRows(pmRows)

	enrollment, err := repo.FindBillingByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, enrollment.Transactions, 2)
	require.Equal(t, "tx-1", enrollment.Transactions[0].ID)
	require.Len(t, enrollment.PaymentMethods, 1)
	require.True(t, enrollment.PaymentMethods[0].Primary)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	listRows := sqlmock.NewRows([]string{
		"id", "student_id", "course_id", "cost", "discount", "installment",
		"payment_plan", "payment_frequency", "payment_day", "payment_start", "created_at",
		"student_name", "course_name",
	}).AddRow("enr-1", "stu-1", "crs-1", "1000", "200", "100",
		models.PaymentPlanAccelerated, models.PaymentFrequencyMonthly, 15, nil, time.Now(),
		"Student One", "Course One")
	mock.ExpectQuery("SELECT e.id, e.student_id, .+ FROM enrollments e").
		WithArgs("stu-1").
		WillReturnRows(listRows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments e`).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "Student One", enrollments[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListAutopayIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT id FROM enrollments WHERE payment_plan <> ").
		WithArgs(models.PaymentPlanFull).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1").AddRow("enr-2"))

	ids, err := repo.ListAutopayIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"enr-1", "enr-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

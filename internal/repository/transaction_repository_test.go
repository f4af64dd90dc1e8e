package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func TestTransactionRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	methodID := "pm-1"
	tx := &models.Transaction{
		EnrollmentID:    "enr-1",
		PaymentMethodID: &methodID,
		Amount:          decimal.RequireFromString("50"),
		AttemptedAmount: decimal.RequireFromString("50"),
		Type:            models.TransactionTypeCharge,
	}

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "enr-1", &methodID, tx.Amount, tx.AttemptedAmount,
			models.TransactionTypeCharge, false, false, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Append(context.Background(), tx))
	require.NotEmpty(t, tx.ID, "append must assign an ID")
	require.False(t, tx.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryListByEnrollmentKeepsAppendOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "enrollment_id", "payment_method_id", "amount", "attempted_amount",
		"transaction_type", "extra_charge", "voided", "parent_id", "created_at",
	}).
		AddRow("tx-1", "enr-1", nil, "100", "100", models.TransactionTypeCharge, false, false, nil, time.Now()).
		AddRow("tx-2", "enr-1", nil, "-40", "40", models.TransactionTypeRefund, false, false, "tx-1", time.Now())
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE enrollment_id = .+ ORDER BY created_at ASC, id ASC").
		WithArgs("enr-1").
		WillReturnRows(rows)

	transactions, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	require.Equal(t, "tx-1", transactions[0].ID)
	require.Equal(t, models.TransactionTypeRefund, transactions[1].Type)
	require.NotNil(t, transactions[1].ParentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMethodRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentMethodRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "enrollment_id", "brand", "last4", "is_primary", "expiry_month", "expiry_year", "deleted", "disabled", "created_at",
	}).
		AddRow("pm-1", "enr-1", "visa", "4242", true, 12, 2026, false, false, time.Now()).
		AddRow("pm-2", "enr-1", "mastercard", "5100", false, nil, nil, false, true, time.Now())
	mock.ExpectQuery("SELECT .+ FROM payment_methods WHERE enrollment_id = ").
		WithArgs("enr-1").
		WillReturnRows(rows)

	methods, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	require.True(t, methods[0].Primary)
	require.Nil(t, methods[1].ExpiryMonth)
	require.NoError(t, mock.ExpectationsWereMet())
}

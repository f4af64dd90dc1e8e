package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// TransactionRepository persists ledger entries. The ledger is append-only:
// there is deliberately no update or delete here.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs the repository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts a new ledger entry. The entry's ID and timestamp are filled
// in when absent.
func (r *TransactionRepository) Append(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transactions (id, enrollment_id, payment_method_id, amount, attempted_amount, transaction_type, extra_charge, voided, parent_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.EnrollmentID, tx.PaymentMethodID, tx.Amount, tx.AttemptedAmount,
		tx.Type, tx.ExtraCharge, tx.Voided, tx.ParentID, tx.CreatedAt,
	); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// ListByEnrollment returns the enrollment's ledger in append order.
func (r *TransactionRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Transaction, error) {
	const query = `SELECT id, enrollment_id, payment_method_id, amount, attempted_amount, transaction_type, extra_charge, voided, parent_id, created_at
        FROM transactions WHERE enrollment_id = $1 ORDER BY created_at ASC, id ASC`
	var transactions []models.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// PaymentMethodRepository reads stored payment instruments. Methods are
// managed (created, deleted, disabled) by the external vault; this service
// only reads them.
type PaymentMethodRepository struct {
	db *sqlx.DB
}

// NewPaymentMethodRepository constructs the repository.
func NewPaymentMethodRepository(db *sqlx.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

const paymentMethodColumns = `id, enrollment_id, brand, last4, is_primary, expiry_month, expiry_year, deleted, disabled, created_at`

// ListByEnrollment returns all stored methods for an enrollment, including
// deleted and disabled ones; eligibility is decided by the engine.
func (r *PaymentMethodRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentMethod, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_methods WHERE enrollment_id = $1 ORDER BY created_at ASC", paymentMethodColumns)
	var methods []models.PaymentMethod
	if err := r.db.SelectContext(ctx, &methods, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return methods, nil
}

// FindByID returns a single payment method.
func (r *PaymentMethodRepository) FindByID(ctx context.Context, id string) (*models.PaymentMethod, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_methods WHERE id = $1", paymentMethodColumns)
	var method models.PaymentMethod
	if err := r.db.GetContext(ctx, &method, query, id); err != nil {
		return nil, err
	}
	return &method, nil
}

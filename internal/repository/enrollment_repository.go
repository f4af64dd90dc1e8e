package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and their billing
// aggregates.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, course_id, cost, discount, installment, payment_plan, payment_frequency, payment_day, payment_start, created_at`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Plan != "" {
		conditions = append(conditions, fmt.Sprintf("e.payment_plan = $%d", len(args)+1))
		args = append(args, filter.Plan)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"student_name": "s.full_name",
		"course_name":  "c.name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.cost, e.discount, e.installment,
        e.payment_plan, e.payment_frequency, e.payment_day, e.payment_start, e.created_at,
        s.full_name AS student_name, c.name AS course_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID without its billing aggregates.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindBillingByID returns an enrollment with its full transaction ledger and
// stored payment methods. Transactions come back in append order; the engine
// never reorders them.
func (r *EnrollmentRepository) FindBillingByID(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	const txQuery = `SELECT id, enrollment_id, payment_method_id, amount, attempted_amount, transaction_type, extra_charge, voided, parent_id, created_at
        FROM transactions WHERE enrollment_id = $1 ORDER BY created_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &enrollment.Transactions, txQuery, id); err != nil {
		return nil, fmt.Errorf("load enrollment transactions: %w", err)
	}

	const pmQuery = `SELECT id, enrollment_id, brand, last4, is_primary, expiry_month, expiry_year, deleted, disabled, created_at
        FROM payment_methods WHERE enrollment_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &enrollment.PaymentMethods, pmQuery, id); err != nil {
		return nil, fmt.Errorf("load enrollment payment methods: %w", err)
	}

	return enrollment, nil
}

// ListAutopayIDs returns the IDs of enrollments on a recurring plan. The
// worker re-derives due-ness through the engine; this query only narrows the
// candidate set.
func (r *EnrollmentRepository) ListAutopayIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM enrollments WHERE payment_plan <> $1 ORDER BY created_at ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.PaymentPlanFull); err != nil {
		return nil, fmt.Errorf("list autopay enrollments: %w", err)
	}
	return ids, nil
}

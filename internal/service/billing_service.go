package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/gateway"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type enrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindBillingByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type transactionAppender interface {
	Append(ctx context.Context, tx *models.Transaction) error
}

type methodLister interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentMethod, error)
}

type billingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type chargeObserver interface {
	ObserveCharge(status billing.ChargeStatus, duration time.Duration)
}

// BillingService orchestrates the billing engine against persistence and the
// payment gateway. The engine stays pure; everything effectful lives here.
type BillingService struct {
	enrollments  enrollmentReader
	transactions transactionAppender
	methods      methodLister
	gateway      gateway.Client
	cache        billingCache
	cacheTTL     time.Duration
	metrics      chargeObserver
	validator    *validator.Validate
	logger       *zap.Logger

	// now is swapped in tests; the engine itself always receives the
	// clock explicitly.
	now func() time.Time

	// inflight enforces at most one outstanding gateway call per
	// enrollment. Duplicate requests while one is in flight are dropped,
	// not failed: they are almost always repeat fires of the same UI
	// action.
	inflight sync.Map
}

// NewBillingService constructs BillingService.
func NewBillingService(enrollments enrollmentReader, transactions transactionAppender, methods methodLister, gw gateway.Client, cache billingCache, cacheTTL time.Duration, metrics chargeObserver, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		enrollments:  enrollments,
		transactions: transactions,
		methods:      methods,
		gateway:      gw,
		cache:        cache,
		cacheTTL:     cacheTTL,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// List returns enrollments with pagination metadata.
func (s *BillingService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

func billingCacheKey(enrollmentID string) string {
	return "billing:meta:" + enrollmentID
}

// GetBilling returns the derived billing view of an enrollment. The view is
// cached briefly; any fold invalidates it.
func (s *BillingService) GetBilling(ctx context.Context, enrollmentID string) (*dto.BillingResponse, error) {
	if s.cache != nil {
		var cached dto.BillingResponse
		if err := s.cache.Get(ctx, billingCacheKey(enrollmentID), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("billing cache read failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
	}

	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	resp := s.buildBillingResponse(*enrollment, s.now())

	if s.cache != nil {
		if err := s.cache.Set(ctx, billingCacheKey(enrollmentID), resp, s.cacheTTL); err != nil {
			s.logger.Warn("billing cache write failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
	}
	return resp, nil
}

// PaymentMethods returns the enrollment's stored methods with eligibility
// evaluated at call time. Eligibility is re-derived on every call; a card
// can expire between loads purely by clock advance.
func (s *BillingService) PaymentMethods(ctx context.Context, enrollmentID string) ([]dto.PaymentMethodInfo, error) {
	methods, err := s.methods.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payment methods")
	}
	return methodInfos(methods, s.now()), nil
}

// SelectMethod switches the enrollment's selected payment method for the
// charge cycle. Selection is advisory (the charge request names its method
// explicitly); this validates the switch against the same rules the reducer
// applies and returns the billing view with the new selection.
func (s *BillingService) SelectMethod(ctx context.Context, enrollmentID, methodID string) (*dto.BillingResponse, error) {
	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	method := methodByID(enrollment.PaymentMethods, methodID)
	if method == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment method not found")
	}
	if !billing.EligibleMethod(*method, now) {
		return nil, appErrors.Clone(appErrors.ErrMethodIneligible, "")
	}

	state := billing.NewChargeState(*enrollment, now)
	state = billing.Apply(state, billing.MethodSelected{PaymentMethodID: methodID}, now)

	resp := s.buildBillingResponse(*enrollment, now)
	resp.SelectedMethodID = state.SelectedMethodID
	return resp, nil
}

// Transactions returns the enrollment's ledger in append order.
func (s *BillingService) Transactions(ctx context.Context, enrollmentID string) ([]models.Transaction, error) {
	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	return enrollment.Transactions, nil
}

// Charge runs one charge attempt through the state machine. Gateway declines
// and transport failures are business outcomes reported in the response, not
// errors; errors are reserved for the caller's own mistakes (unknown
// enrollment, ineligible method, bad payload) and persistence faults.
func (s *BillingService) Charge(ctx context.Context, enrollmentID string, req dto.ChargeRequest) (*dto.ChargeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge payload")
	}

	if _, loaded := s.inflight.LoadOrStore(enrollmentID, struct{}{}); loaded {
		// A charge is already in flight for this enrollment; drop the
		// duplicate and report the cycle as processing.
		return &dto.ChargeResponse{EnrollmentID: enrollmentID, Status: billing.ChargeProcessing}, nil
	}
	defer s.inflight.Delete(enrollmentID)

	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state := billing.NewChargeState(*enrollment, now)

	method := methodByID(enrollment.PaymentMethods, req.PaymentMethodID)
	if method == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment method not found")
	}
	if !billing.EligibleMethod(*method, now) {
		return nil, appErrors.Clone(appErrors.ErrMethodIneligible, "")
	}

	amount := state.Meta.SuggestedCharge
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge amount")
		}
		amount = parsed
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "nothing to charge")
	}

	state = billing.Apply(state, billing.ChargeRequested{PaymentMethodID: method.ID, Amount: amount}, now)
	if state.Status != billing.ChargeProcessing {
		// Guard refused the dispatch; report the cycle unchanged.
		return s.chargeResponse(enrollmentID, state), nil
	}

	started := s.now()
	tx, err := s.gateway.Charge(ctx, enrollmentID, method.ID, amount)
	switch {
	case err == nil:
		state = billing.Apply(state, billing.ChargeSucceeded{Transaction: *tx}, s.now())
		if err := s.persistFold(ctx, enrollmentID, tx); err != nil {
			return nil, err
		}

	default:
		var declined *gateway.DeclinedError
		var reauth *gateway.ReauthError
		switch {
		case errors.As(err, &declined):
			// A decline is still a ledger entry; fold it like a capture.
			state = billing.Apply(state, billing.ChargeRefused{Transaction: declined.Transaction, Message: declined.Message}, s.now())
			declinedTx := declined.Transaction
			if err := s.persistFold(ctx, enrollmentID, &declinedTx); err != nil {
				return nil, err
			}

		case errors.As(err, &reauth):
			state = billing.Apply(state, billing.ChargeFailed{Message: reauth.Message}, s.now())
			resp := s.chargeResponse(enrollmentID, state)
			resp.Reauth = true
			s.observeCharge(state.Status, started)
			return resp, nil

		default:
			s.logger.Error("charge dispatch failed",
				zap.String("enrollment_id", enrollmentID),
				zap.String("payment_method_id", method.ID),
				zap.Error(err),
			)
			state = billing.Apply(state, billing.ChargeFailed{Message: ""}, s.now())
		}
	}

	s.observeCharge(state.Status, started)
	return s.chargeResponse(enrollmentID, state), nil
}

func (s *BillingService) observeCharge(status billing.ChargeStatus, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCharge(status, s.now().Sub(started))
	}
}

// persistFold appends the folded transaction and drops the cached view. A
// persistence failure after a successful capture is loud: the gateway state
// is ahead of ours until the ledger is re-synced from the source of truth.
func (s *BillingService) persistFold(ctx context.Context, enrollmentID string, tx *models.Transaction) error {
	if tx.EnrollmentID == "" {
		tx.EnrollmentID = enrollmentID
	}
	if err := s.transactions.Append(ctx, tx); err != nil {
		s.logger.Error("ledger append failed after gateway response",
			zap.String("enrollment_id", enrollmentID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record transaction")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, billingCacheKey(enrollmentID)); err != nil {
			s.logger.Warn("billing cache invalidation failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
	}
	return nil
}

func (s *BillingService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindBillingByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *BillingService) buildBillingResponse(e models.Enrollment, now time.Time) *dto.BillingResponse {
	state := billing.NewChargeState(e, now)
	return &dto.BillingResponse{
		EnrollmentID:     e.ID,
		PaymentPlan:      e.PaymentPlan,
		PaymentFrequency: e.PaymentFrequency,
		Installment:      billing.FixedString(e.Installment),
		Meta:             dto.NewBillingMeta(state.Meta),
		SelectedMethodID: state.SelectedMethodID,
		PaymentMethods:   methodInfos(e.PaymentMethods, now),
	}
}

func (s *BillingService) chargeResponse(enrollmentID string, state billing.ChargeState) *dto.ChargeResponse {
	meta := dto.NewBillingMeta(state.Meta)
	resp := &dto.ChargeResponse{
		EnrollmentID: enrollmentID,
		Status:       state.Status,
		Message:      state.Message,
		Meta:         &meta,
	}
	if n := len(state.Enrollment.Transactions); n > 0 && (state.Status == billing.ChargeSuccess || state.Status == billing.ChargeDeclined) {
		last := state.Enrollment.Transactions[n-1]
		resp.Transaction = &last
	}
	return resp
}

func methodInfos(methods []models.PaymentMethod, now time.Time) []dto.PaymentMethodInfo {
	infos := make([]dto.PaymentMethodInfo, 0, len(methods))
	for _, m := range methods {
		infos = append(infos, dto.PaymentMethodInfo{
			ID:          m.ID,
			Brand:       m.Brand,
			Last4:       m.Last4,
			Primary:     m.Primary,
			ExpiryMonth: m.ExpiryMonth,
			ExpiryYear:  m.ExpiryYear,
			Eligible:    billing.EligibleMethod(m, now),
		})
	}
	return infos
}

func methodByID(methods []models.PaymentMethod, id string) *models.PaymentMethod {
	for i := range methods {
		if methods[i].ID == id {
			return &methods[i]
		}
	}
	return nil
}

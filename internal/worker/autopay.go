package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
)

type autopayEnrollments interface {
	ListAutopayIDs(ctx context.Context) ([]string, error)
	FindBillingByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type charger interface {
	Charge(ctx context.Context, enrollmentID string, req dto.ChargeRequest) (*dto.ChargeResponse, error)
}

// AutopaySweeper walks installment-plan enrollments and dispatches a charge
// for each one whose next installment has come due. Charges go through the
// same service path as user-initiated ones, so the in-flight guard and ledger
// semantics are shared.
type AutopaySweeper struct {
	enrollments autopayEnrollments
	billing     charger
	logger      *zap.Logger
	now         func() time.Time
}

// NewAutopaySweeper constructs AutopaySweeper.
func NewAutopaySweeper(enrollments autopayEnrollments, billing charger, logger *zap.Logger) *AutopaySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutopaySweeper{
		enrollments: enrollments,
		billing:     billing,
		logger:      logger,
		now:         time.Now,
	}
}

// RunOnce performs a single sweep. Failures on one enrollment never stop the
// sweep; each is logged and the walk continues.
func (s *AutopaySweeper) RunOnce(ctx context.Context) {
	ids, err := s.enrollments.ListAutopayIDs(ctx)
	if err != nil {
		s.logger.Error("autopay sweep failed to list enrollments", zap.Error(err))
		return
	}

	now := s.now()
	charged := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("autopay sweep interrupted", zap.Error(err))
			return
		}
		if s.sweepOne(ctx, id, now) {
			charged++
		}
	}
	s.logger.Info("autopay sweep finished", zap.Int("scanned", len(ids)), zap.Int("charged", charged))
}

func (s *AutopaySweeper) sweepOne(ctx context.Context, id string, now time.Time) bool {
	enrollment, err := s.enrollments.FindBillingByID(ctx, id)
	if err != nil {
		s.logger.Error("autopay load failed", zap.String("enrollment_id", id), zap.Error(err))
		return false
	}

	meta := billing.ComputeMeta(*enrollment, now)
	due := billing.LastInstallmentDate(*enrollment, meta.Balance, now)
	if due == nil || paidSince(enrollment.Transactions, *due) {
		return false
	}

	primary := billing.SelectPrimary(enrollment.PaymentMethods)
	if primary == nil || !billing.EligibleMethod(*primary, now) {
		s.logger.Warn("autopay skipped, no eligible primary method", zap.String("enrollment_id", id))
		return false
	}

	resp, err := s.billing.Charge(ctx, id, dto.ChargeRequest{PaymentMethodID: primary.ID})
	if err != nil {
		s.logger.Error("autopay charge failed", zap.String("enrollment_id", id), zap.Error(err))
		return false
	}

	s.logger.Info("autopay charge dispatched",
		zap.String("enrollment_id", id),
		zap.String("payment_method_id", primary.ID),
		zap.String("status", string(resp.Status)),
	)
	return resp.Status == billing.ChargeSuccess
}

// paidSince reports whether a principal payment has landed at or after the
// given anchor, meaning the current cycle is already covered.
func paidSince(txs []models.Transaction, anchor time.Time) bool {
	for _, tx := range txs {
		if tx.Type != models.TransactionTypeCharge || tx.ExtraCharge || tx.Voided {
			continue
		}
		if tx.Amount.Sign() > 0 && !tx.CreatedAt.Before(anchor) {
			return true
		}
	}
	return false
}

// Scheduler runs the sweeper on a cron cadence.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *AutopaySweeper
	spec    string
	logger  *zap.Logger
}

// NewScheduler constructs a cron scheduler for the sweeper. location controls
// which wall clock the cron spec is evaluated against.
func NewScheduler(sweeper *AutopaySweeper, spec string, location *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}
	c := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(logger)))),
	)
	return &Scheduler{cron: c, sweeper: sweeper, spec: spec, logger: logger}
}

// Start registers the sweep job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.sweeper.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("autopay scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop stops the cron loop and returns a context that is done once running
// jobs have drained.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

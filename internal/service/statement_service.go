package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/export"
)

// StatementFormat selects the rendered statement type.
type StatementFormat string

// Supported statement formats.
const (
	StatementFormatCSV StatementFormat = "csv"
	StatementFormatPDF StatementFormat = "pdf"
)

type statementEnrollmentReader interface {
	FindBillingByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// StatementService renders an enrollment's ledger as a downloadable
// statement.
type StatementService struct {
	enrollments statementEnrollmentReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
	now         func() time.Time
}

// NewStatementService constructs StatementService.
func NewStatementService(enrollments statementEnrollmentReader, logger *zap.Logger) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
		now:         time.Now,
	}
}

// Statement renders the ledger in the requested format and returns the bytes
// with their content type.
func (s *StatementService) Statement(ctx context.Context, enrollmentID string, format StatementFormat) ([]byte, string, error) {
	enrollment, err := s.enrollments.FindBillingByID(ctx, enrollmentID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	now := s.now()
	meta := billing.ComputeMeta(*enrollment, now)
	dataset := statementDataset(*enrollment)

	switch format {
	case StatementFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return payload, "text/csv", nil

	case StatementFormatPDF:
		summary := export.Summary{
			{Label: "Discounted cost", Value: billing.FixedString(meta.DiscountedCost)},
			{Label: "Amount paid", Value: billing.FixedString(meta.AmountPaid)},
			{Label: "Outstanding balance", Value: billing.FixedString(meta.Balance)},
		}
		if meta.NextInstallment != nil {
			summary = append(summary, export.SummaryLine{Label: "Next installment", Value: meta.NextInstallment.Format("2006-01-02 15:04")})
		}
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Billing statement %s", enrollment.ID), summary)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return payload, "application/pdf", nil
	}

	return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported statement format")
}

func statementDataset(e models.Enrollment) export.Dataset {
	headers := []string{"Date", "Type", "Amount", "Attempted", "Extra", "Voided"}
	rows := make([]map[string]string, 0, len(e.Transactions))
	for _, tx := range e.Transactions {
		rows = append(rows, map[string]string{
			"Date":      tx.CreatedAt.Format("2006-01-02"),
			"Type":      string(tx.Type),
			"Amount":    billing.FixedString(tx.Amount),
			"Attempted": billing.FixedString(tx.AttemptedAmount),
			"Extra":     fmt.Sprintf("%t", tx.ExtraCharge),
			"Voided":    fmt.Sprintf("%t", tx.Voided),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/service"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type billingProvider interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	GetBilling(ctx context.Context, enrollmentID string) (*dto.BillingResponse, error)
	Charge(ctx context.Context, enrollmentID string, req dto.ChargeRequest) (*dto.ChargeResponse, error)
	Transactions(ctx context.Context, enrollmentID string) ([]models.Transaction, error)
	PaymentMethods(ctx context.Context, enrollmentID string) ([]dto.PaymentMethodInfo, error)
	SelectMethod(ctx context.Context, enrollmentID, methodID string) (*dto.BillingResponse, error)
}

type statementProvider interface {
	Statement(ctx context.Context, enrollmentID string, format service.StatementFormat) ([]byte, string, error)
}

// BillingHandler exposes enrollment billing endpoints.
type BillingHandler struct {
	billing    billingProvider
	statements statementProvider
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing billingProvider, statements statementProvider) *BillingHandler {
	return &BillingHandler{billing: billing, statements: statements}
}

// List godoc
// @Summary List enrollments
// @Tags Billing
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param plan query string false "Filter by payment plan"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *BillingHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	filter.Plan = models.PaymentPlan(c.Query("plan"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	// Non-staff callers only ever see their own enrollments.
	if claims := claimsFromContext(c); claims != nil && claims.Role != "admin" && claims.Role != "staff" {
		filter.StudentID = claims.UserID
	}

	enrollments, pagination, err := h.billing.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// GetBilling godoc
// @Summary Get the billing view of an enrollment
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope{data=dto.BillingResponse}
// @Router /enrollments/{id}/billing [get]
func (h *BillingHandler) GetBilling(c *gin.Context) {
	billing, err := h.billing.GetBilling(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, billing, nil)
}

// Charge godoc
// @Summary Dispatch a charge against an enrollment
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ChargeRequest true "Charge payload"
// @Success 200 {object} response.Envelope{data=dto.ChargeResponse}
// @Router /enrollments/{id}/charges [post]
func (h *BillingHandler) Charge(c *gin.Context) {
	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.billing.Charge(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Transactions godoc
// @Summary List an enrollment's ledger
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/transactions [get]
func (h *BillingHandler) Transactions(c *gin.Context) {
	txs, err := h.billing.Transactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txs, nil)
}

// PaymentMethods godoc
// @Summary List an enrollment's payment methods with eligibility
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/payment-methods [get]
func (h *BillingHandler) PaymentMethods(c *gin.Context) {
	methods, err := h.billing.PaymentMethods(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, methods, nil)
}

// SelectMethod godoc
// @Summary Select the payment method for the charge cycle
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param methodId path string true "Payment method ID"
// @Success 200 {object} response.Envelope{data=dto.BillingResponse}
// @Router /enrollments/{id}/payment-methods/{methodId}/select [post]
func (h *BillingHandler) SelectMethod(c *gin.Context) {
	billing, err := h.billing.SelectMethod(c.Request.Context(), c.Param("id"), c.Param("methodId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, billing, nil)
}

// Statement godoc
// @Summary Download an enrollment statement
// @Tags Billing
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /enrollments/{id}/statement [get]
func (h *BillingHandler) Statement(c *gin.Context) {
	id := c.Param("id")
	format := service.StatementFormat(c.DefaultQuery("format", "csv"))

	payload, contentType, err := h.statements.Statement(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("statement-%s.%s", id, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

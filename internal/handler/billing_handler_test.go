package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/service"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type billingServiceMock struct {
	listResp    []models.EnrollmentDetail
	billingResp *dto.BillingResponse
	billingErr  error
	chargeResp  *dto.ChargeResponse
	chargeErr   error
	lastFilter  models.EnrollmentFilter
	lastCharge  dto.ChargeRequest
	chargeID    string
}

func (m *billingServiceMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, nil
}

func (m *billingServiceMock) GetBilling(ctx context.Context, enrollmentID string) (*dto.BillingResponse, error) {
	return m.billingResp, m.billingErr
}

func (m *billingServiceMock) Charge(ctx context.Context, enrollmentID string, req dto.ChargeRequest) (*dto.ChargeResponse, error) {
	m.chargeID = enrollmentID
	m.lastCharge = req
	return m.chargeResp, m.chargeErr
}

func (m *billingServiceMock) Transactions(ctx context.Context, enrollmentID string) ([]models.Transaction, error) {
	return []models.Transaction{{ID: "tx-1", EnrollmentID: enrollmentID}}, nil
}

func (m *billingServiceMock) PaymentMethods(ctx context.Context, enrollmentID string) ([]dto.PaymentMethodInfo, error) {
	return []dto.PaymentMethodInfo{{ID: "pm-1", Eligible: true}}, nil
}

func (m *billingServiceMock) SelectMethod(ctx context.Context, enrollmentID, methodID string) (*dto.BillingResponse, error) {
	return &dto.BillingResponse{EnrollmentID: enrollmentID, SelectedMethodID: methodID}, nil
}

type statementServiceMock struct {
	payload     []byte
	contentType string
	err         error
	lastFormat  service.StatementFormat
}

func (m *statementServiceMock) Statement(ctx context.Context, enrollmentID string, format service.StatementFormat) ([]byte, string, error) {
	m.lastFormat = format
	return m.payload, m.contentType, m.err
}

func TestBillingHandlerListScopesNonStaff(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &billingServiceMock{}
	handler := NewBillingHandler(mockSvc, &statementServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments?studentId=someone-else", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: "student"})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", mockSvc.lastFilter.StudentID)
}

func TestBillingHandlerListAdminKeepsFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &billingServiceMock{}
	handler := NewBillingHandler(mockSvc, &statementServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments?studentId=stu-9&page=2&limit=5", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: "admin"})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-9", mockSvc.lastFilter.StudentID)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)
}

func TestBillingHandlerGetBilling(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &billingServiceMock{billingResp: &dto.BillingResponse{EnrollmentID: "enr-1"}}
	handler := NewBillingHandler(mockSvc, &statementServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/enr-1/billing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.GetBilling(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.BillingResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "enr-1", envelope.Data.EnrollmentID)
}

func TestBillingHandlerGetBillingNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &billingServiceMock{billingErr: appErrors.ErrNotFound}
	handler := NewBillingHandler(mockSvc, &statementServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/nope/billing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	handler.GetBilling(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBillingHandlerCharge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &billingServiceMock{chargeResp: &dto.ChargeResponse{EnrollmentID: "enr-1", Status: billing.ChargeSuccess}}
	handler := NewBillingHandler(mockSvc, &statementServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"payment_method_id":"pm-1","amount":"50"}`)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments/enr-1/charges", body)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Charge(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "enr-1", mockSvc.chargeID)
	assert.Equal(t, "pm-1", mockSvc.lastCharge.PaymentMethodID)
	assert.Equal(t, "50", mockSvc.lastCharge.Amount)
}

func TestBillingHandlerChargeInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBillingHandler(&billingServiceMock{}, &statementServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments/enr-1/charges", bytes.NewBufferString(`{"payment_method_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Charge(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingHandlerStatement(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stmts := &statementServiceMock{payload: []byte("Date,Type\n"), contentType: "text/csv"}
	handler := NewBillingHandler(&billingServiceMock{}, stmts)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/enr-1/statement?format=csv", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Statement(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.StatementFormatCSV, stmts.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statement-enr-1.csv")
}

// Package gateway wraps the external payment gateway. The gateway is the
// system of record for captures; this client only translates its responses
// into the engine's vocabulary: a transaction (captured or declined), or an
// error with no ledger effect.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// Client dispatches charge requests to the payment gateway.
type Client interface {
	Charge(ctx context.Context, enrollmentID, paymentMethodID string, amount decimal.Decimal) (*models.Transaction, error)
}

// DeclinedError signals that the gateway explicitly refused the charge. The
// attached transaction is a real ledger entry and must still be folded.
type DeclinedError struct {
	Transaction models.Transaction
	Message     string
}

// Error implements the error interface.
func (e *DeclinedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "charge declined"
}

// ReauthError signals that the gateway rejected the caller's credentials and
// the user must authenticate again. The billing engine treats this as a
// terminal error state; the redirect is the caller's responsibility.
type ReauthError struct {
	Message string
}

// Error implements the error interface.
func (e *ReauthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "authentication required"
}

// Config holds gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient is the production gateway client.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs the gateway client.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chargeRequest struct {
	EnrollmentID    string `json:"enrollment_id"`
	PaymentMethodID string `json:"payment_method_id"`
	Amount          string `json:"amount"`
}

type chargeResponse struct {
	Transaction *models.Transaction `json:"transaction"`
	Declined    bool                `json:"declined"`
	Message     string              `json:"message"`
	Reauth      bool                `json:"reauth"`
}

// Charge posts a charge request and maps the outcome. Success and decline
// both carry a transaction; transport failures and gateway rejections carry
// none.
func (c *HTTPClient) Charge(ctx context.Context, enrollmentID, paymentMethodID string, amount decimal.Decimal) (*models.Transaction, error) {
	payload, err := json.Marshal(chargeRequest{
		EnrollmentID:    enrollmentID,
		PaymentMethodID: paymentMethodID,
		Amount:          amount.StringFixed(2),
	})
	if err != nil {
		return nil, fmt.Errorf("encode charge request: %w", err)
	}

	url := c.baseURL + "/charges"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch charge: %w", err)
	}
	defer resp.Body.Close()

	var body chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || body.Reauth {
		return nil, &ReauthError{Message: body.Message}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if body.Message != "" {
			return nil, fmt.Errorf("gateway rejected charge: %s", body.Message)
		}
		return nil, fmt.Errorf("gateway rejected charge: status %d", resp.StatusCode)
	}
	if body.Transaction == nil {
		return nil, fmt.Errorf("gateway returned no transaction")
	}

	if body.Declined {
		c.logger.Info("gateway declined charge",
			zap.String("enrollment_id", enrollmentID),
			zap.String("payment_method_id", paymentMethodID),
		)
		return nil, &DeclinedError{Transaction: *body.Transaction, Message: body.Message}
	}
	return body.Transaction, nil
}

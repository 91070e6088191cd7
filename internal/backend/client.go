package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"checkout-service/internal/util"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Error kinds the controller branches on. Wrapped errors carry the backend
// message where one was returned.
var (
	// ErrValidationRejected means the backend refused the order fields.
	// Recoverable: the payer can correct input and resubmit.
	ErrValidationRejected = errors.New("order rejected by backend")

	// ErrSignatureRejected means the backend judged the payment/order/
	// signature triple invalid or already consumed.
	ErrSignatureRejected = errors.New("payment verification rejected")

	// ErrBackendUnavailable means the backend could not be reached or
	// answered with a server error. During verification this is the worst
	// failure in the system: the gateway may have captured money the
	// backend has not recorded.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// CreateOrderRequest mirrors the backend's create-order contract. Amount is
// in minor units and is re-derived from the catalog by the caller
// immediately before each call.
type CreateOrderRequest struct {
	Amount         int64  `json:"amount"`
	Description    string `json:"description"`
	Month          string `json:"month"`
	PlanName       string `json:"planName"`
	StudentID      string `json:"studentId"`
	StudentRef     string `json:"studentRef,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// VerifyPaymentRequest mirrors the backend's verify-payment contract.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpayOrderId"`
	GatewayPaymentID string `json:"razorpayPaymentId"`
	Signature        string `json:"razorpaySignature"`
	Amount           int64  `json:"amount"`
	Description      string `json:"description"`
	Month            string `json:"month"`
	PlanName         string `json:"planName"`
	StudentID        string `json:"studentId"`
}

type restResult struct {
	status int
	body   []byte
}

// Client talks to the institute backend that owns orders and performs the
// cryptographic verification. All calls go through a circuit breaker; an
// open breaker is reported as ErrBackendUnavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[restResult]
	logger     *zap.Logger
}

// NewClient creates a backend client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:    "institute-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[restResult](settings),
		logger:     util.GetLogger(),
	}
}

type createOrderResponse struct {
	Success bool `json:"success"`
	Order   struct {
		ID string `json:"id"`
	} `json:"order"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// CreateOrder asks the backend to reserve a pending order and returns its
// id. Callers must not assume the call is idempotent across retries; the
// idempotency key travels with the request and deduplication is the
// backend's responsibility.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "Backend.CreateOrder")
	defer span.End()

	res, err := c.post(ctx, "/create-order", "create_order", req)
	if err != nil {
		return "", err
	}

	if res.status >= 400 {
		return "", fmt.Errorf("%w: %s", ErrValidationRejected, backendMessage(res.body))
	}

	var parsed createOrderResponse
	if err := json.Unmarshal(res.body, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed create-order response: %v", ErrBackendUnavailable, err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("%w: %s", ErrValidationRejected, parsed.Message)
	}

	orderID := parsed.OrderID
	if orderID == "" {
		orderID = parsed.Order.ID
	}
	if orderID == "" {
		return "", fmt.Errorf("%w: create-order response missing order id", ErrBackendUnavailable)
	}

	c.logger.Info("Order reserved", zap.String("order_id", orderID))
	return orderID, nil
}

type verifyPaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyPayment submits the gateway's result triple for cryptographic
// verification and order finalization.
func (c *Client) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) error {
	ctx, span := util.StartSpan(ctx, "Backend.VerifyPayment")
	defer span.End()

	res, err := c.post(ctx, "/verify-payment", "verify_payment", req)
	if err != nil {
		return err
	}

	if res.status >= 400 {
		return fmt.Errorf("%w: %s", ErrSignatureRejected, backendMessage(res.body))
	}

	var parsed verifyPaymentResponse
	if err := json.Unmarshal(res.body, &parsed); err != nil {
		return fmt.Errorf("%w: malformed verify-payment response: %v", ErrBackendUnavailable, err)
	}
	if !parsed.Success {
		return fmt.Errorf("%w: %s", ErrSignatureRejected, parsed.Message)
	}

	return nil
}

// RecordFailure notifies the backend of a gateway-reported failure for the
// audit trail. Fire-and-forget: it never blocks the caller and never
// surfaces an error.
func (c *Client) RecordFailure(orderID, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		payload := map[string]string{
			"orderId":     orderID,
			"errorReason": reason,
		}
		if _, err := c.post(ctx, "/failed-payment", "failed_payment", payload); err != nil {
			c.logger.Warn("Failed to record payment failure",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}()
}

// post sends a JSON request through the circuit breaker. Transport errors
// and 5xx responses count as breaker failures and map to
// ErrBackendUnavailable; 4xx responses pass through for the caller to
// classify.
func (c *Client) post(ctx context.Context, path, operation string, payload any) (restResult, error) {
	start := time.Now()
	defer func() {
		util.BackendRequestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return restResult{}, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	res, err := c.breaker.Execute(func() (restResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return restResult{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return restResult{}, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return restResult{}, err
		}
		if resp.StatusCode >= 500 {
			return restResult{}, fmt.Errorf("backend returned status %d", resp.StatusCode)
		}
		return restResult{status: resp.StatusCode, body: respBody}, nil
	})
	if err != nil {
		return restResult{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return res, nil
}

func backendMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return "request rejected"
}

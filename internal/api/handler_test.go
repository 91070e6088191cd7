package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"checkout-service/config"
	"checkout-service/internal/backend"
	"checkout-service/internal/catalog"
	"checkout-service/internal/models"
	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	orderID   string
	verifyErr error
}

func (s *stubBackend) CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (string, error) {
	return s.orderID, nil
}

func (s *stubBackend) VerifyPayment(ctx context.Context, req backend.VerifyPaymentRequest) error {
	return s.verifyErr
}

func (s *stubBackend) RecordFailure(orderID, reason string) {}

type stubLoader struct{}

func (stubLoader) EnsureReady(ctx context.Context) error { return nil }
func (stubLoader) Retry(ctx context.Context) error       { return nil }

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver, err := catalog.NewResolver([]models.PricingEntry{
		{PlanID: "class4", DisplayName: "Class 4 Tuition", AmountMinorUnits: 600, Currency: "INR"},
	})
	require.NoError(t, err)

	controller := service.NewCheckoutController(
		resolver,
		&stubBackend{orderID: "ORD1"},
		stubLoader{},
		nil,
		nil,
		config.GatewayConfig{KeyID: "rzp_test_key", Currency: "INR", DisplayName: "Sunrise Coaching Institute"},
		config.BusinessConfig{GatewayWaitSeconds: 600, SessionTTLSeconds: 1800},
	)

	router := gin.New()
	NewHandler(controller).SetupRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	router := testRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/checkout", `{"student_id":"stu-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := body["session"].(map[string]any)
	sessionID := sess["id"].(string)
	assert.Equal(t, models.StepCollecting, sess["step"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/v1/checkout/"+sessionID+"/submit",
		`{"plan_id":"class4","period_label":"June","payer_name":"Asha Verma"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	opts := body["widget_options"].(map[string]any)
	assert.Equal(t, "ORD1", opts["order_id"])
	assert.Equal(t, float64(600), opts["amount"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/v1/checkout/"+sessionID+"/gateway/success",
		`{"razorpay_order_id":"ORD1","razorpay_payment_id":"PAY1","razorpay_signature":"SIG1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sess = body["session"].(map[string]any)
	assert.Equal(t, models.StepSucceeded, sess["step"])
}

func TestSubmitUnknownPlanIsUnprocessable(t *testing.T) {
	router := testRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/v1/checkout", `{"student_id":"stu-1"}`)
	sessionID := body["session"].(map[string]any)["id"].(string)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/checkout/"+sessionID+"/submit",
		`{"plan_id":"class99","period_label":"June","payer_name":"Asha Verma"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	sess := body["session"].(map[string]any)
	assert.Equal(t, models.StepCollecting, sess["step"])
	assert.NotEmpty(t, sess["last_error"])
}

func TestGetUnknownSessionIs404(t *testing.T) {
	router := testRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/checkout/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissAfterSubmitReturnsCollecting(t *testing.T) {
	router := testRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/v1/checkout", `{"student_id":"stu-1"}`)
	sessionID := body["session"].(map[string]any)["id"].(string)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/checkout/"+sessionID+"/submit",
		`{"plan_id":"class4","period_label":"June","payer_name":"Asha Verma"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, router, http.MethodPost, "/api/v1/checkout/"+sessionID+"/gateway/dismiss", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := body["session"].(map[string]any)
	assert.Equal(t, models.StepCollecting, sess["step"])
	_, hasErr := sess["last_error"]
	assert.False(t, hasErr, "dismiss is not an error")
}

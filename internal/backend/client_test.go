package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/create-order", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"success":true,"order":{"id":"ORD1"},"orderId":"ORD1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	orderID, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Amount:    600,
		Month:     "June",
		PlanName:  "Class 4 Tuition",
		StudentID: "stu-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD1", orderID)
}

func TestCreateOrderFallsBackToNestedOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"order":{"id":"ORD2"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	orderID, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 600})
	require.NoError(t, err)
	assert.Equal(t, "ORD2", orderID)
}

func TestCreateOrderValidationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"month is required"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 600})
	require.ErrorIs(t, err, ErrValidationRejected)
	assert.Contains(t, err.Error(), "month is required")
}

func TestCreateOrderBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 600})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestVerifyPaymentSignatureRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify-payment", r.URL.Path)
		w.Write([]byte(`{"success":false,"message":"signature mismatch"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	err := client.VerifyPayment(context.Background(), VerifyPaymentRequest{
		GatewayOrderID:   "ORD1",
		GatewayPaymentID: "PAY1",
		Signature:        "bad",
	})
	require.ErrorIs(t, err, ErrSignatureRejected)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestVerifyPaymentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, time.Second)
	err := client.VerifyPayment(context.Background(), VerifyPaymentRequest{
		GatewayOrderID: "ORD1",
	})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestRecordFailureNeverSurfacesErrors(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/failed-payment", r.URL.Path)
		received <- struct{}{}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	client.RecordFailure("ORD1", "insufficient_funds")

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("failure report never reached the backend")
	}
}

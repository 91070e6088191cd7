package models

import "time"

// Event types
const (
	EventTypeCheckoutStarted = "CHECKOUT_STARTED"
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypePaymentVerified = "PAYMENT_VERIFIED"
	EventTypePaymentFailed   = "PAYMENT_FAILED"
	EventTypeCheckoutExpired = "CHECKOUT_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutStartedEvent published when a session is opened
type CheckoutStartedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
}

// OrderCreatedEvent published when the backend reserves a pending order
type OrderCreatedEvent struct {
	BaseEvent
	SessionID   string `json:"session_id"`
	OrderID     string `json:"order_id"`
	PlanID      string `json:"plan_id"`
	PeriodLabel string `json:"period_label"`
	Amount      int64  `json:"amount"`
}

// PaymentVerifiedEvent published when verification finalizes an order
type PaymentVerifiedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// PaymentFailedEvent published when the gateway reports a declined payment
// or verification rejects the payment artifact
type PaymentFailedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	Reason    string `json:"reason"`
}

// CheckoutExpiredEvent published when the reaper times a session out
type CheckoutExpiredEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id,omitempty"`
	Step      string `json:"step"`
}

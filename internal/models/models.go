package models

import "time"

// PricingEntry is one row of the static fee table.
type PricingEntry struct {
	PlanID           string `json:"plan_id"`
	DisplayName      string `json:"display_name"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

// Checkout steps
const (
	StepCollecting      = "COLLECTING"
	StepOrderPending    = "ORDER_PENDING"
	StepAwaitingGateway = "AWAITING_GATEWAY"
	StepVerifying       = "VERIFYING"
	StepSucceeded       = "SUCCEEDED"
	StepFailed          = "FAILED"
)

// Session is the client-local state of a single checkout attempt. It is
// owned and mutated only by the checkout controller.
type Session struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	StudentRef       string    `json:"student_ref,omitempty"`
	PlanID           string    `json:"plan_id,omitempty"`
	PeriodLabel      string    `json:"period_label,omitempty"`
	PayerName        string    `json:"payer_name,omitempty"`
	PayerEmail       string    `json:"payer_email,omitempty"`
	PayerPhone       string    `json:"payer_phone,omitempty"`
	AmountMinorUnits int64     `json:"amount_minor_units,omitempty"`
	Step             string    `json:"step"`
	OrderID          string    `json:"order_id,omitempty"`
	IdempotencyKey   string    `json:"idempotency_key,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Terminal reports whether the session can accept no further transitions.
func (s *Session) Terminal() bool {
	return s.Step == StepSucceeded || s.Step == StepFailed
}

// GatewayResult is the payload the external widget delivers on a completed
// payment. Opaque to this service except for the order-id match guard; the
// triple is forwarded to the backend for signature verification.
type GatewayResult struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// AuditRecord is one journaled checkout event.
type AuditRecord struct {
	ID        int64     `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	EventType string    `db:"event_type" json:"event_type"`
	SessionID string    `db:"session_id" json:"session_id"`
	OrderID   string    `db:"order_id" json:"order_id,omitempty"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

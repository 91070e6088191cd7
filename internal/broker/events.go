package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"checkout-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing checkout lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// PublishCheckoutStarted publishes CheckoutStarted event
func (ep *EventPublisher) PublishCheckoutStarted(ctx context.Context, event *models.CheckoutStartedEvent) error {
	return ep.producer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// PublishPaymentVerified publishes PaymentVerified event
func (ep *EventPublisher) PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error {
	return ep.producer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.producer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// PublishCheckoutExpired publishes CheckoutExpired event
func (ep *EventPublisher) PublishCheckoutExpired(ctx context.Context, event *models.CheckoutExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// AuditFunc persists one decoded event.
type AuditFunc func(ctx context.Context, record *models.AuditRecord) error

// EventHandler decodes checkout events and hands them to the audit sink.
type EventHandler struct {
	audit AuditFunc
}

// NewEventHandler creates a new event handler
func NewEventHandler(audit AuditFunc) *EventHandler {
	return &EventHandler{audit: audit}
}

// HandleMessage decodes a message into an audit record
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	record := &models.AuditRecord{
		EventID:   baseEvent.EventID,
		EventType: baseEvent.EventType,
		CreatedAt: baseEvent.Timestamp,
	}

	switch baseEvent.EventType {
	case models.EventTypeCheckoutStarted:
		var event models.CheckoutStartedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal CheckoutStarted event: %w", err)
		}
		record.SessionID = event.SessionID
		record.Detail = event.StudentID

	case models.EventTypeOrderCreated:
		var event models.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
		}
		record.SessionID = event.SessionID
		record.OrderID = event.OrderID
		record.Detail = fmt.Sprintf("%s %s amount=%d", event.PlanID, event.PeriodLabel, event.Amount)

	case models.EventTypePaymentVerified:
		var event models.PaymentVerifiedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal PaymentVerified event: %w", err)
		}
		record.SessionID = event.SessionID
		record.OrderID = event.OrderID
		record.Detail = event.PaymentID

	case models.EventTypePaymentFailed:
		var event models.PaymentFailedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal PaymentFailed event: %w", err)
		}
		record.SessionID = event.SessionID
		record.OrderID = event.OrderID
		record.Detail = event.Reason

	case models.EventTypeCheckoutExpired:
		var event models.CheckoutExpiredEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal CheckoutExpired event: %w", err)
		}
		record.SessionID = event.SessionID
		record.OrderID = event.OrderID
		record.Detail = event.Step

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
		return nil
	}

	return eh.audit(ctx, record)
}

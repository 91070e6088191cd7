package service

import (
	"context"
	"time"

	"checkout-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event publication is best-effort: the audit trail must never stall or
// fail a checkout.

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func (cc *CheckoutController) publishStarted(ctx context.Context, sessionID, studentID string) {
	if cc.events == nil {
		return
	}
	event := &models.CheckoutStartedEvent{
		BaseEvent: baseEvent(models.EventTypeCheckoutStarted),
		SessionID: sessionID,
		StudentID: studentID,
	}
	if err := cc.events.PublishCheckoutStarted(ctx, event); err != nil {
		cc.logger.Error("Failed to publish CheckoutStarted event", zap.Error(err))
	}
}

func (cc *CheckoutController) publishOrderCreated(ctx context.Context, sess *session, amount int64) {
	if cc.events == nil {
		return
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:   baseEvent(models.EventTypeOrderCreated),
		SessionID:   sess.ID,
		OrderID:     sess.OrderID,
		PlanID:      sess.PlanID,
		PeriodLabel: sess.PeriodLabel,
		Amount:      amount,
	}
	if err := cc.events.PublishOrderCreated(ctx, event); err != nil {
		cc.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (cc *CheckoutController) publishVerified(ctx context.Context, sess *session, paymentID string) {
	if cc.events == nil {
		return
	}
	event := &models.PaymentVerifiedEvent{
		BaseEvent: baseEvent(models.EventTypePaymentVerified),
		SessionID: sess.ID,
		OrderID:   sess.OrderID,
		PaymentID: paymentID,
		Amount:    sess.AmountMinorUnits,
	}
	if err := cc.events.PublishPaymentVerified(ctx, event); err != nil {
		cc.logger.Error("Failed to publish PaymentVerified event", zap.Error(err))
	}
}

func (cc *CheckoutController) publishPaymentFailed(ctx context.Context, sess *session, reason string) {
	if cc.events == nil {
		return
	}
	event := &models.PaymentFailedEvent{
		BaseEvent: baseEvent(models.EventTypePaymentFailed),
		SessionID: sess.ID,
		OrderID:   sess.OrderID,
		Reason:    reason,
	}
	if err := cc.events.PublishPaymentFailed(ctx, event); err != nil {
		cc.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

func (cc *CheckoutController) publishExpired(ctx context.Context, sessionID, orderID, step string) {
	if cc.events == nil {
		return
	}
	event := &models.CheckoutExpiredEvent{
		BaseEvent: baseEvent(models.EventTypeCheckoutExpired),
		SessionID: sessionID,
		OrderID:   orderID,
		Step:      step,
	}
	if err := cc.events.PublishCheckoutExpired(ctx, event); err != nil {
		cc.logger.Error("Failed to publish CheckoutExpired event", zap.Error(err))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"checkout-service/config"
	"checkout-service/internal/backend"
	"checkout-service/internal/catalog"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidStep is returned when an operation does not apply to the
	// session's current step.
	ErrInvalidStep = errors.New("operation not allowed in current step")

	// ErrMissingFields is returned when plan, period or payer name is
	// absent on submit.
	ErrMissingFields = errors.New("plan, billing month and payer name are required")

	// ErrOrderMismatch is returned when a gateway result references a
	// different order than the session's pending one. No backend call is
	// made for such results.
	ErrOrderMismatch = errors.New("gateway result does not match pending order")
)

// Backend is the slice of the institute backend the controller needs.
type Backend interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (string, error)
	VerifyPayment(ctx context.Context, req backend.VerifyPaymentRequest) error
	RecordFailure(orderID, reason string)
}

// GatewayLoader readies the external checkout library.
type GatewayLoader interface {
	EnsureReady(ctx context.Context) error
	Retry(ctx context.Context) error
}

// Events receives best-effort lifecycle notifications. Publish errors are
// logged, never propagated into the state machine.
type Events interface {
	PublishCheckoutStarted(ctx context.Context, event *models.CheckoutStartedEvent) error
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishCheckoutExpired(ctx context.Context, event *models.CheckoutExpiredEvent) error
}

// IdempotencyKeys hands out a stable key per checkout attempt so a resubmit
// after a transient failure carries the same token to the backend.
type IdempotencyKeys interface {
	GetOrCreate(ctx context.Context, scope, fresh string, ttl time.Duration) (string, error)
}

// CheckoutController owns every CheckoutSession and is the only component
// that transitions them. One instance serves the whole process.
type CheckoutController struct {
	catalog *catalog.Resolver
	backend Backend
	loader  GatewayLoader
	events  Events
	idem    IdempotencyKeys
	gwCfg   config.GatewayConfig
	logger  *zap.Logger

	gatewayWait time.Duration
	sessionTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewCheckoutController creates the controller. idem may be nil; keys are
// then generated fresh per submit.
func NewCheckoutController(
	resolver *catalog.Resolver,
	backendClient Backend,
	loader GatewayLoader,
	events Events,
	idem IdempotencyKeys,
	gwCfg config.GatewayConfig,
	business config.BusinessConfig,
) *CheckoutController {
	return &CheckoutController{
		catalog:     resolver,
		backend:     backendClient,
		loader:      loader,
		events:      events,
		idem:        idem,
		gwCfg:       gwCfg,
		logger:      util.GetLogger(),
		gatewayWait: time.Duration(business.GatewayWaitSeconds) * time.Second,
		sessionTTL:  time.Duration(business.SessionTTLSeconds) * time.Second,
		sessions:    make(map[string]*session),
	}
}

// SubmitInput carries the payer's checkout form.
type SubmitInput struct {
	PlanID      string `json:"plan_id" binding:"required"`
	PeriodLabel string `json:"period_label" binding:"required"`
	PayerName   string `json:"payer_name" binding:"required"`
	PayerEmail  string `json:"payer_email,omitempty"`
	PayerPhone  string `json:"payer_phone,omitempty"`
}

// Submit validates the form, reserves a pending order on the backend and,
// once the gateway library is ready, returns the widget configuration. The
// price is re-derived from the catalog here, immediately before the order
// call; a previously displayed amount is never trusted.
func (cc *CheckoutController) Submit(ctx context.Context, sessionID string, in SubmitInput) (*gateway.Options, *models.Session, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutController.Submit")
	defer span.End()

	sess, err := cc.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Terminal() {
		return nil, sess.snapshot(), ErrSessionTerminal
	}
	if sess.Step != models.StepCollecting {
		return nil, sess.snapshot(), fmt.Errorf("%w: %s", ErrInvalidStep, sess.Step)
	}

	if strings.TrimSpace(in.PlanID) == "" || strings.TrimSpace(in.PeriodLabel) == "" || strings.TrimSpace(in.PayerName) == "" {
		sess.LastError = ErrMissingFields.Error()
		sess.touch()
		return nil, sess.snapshot(), ErrMissingFields
	}

	entry, err := cc.catalog.PriceFor(in.PlanID)
	if err != nil {
		sess.LastError = "selected plan is not available"
		sess.touch()
		util.OrdersFailedTotal.WithLabelValues("plan_not_found").Inc()
		return nil, sess.snapshot(), err
	}

	// Forward transition: the previous attempt's error is cleared now.
	sess.Step = models.StepOrderPending
	sess.LastError = ""
	sess.PlanID = entry.PlanID
	sess.PeriodLabel = in.PeriodLabel
	sess.PayerName = in.PayerName
	sess.PayerEmail = in.PayerEmail
	sess.PayerPhone = in.PayerPhone
	sess.AmountMinorUnits = entry.AmountMinorUnits
	sess.IdempotencyKey = cc.idempotencyKey(ctx, sess.ID, entry.PlanID, in.PeriodLabel)
	sess.touch()

	orderID, err := cc.backend.CreateOrder(ctx, backend.CreateOrderRequest{
		Amount:         entry.AmountMinorUnits,
		Description:    fmt.Sprintf("%s fee for %s", entry.DisplayName, in.PeriodLabel),
		Month:          in.PeriodLabel,
		PlanName:       entry.DisplayName,
		StudentID:      sess.StudentID,
		StudentRef:     sess.StudentRef,
		IdempotencyKey: sess.IdempotencyKey,
	})
	if err != nil {
		sess.Step = models.StepCollecting
		sess.LastError = orderFailureMessage(err)
		sess.touch()
		util.OrdersFailedTotal.WithLabelValues(orderFailureReason(err)).Inc()
		cc.logger.Warn("Order creation failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return nil, sess.snapshot(), err
	}

	sess.OrderID = orderID
	sess.Step = models.StepAwaitingGateway
	sess.touch()
	util.OrdersCreatedTotal.Inc()
	cc.logger.Info("Order reserved, awaiting gateway",
		zap.String("session_id", sess.ID),
		zap.String("order_id", orderID),
		zap.Int64("amount", entry.AmountMinorUnits))
	cc.publishOrderCreated(ctx, sess, entry.AmountMinorUnits)

	// Retry clears a cached load failure, so each submit is also the
	// user-driven retry path for a previously broken gateway load.
	if err := cc.loader.Retry(ctx); err != nil {
		sess.Step = models.StepCollecting
		sess.LastError = "payment service is unavailable right now, please try again"
		sess.touch()
		cc.logger.Warn("Gateway library not ready, widget not shown",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return nil, sess.snapshot(), err
	}

	sess.gate = gateway.NewOutcomeGate()
	sess.gatewayDeadline = time.Now().Add(cc.gatewayWait)

	opts := &gateway.Options{
		Key:         cc.gwCfg.KeyID,
		Amount:      entry.AmountMinorUnits,
		Currency:    entry.Currency,
		Name:        cc.gwCfg.DisplayName,
		Description: fmt.Sprintf("%s — %s", entry.DisplayName, in.PeriodLabel),
		OrderID:     orderID,
		Prefill: gateway.Prefill{
			Name:    in.PayerName,
			Email:   in.PayerEmail,
			Contact: in.PayerPhone,
		},
		Notes: map[string]string{
			"session_id": sess.ID,
			"plan_id":    entry.PlanID,
			"month":      in.PeriodLabel,
			"student_id": sess.StudentID,
		},
		Theme: gateway.Theme{Color: cc.gwCfg.ThemeColor},
	}
	return opts, sess.snapshot(), nil
}

// HandleGatewaySuccess consumes the widget's success callback. The result
// must reference the session's pending order; anything else is rejected
// locally without a verification call. Results arriving after the session
// finished, or after another outcome already won the invocation, are
// ignored.
func (cc *CheckoutController) HandleGatewaySuccess(ctx context.Context, sessionID string, result models.GatewayResult) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutController.HandleGatewaySuccess")
	defer span.End()

	sess, err := cc.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Terminal() {
		cc.logger.Info("Gateway result after terminal step ignored",
			zap.String("session_id", sess.ID),
			zap.String("step", sess.Step))
		return sess.snapshot(), nil
	}
	if sess.Step != models.StepAwaitingGateway {
		return sess.snapshot(), fmt.Errorf("%w: %s", ErrInvalidStep, sess.Step)
	}
	if result.OrderID != sess.OrderID {
		cc.logger.Warn("Gateway result for foreign order rejected",
			zap.String("session_id", sess.ID),
			zap.String("pending_order", sess.OrderID),
			zap.String("result_order", result.OrderID))
		return sess.snapshot(), ErrOrderMismatch
	}
	if sess.gate == nil || !sess.gate.Claim(gateway.OutcomeSuccess) {
		cc.logger.Info("Duplicate gateway outcome dropped",
			zap.String("session_id", sess.ID))
		return sess.snapshot(), nil
	}

	sess.Step = models.StepVerifying
	sess.LastError = ""
	sess.touch()

	planName := sess.PlanID
	if entry, perr := cc.catalog.PriceFor(sess.PlanID); perr == nil {
		planName = entry.DisplayName
	}

	err = cc.backend.VerifyPayment(ctx, backend.VerifyPaymentRequest{
		GatewayOrderID:   result.OrderID,
		GatewayPaymentID: result.PaymentID,
		Signature:        result.Signature,
		Amount:           sess.AmountMinorUnits,
		Description:      fmt.Sprintf("%s fee for %s", planName, sess.PeriodLabel),
		Month:            sess.PeriodLabel,
		PlanName:         planName,
		StudentID:        sess.StudentID,
	})
	switch {
	case err == nil:
		sess.Step = models.StepSucceeded
		sess.LastError = ""
		sess.touch()
		util.PaymentsVerifiedTotal.Inc()
		util.CheckoutsSucceededTotal.Inc()
		cc.logger.Info("Payment verified",
			zap.String("session_id", sess.ID),
			zap.String("order_id", sess.OrderID),
			zap.String("payment_id", result.PaymentID))
		cc.publishVerified(ctx, sess, result.PaymentID)
		return sess.snapshot(), nil

	case errors.Is(err, backend.ErrSignatureRejected):
		sess.Step = models.StepCollecting
		sess.LastError = "payment could not be verified, please try again"
		sess.touch()
		util.VerificationsFailedTotal.WithLabelValues("signature_rejected").Inc()
		cc.logger.Warn("Verification rejected",
			zap.String("session_id", sess.ID),
			zap.String("order_id", sess.OrderID),
			zap.Error(err))
		cc.publishPaymentFailed(ctx, sess, "verification_rejected")
		return sess.snapshot(), err

	default:
		// The gateway reported success but the backend never confirmed
		// it. Money may have moved; a client-side retry could
		// double-submit the verification, so this is terminal.
		sess.Step = models.StepFailed
		sess.LastError = "your payment may have been charged but could not be confirmed; please contact support, do not retry"
		sess.touch()
		util.VerificationsFailedTotal.WithLabelValues("backend_unreachable").Inc()
		cc.logger.Error("Verification unreachable after gateway success",
			zap.String("session_id", sess.ID),
			zap.String("order_id", sess.OrderID),
			zap.Error(err))
		cc.publishPaymentFailed(ctx, sess, "verification_unreachable")
		return sess.snapshot(), err
	}
}

// HandleGatewayFailure consumes the widget's failure callback: back to
// Collecting with the gateway's reason, and exactly one best-effort failure
// report to the backend.
func (cc *CheckoutController) HandleGatewayFailure(ctx context.Context, sessionID, reason string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutController.HandleGatewayFailure")
	defer span.End()

	sess, err := cc.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Terminal() || sess.Step != models.StepAwaitingGateway {
		return sess.snapshot(), nil
	}
	if sess.gate == nil || !sess.gate.Claim(gateway.OutcomeFailure) {
		return sess.snapshot(), nil
	}

	if reason == "" {
		reason = "payment failed"
	}
	sess.Step = models.StepCollecting
	sess.LastError = reason
	sess.touch()
	util.GatewayFailuresTotal.Inc()
	cc.logger.Warn("Gateway reported payment failure",
		zap.String("session_id", sess.ID),
		zap.String("order_id", sess.OrderID),
		zap.String("reason", reason))

	cc.backend.RecordFailure(sess.OrderID, reason)
	cc.publishPaymentFailed(ctx, sess, reason)
	return sess.snapshot(), nil
}

// HandleDismiss consumes the widget's dismiss callback. User cancel is not
// an error: no LastError is set and the order stays pending server-side for
// a later attempt.
func (cc *CheckoutController) HandleDismiss(ctx context.Context, sessionID string) (*models.Session, error) {
	_, span := util.StartSpan(ctx, "CheckoutController.HandleDismiss")
	defer span.End()

	sess, err := cc.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Terminal() || sess.Step != models.StepAwaitingGateway {
		return sess.snapshot(), nil
	}
	if sess.gate == nil || !sess.gate.Claim(gateway.OutcomeDismiss) {
		return sess.snapshot(), nil
	}

	sess.Step = models.StepCollecting
	sess.touch()
	util.GatewayDismissalsTotal.Inc()
	cc.logger.Info("Checkout widget dismissed by payer",
		zap.String("session_id", sess.ID),
		zap.String("order_id", sess.OrderID))
	return sess.snapshot(), nil
}

func (cc *CheckoutController) idempotencyKey(ctx context.Context, sessionID, planID, period string) string {
	fresh := uuid.New().String()
	if cc.idem == nil {
		return fresh
	}
	scope := fmt.Sprintf("%s|%s|%s", sessionID, planID, period)
	key, err := cc.idem.GetOrCreate(ctx, scope, fresh, cc.sessionTTL)
	if err != nil {
		cc.logger.Warn("Idempotency key store unavailable, using fresh key", zap.Error(err))
		return fresh
	}
	return key
}

func orderFailureMessage(err error) string {
	if errors.Is(err, backend.ErrValidationRejected) {
		return "the backend rejected the order details, please review and resubmit"
	}
	return "could not reach the fee service, please try again"
}

func orderFailureReason(err error) string {
	if errors.Is(err, backend.ErrValidationRejected) {
		return "validation_rejected"
	}
	return "backend_unavailable"
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for unknown or discarded sessions.
	ErrSessionNotFound = errors.New("checkout session not found")

	// ErrSessionTerminal is returned when an operation targets a session
	// that already reached Succeeded or Failed.
	ErrSessionTerminal = errors.New("checkout session already finished")
)

// session pairs the externally visible state with the per-invocation
// outcome gate. The embedded mutex serializes every transition, so each
// session behaves as the single-threaded state machine it models.
type session struct {
	mu sync.Mutex
	models.Session

	gate            *gateway.OutcomeGate
	gatewayDeadline time.Time
}

// snapshot returns a copy safe to hand outside the lock.
func (s *session) snapshot() *models.Session {
	copied := s.Session
	return &copied
}

func (s *session) touch() {
	s.UpdatedAt = time.Now()
}

// Begin opens a fresh checkout session in the Collecting step.
func (cc *CheckoutController) Begin(ctx context.Context, studentID, studentRef string) (*models.Session, error) {
	_, span := util.StartSpan(ctx, "CheckoutController.Begin")
	defer span.End()

	now := time.Now()
	sess := &session{
		Session: models.Session{
			ID:         uuid.New().String(),
			StudentID:  studentID,
			StudentRef: studentRef,
			Step:       models.StepCollecting,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	cc.mu.Lock()
	cc.sessions[sess.ID] = sess
	cc.mu.Unlock()

	util.CheckoutsStartedTotal.Inc()
	cc.logger.Info("Checkout session opened",
		zap.String("session_id", sess.ID),
		zap.String("student_id", studentID))

	cc.publishStarted(ctx, sess.ID, studentID)
	return sess.snapshot(), nil
}

// Get returns a point-in-time view of a session.
func (cc *CheckoutController) Get(sessionID string) (*models.Session, error) {
	sess, err := cc.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

func (cc *CheckoutController) lookup(sessionID string) (*session, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	sess, ok := cc.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ExpireStale times out sessions stuck waiting for the widget and discards
// sessions idle past the TTL. Called periodically by the reaper worker.
func (cc *CheckoutController) ExpireStale(ctx context.Context, now time.Time) (expired, discarded int) {
	cc.mu.Lock()
	candidates := make([]*session, 0, len(cc.sessions))
	for _, sess := range cc.sessions {
		candidates = append(candidates, sess)
	}
	cc.mu.Unlock()

	for _, sess := range candidates {
		sess.mu.Lock()
		switch {
		case sess.Step == models.StepAwaitingGateway && now.After(sess.gatewayDeadline):
			// The widget never called back. Claim the gate so a
			// straggler outcome cannot transition the session later.
			if sess.gate != nil {
				sess.gate.Claim(gateway.OutcomeDismiss)
			}
			sess.Step = models.StepCollecting
			sess.LastError = "payment window timed out, please try again"
			sess.touch()
			expired++
			util.CheckoutsExpiredTotal.Inc()
			cc.logger.Warn("Checkout session timed out awaiting gateway",
				zap.String("session_id", sess.ID),
				zap.String("order_id", sess.OrderID))
			cc.publishExpired(ctx, sess.ID, sess.OrderID, models.StepAwaitingGateway)

		case now.Sub(sess.UpdatedAt) > cc.sessionTTL:
			cc.mu.Lock()
			delete(cc.sessions, sess.ID)
			cc.mu.Unlock()
			discarded++
		}
		sess.mu.Unlock()
	}

	return expired, discarded
}

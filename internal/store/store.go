package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Store is the orchestrator's own audit journal. It records checkout
// lifecycle events for reconciliation; the institute backend's order
// persistence is a separate system reached only over its API.
type Store struct {
	db *sqlx.DB
}

// NewStore connects to the journal database and ensures the schema.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to ensure journal schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendAudit journals one checkout event. Replays of the same event id are
// dropped silently.
func (s *Store) AppendAudit(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO checkout_audit (event_id, event_type, session_id, order_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		record.EventID, record.EventType, record.SessionID, record.OrderID, record.Detail, record.CreatedAt)
	return err
}

// AuditTrail returns a session's journaled events, oldest first.
func (s *Store) AuditTrail(ctx context.Context, sessionID string) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM checkout_audit WHERE session_id = $1 ORDER BY id", sessionID)
	return records, err
}

// AuditTrailByOrder returns the journaled events referencing an order.
func (s *Store) AuditTrailByOrder(ctx context.Context, orderID string) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM checkout_audit WHERE order_id = $1 ORDER BY id", orderID)
	return records, err
}

// LastAudit returns a session's most recent event, or nil.
func (s *Store) LastAudit(ctx context.Context, sessionID string) (*models.AuditRecord, error) {
	var record models.AuditRecord
	err := s.db.GetContext(ctx, &record,
		"SELECT * FROM checkout_audit WHERE session_id = $1 ORDER BY id DESC LIMIT 1", sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

package worker

import (
	"context"
	"log"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
)

// AuditWorker consumes checkout events and journals them with event-id
// deduplication.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, journal *store.Store) *AuditWorker {
	eventHandler := broker.NewEventHandler(func(ctx context.Context, record *models.AuditRecord) error {
		processed, err := journal.IsEventProcessed(ctx, record.EventID)
		if err != nil {
			return err
		}
		if processed {
			return nil
		}

		if err := journal.AppendAudit(ctx, record); err != nil {
			return err
		}
		return journal.MarkEventProcessed(ctx, record.EventID, record.EventType)
	})

	return &AuditWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	log.Println("Starting audit worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	log.Println("Stopping audit worker...")
	return w.consumer.Close()
}

// ReaperWorker periodically expires sessions stuck waiting for the widget
// and discards idle ones.
type ReaperWorker struct {
	controller *service.CheckoutController
	interval   time.Duration
}

// NewReaperWorker creates a new reaper worker
func NewReaperWorker(controller *service.CheckoutController, interval time.Duration) *ReaperWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReaperWorker{controller: controller, interval: interval}
}

// Start runs the reaper until the context is cancelled.
func (rw *ReaperWorker) Start(ctx context.Context) error {
	log.Println("Starting session reaper...")

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reaper context cancelled, stopping...")
			return ctx.Err()
		case now := <-ticker.C:
			expired, discarded := rw.controller.ExpireStale(ctx, now)
			if expired > 0 || discarded > 0 {
				log.Printf("Session reaper: expired=%d discarded=%d", expired, discarded)
			}
		}
	}
}

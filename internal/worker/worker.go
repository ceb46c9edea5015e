// Package worker provides async transaction processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

// Worker consumes ingested transactions from the bus, runs them through
// the engine and publishes the assessment. Alerts get their own topic so
// downstream consumers can subscribe to just the interesting traffic.
type Worker struct {
	bus    domain.EventBus
	engine *engine.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, eng *engine.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the ingest topic and begins processing.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicTransactionIngested)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	atx, alert, err := w.engine.Process(ctx, &tx, time.Now().UTC())
	if err != nil {
		// Malformed input is a producer problem, not a worker failure.
		if errors.Is(err, domain.ErrValidation) {
			slog.Warn("dropping invalid transaction",
				"message_id", msg.ID,
				"error", err,
			)
			return nil
		}
		slog.Error("transaction processing failed",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	assessed, _ := json.Marshal(atx)
	if err := w.bus.Publish(ctx, domain.TopicTransactionAssessed, assessed); err != nil {
		slog.Error("failed to publish assessment",
			"tx_id", atx.ID,
			"error", err,
		)
	}

	if alert != nil {
		payload, _ := json.Marshal(alert)
		if err := w.bus.Publish(ctx, domain.TopicAlertRaised, payload); err != nil {
			slog.Error("failed to publish alert",
				"tx_id", atx.ID,
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}

	slog.Info("transaction processed",
		"tx_id", atx.ID,
		"score", atx.Assessment.Score,
		"level", atx.Assessment.Level,
		"alerted", alert != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

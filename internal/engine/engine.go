// Package engine is the single entry point for transaction assessment: it
// validates, scores, updates every store and returns the enriched result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/kestrel/internal/alerts"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/patterns"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// Engine orchestrates the assessment pipeline. Process calls are serialized
// so store updates for one transaction complete before the next begins;
// snapshot reads go straight to the stores and may run concurrently with
// ingestion.
type Engine struct {
	mu sync.Mutex // serializes Process

	scorer     *rules.Engine
	ledger     *ledger.Ledger
	aggregator *patterns.Aggregator
	alerts     *alerts.Manager

	processed atomic.Int64
}

// New wires the façade over its component stores.
func New(scorer *rules.Engine, ldg *ledger.Ledger, agg *patterns.Aggregator, mgr *alerts.Manager) *Engine {
	return &Engine{
		scorer:     scorer,
		ledger:     ldg,
		aggregator: agg,
		alerts:     mgr,
	}
}

// Process assesses one transaction as of now. Orchestration order is fixed:
// score (recording velocity as a side effect), insert into the ledger,
// increment pattern counters, then conditionally raise an alert — so by the
// time an alert references a transaction it is already visible in the
// ledger. A validation or invariant failure leaves every store untouched.
func (e *Engine) Process(ctx context.Context, tx *domain.Transaction, now time.Time) (*domain.AssessedTransaction, *domain.Alert, error) {
	if err := Validate(tx); err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	assessment, err := e.scorer.Evaluate(ctx, tx, now)
	if err != nil {
		return nil, nil, fmt.Errorf("scoring failed: %w", err)
	}

	// Catch scorer bugs before anything is committed, so a violation never
	// leaves partial state behind.
	if err := verify(assessment); err != nil {
		slog.Error("dropping transaction after invariant violation",
			"tx_id", tx.ID,
			"error", err,
		)
		return nil, nil, err
	}

	atx := &domain.AssessedTransaction{
		Transaction: *tx,
		Assessment:  assessment,
	}

	e.ledger.Insert(atx)
	if err := e.aggregator.Increment(assessment.Patterns); err != nil {
		// Unreachable after verify; treated as the same bug class.
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvariant, err)
	}
	alert := e.alerts.MaybeAlert(atx)

	e.processed.Add(1)
	return atx, alert, nil
}

// Validate rejects malformed transactions before scoring.
func Validate(tx *domain.Transaction) error {
	switch {
	case tx == nil:
		return fmt.Errorf("%w: transaction is required", domain.ErrValidation)
	case tx.ID == "":
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	case tx.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", domain.ErrValidation)
	case tx.Amount < 0:
		return fmt.Errorf("%w: amount must be non-negative", domain.ErrValidation)
	case !domain.ValidCurrency(tx.Currency):
		return fmt.Errorf("%w: unknown currency %q", domain.ErrValidation, tx.Currency)
	case !tx.Method.Valid():
		return fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, tx.Method)
	case tx.Sender.AccountID == "":
		return fmt.Errorf("%w: sender account is required", domain.ErrValidation)
	case tx.Receiver.AccountID == "":
		return fmt.Errorf("%w: receiver account is required", domain.ErrValidation)
	}
	return nil
}

// verify checks the scorer's output invariants: the score stays in bounds,
// the level is the breakpoint bucket for the score, and every pattern tag is
// in the catalog.
func verify(a domain.RiskAssessment) error {
	if a.Score < domain.ScoreMin || a.Score > domain.ScoreMax {
		return fmt.Errorf("%w: score %d outside [%d,%d]",
			domain.ErrInvariant, a.Score, domain.ScoreMin, domain.ScoreMax)
	}
	if a.Level != domain.LevelForScore(a.Score) {
		return fmt.Errorf("%w: level %s does not match score %d",
			domain.ErrInvariant, a.Level, a.Score)
	}
	for _, p := range a.Patterns {
		if !p.Known() {
			return fmt.Errorf("%w: %q", domain.ErrUnknownPattern, p)
		}
	}
	return nil
}

// Processed returns the number of successfully assessed transactions.
func (e *Engine) Processed() int64 {
	return e.processed.Load()
}

// ActiveAlerts returns unacknowledged alerts, most-recent-first.
func (e *Engine) ActiveAlerts() []domain.Alert {
	return e.alerts.Active()
}

// Acknowledge marks the most recent unacknowledged alert for the
// transaction as acknowledged. No-op if none exists.
func (e *Engine) Acknowledge(transactionID string) bool {
	return e.alerts.Acknowledge(transactionID)
}

// PatternCounts returns the pattern counter snapshot.
func (e *Engine) PatternCounts() map[domain.Pattern]int64 {
	return e.aggregator.Snapshot()
}

// QueryLedger returns ledger entries matching the filter.
func (e *Engine) QueryLedger(f ledger.Filter) []domain.AssessedTransaction {
	return e.ledger.Query(f)
}

// RecentTransactions returns the n most recently processed entries.
func (e *Engine) RecentTransactions(n int) []domain.AssessedTransaction {
	return e.ledger.Recent(n)
}

// ExportReport builds the SAR-style export over the current ledger.
func (e *Engine) ExportReport(now time.Time) *ledger.Report {
	return e.ledger.ExportReport(now)
}

// Package alerts manages the bounded alert ledger and acknowledgment state.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	// RetentionCap bounds the alert ledger; the oldest alert is evicted
	// once the cap is exceeded.
	RetentionCap = 50

	// ActiveDisplayCap bounds the active-alert view returned to consumers.
	ActiveDisplayCap = 10
)

// Manager raises alerts for high-scoring transactions and tracks their
// acknowledgment state. Safe for concurrent use by the ingest path and
// dashboard readers.
type Manager struct {
	mu     sync.RWMutex
	alerts []*domain.Alert // most-recent-first
	now    func() time.Time
}

// NewManager creates an alert manager.
func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// MaybeAlert raises an alert iff the transaction's score crosses the
// alerting threshold; otherwise it returns nil. Alert type and priority are
// mapped deterministically from the dominant matched pattern so identical
// assessments always yield identical alerts.
func (m *Manager) MaybeAlert(atx *domain.AssessedTransaction) *domain.Alert {
	if !atx.Assessment.ShouldAlert() {
		return nil
	}

	alertType, priority := classify(atx.Assessment.Patterns)

	alert := &domain.Alert{
		ID:            uuid.New().String(),
		Timestamp:     m.now().UTC(),
		TransactionID: atx.ID,
		Type:          alertType,
		Priority:      priority,
		Description: fmt.Sprintf("Transaction %s scored %d (%s)",
			atx.ID, atx.Assessment.Score, atx.Assessment.Level),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = append([]*domain.Alert{alert}, m.alerts...)
	if len(m.alerts) > RetentionCap {
		m.alerts = m.alerts[:RetentionCap]
	}

	out := *alert
	return &out
}

// classify maps the dominant matched pattern to an alert type and priority.
// Dominance follows a fixed precedence; a high score with no matched pattern
// (large amounts, crypto, custom rules) falls through to Threshold Exceeded.
func classify(patterns []domain.Pattern) (domain.AlertType, domain.AlertPriority) {
	dominant := dominantPattern(patterns)
	switch dominant {
	case domain.PatternStructuring, domain.PatternLayering, domain.PatternSmurfing:
		return domain.AlertSuspiciousPattern, domain.PriorityHigh
	case domain.PatternVelocity:
		return domain.AlertVelocity, domain.PriorityHigh
	case domain.PatternGeographicRisk:
		return domain.AlertGeographicRisk, domain.PriorityMedium
	case domain.PatternLargeCash, domain.PatternRoundAmount:
		return domain.AlertCustomerRisk, domain.PriorityHigh
	default:
		return domain.AlertThresholdExceeded, domain.PriorityMedium
	}
}

// patternPrecedence orders catalog patterns by dominance for alert
// classification, strongest first.
var patternPrecedence = []domain.Pattern{
	domain.PatternStructuring,
	domain.PatternLayering,
	domain.PatternSmurfing,
	domain.PatternVelocity,
	domain.PatternGeographicRisk,
	domain.PatternLargeCash,
	domain.PatternRoundAmount,
}

func dominantPattern(patterns []domain.Pattern) domain.Pattern {
	for _, candidate := range patternPrecedence {
		for _, p := range patterns {
			if p == candidate {
				return candidate
			}
		}
	}
	return ""
}

// Acknowledge marks the most recent unacknowledged alert for the given
// transaction as acknowledged. It reports whether an alert was updated;
// acknowledging an already-acknowledged or unknown transaction is a no-op.
func (m *Manager) Acknowledge(transactionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, alert := range m.alerts {
		if alert.TransactionID == transactionID && !alert.Acknowledged {
			alert.Acknowledged = true
			return true
		}
	}
	return false
}

// Active returns unacknowledged alerts, most-recent-first, capped at the
// display limit. Returned values are copies.
func (m *Manager) Active() []domain.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Alert, 0, ActiveDisplayCap)
	for _, alert := range m.alerts {
		if alert.Acknowledged {
			continue
		}
		out = append(out, *alert)
		if len(out) == ActiveDisplayCap {
			break
		}
	}
	return out
}

// Len returns the number of retained alerts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

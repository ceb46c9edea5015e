package alerts

import (
	"fmt"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func assessed(id string, score int, patterns ...domain.Pattern) *domain.AssessedTransaction {
	return &domain.AssessedTransaction{
		Transaction: domain.Transaction{ID: id},
		Assessment: domain.RiskAssessment{
			Score:    score,
			Level:    domain.LevelForScore(score),
			Patterns: patterns,
		},
	}
}

func TestMaybeAlertThreshold(t *testing.T) {
	m := NewManager()

	if alert := m.MaybeAlert(assessed("tx-low", 50)); alert != nil {
		t.Errorf("score 50 must not alert, got %+v", alert)
	}

	alert := m.MaybeAlert(assessed("tx-high", 51))
	if alert == nil {
		t.Fatal("score 51 must alert")
	}
	if alert.TransactionID != "tx-high" {
		t.Errorf("alert references wrong transaction: %s", alert.TransactionID)
	}
	if alert.Acknowledged {
		t.Error("new alerts must start unacknowledged")
	}
}

func TestAlertClassificationDeterministic(t *testing.T) {
	cases := []struct {
		name         string
		patterns     []domain.Pattern
		wantType     domain.AlertType
		wantPriority domain.AlertPriority
	}{
		{"Structuring", []domain.Pattern{domain.PatternStructuring}, domain.AlertSuspiciousPattern, domain.PriorityHigh},
		{"Velocity", []domain.Pattern{domain.PatternVelocity}, domain.AlertVelocity, domain.PriorityHigh},
		{"Geographic", []domain.Pattern{domain.PatternGeographicRisk}, domain.AlertGeographicRisk, domain.PriorityMedium},
		{"LargeCash", []domain.Pattern{domain.PatternLargeCash}, domain.AlertCustomerRisk, domain.PriorityHigh},
		{"NoPatterns", nil, domain.AlertThresholdExceeded, domain.PriorityMedium},
		{"StructuringDominatesVelocity",
			[]domain.Pattern{domain.PatternVelocity, domain.PatternStructuring},
			domain.AlertSuspiciousPattern, domain.PriorityHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager()
			alert := m.MaybeAlert(assessed("tx-001", 80, tc.patterns...))
			if alert == nil {
				t.Fatal("expected alert")
			}
			if alert.Type != tc.wantType {
				t.Errorf("type = %s, want %s", alert.Type, tc.wantType)
			}
			if alert.Priority != tc.wantPriority {
				t.Errorf("priority = %s, want %s", alert.Priority, tc.wantPriority)
			}
		})
	}
}

func TestAlertRetentionCap(t *testing.T) {
	m := NewManager()

	for i := 0; i < RetentionCap+1; i++ {
		m.MaybeAlert(assessed(fmt.Sprintf("tx-%03d", i), 90))
	}

	if m.Len() != RetentionCap {
		t.Fatalf("expected %d retained alerts, got %d", RetentionCap, m.Len())
	}

	// The oldest alert (tx-000) was evicted, so acknowledging it is a no-op.
	if m.Acknowledge("tx-000") {
		t.Error("evicted alert must not be acknowledgeable")
	}
	if !m.Acknowledge("tx-001") {
		t.Error("retained alert should be acknowledgeable")
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	m := NewManager()
	m.MaybeAlert(assessed("tx-001", 90))

	if !m.Acknowledge("tx-001") {
		t.Fatal("first acknowledge should succeed")
	}
	if m.Acknowledge("tx-001") {
		t.Error("second acknowledge must be a no-op")
	}
	if m.Acknowledge("tx-missing") {
		t.Error("acknowledging an unknown transaction must be a no-op")
	}
}

func TestAcknowledgeMostRecentFirst(t *testing.T) {
	m := NewManager()
	m.MaybeAlert(assessed("tx-dup", 90))
	m.MaybeAlert(assessed("tx-dup", 95))

	m.Acknowledge("tx-dup")

	active := m.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(active))
	}
	// The newer alert was acknowledged; the older one stays active.
	if active[0].Description != "Transaction tx-dup scored 90 (Critical)" {
		t.Errorf("unexpected remaining alert: %s", active[0].Description)
	}
}

func TestActiveView(t *testing.T) {
	m := NewManager()

	for i := 0; i < 15; i++ {
		m.MaybeAlert(assessed(fmt.Sprintf("tx-%03d", i), 90))
	}
	m.Acknowledge("tx-014")

	active := m.Active()
	if len(active) != ActiveDisplayCap {
		t.Fatalf("expected %d active alerts, got %d", ActiveDisplayCap, len(active))
	}

	// Most-recent-first, skipping the acknowledged head.
	if active[0].TransactionID != "tx-013" {
		t.Errorf("expected tx-013 first, got %s", active[0].TransactionID)
	}
	for _, a := range active {
		if a.Acknowledged {
			t.Errorf("active view must not contain acknowledged alerts: %s", a.TransactionID)
		}
	}
}

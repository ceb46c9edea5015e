package rules

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

func TestCustomEngineLoadRule(t *testing.T) {
	engine, err := NewCustomEngine()
	if err != nil {
		t.Fatalf("failed to create custom engine: %v", err)
	}
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "rule-001",
		Name:       "EUR wire over 50k",
		Expression: `currency == "EUR" && amount > 50000.0`,
		ScoreDelta: 10,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 loaded rule, got %d", engine.RulesCount())
	}
}

func TestCustomEngineRejectsInvalidExpression(t *testing.T) {
	engine, _ := NewCustomEngine()
	defer engine.Close()

	cases := []struct {
		name string
		expr string
	}{
		{"NotCEL", "this is not valid CEL !!!"},
		{"NonBool", "amount + 1.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.ValidateRule(&domain.RuleConfig{
				ID:         "bad-rule",
				Expression: tc.expr,
			})
			if err == nil {
				t.Errorf("expected error for expression %q", tc.expr)
			}
		})
	}
}

func TestCustomEngineEvaluate(t *testing.T) {
	engine, _ := NewCustomEngine()
	defer engine.Close()

	err := engine.ReloadRules([]*domain.RuleConfig{
		{
			ID:         "rule-velocity",
			Name:       "Repeat sender",
			Expression: "velocity_count >= 3",
			ScoreDelta: 12,
			Enabled:    true,
		},
		{
			ID:         "rule-disabled",
			Name:       "Disabled",
			Expression: "amount > 0.0",
			ScoreDelta: 99,
			Enabled:    false,
		},
	})
	if err != nil {
		t.Fatalf("failed to reload rules: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Fatalf("disabled rule must not load; got %d rules", engine.RulesCount())
	}

	tx := baseTransaction(100)

	results := engine.Evaluate(context.Background(), tx, 3)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Matched {
		t.Error("expected rule to match with velocity_count 3")
	}
	if results[0].ScoreDelta != 12 {
		t.Errorf("expected delta 12, got %d", results[0].ScoreDelta)
	}

	results = engine.Evaluate(context.Background(), tx, 1)
	if results[0].Matched {
		t.Error("expected rule not to match with velocity_count 1")
	}
}

func TestCustomRulesContributeToScore(t *testing.T) {
	custom, _ := NewCustomEngine()
	defer custom.Close()

	err := custom.LoadRule(&domain.RuleConfig{
		ID:         "rule-chf",
		Name:       "CHF transfers",
		Expression: `currency == "CHF"`,
		ScoreDelta: 22,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	tracker := velocity.NewMemoryTracker(time.Hour)
	defer tracker.Close()
	engine := NewEngine(tracker, custom, quietRand())

	tx := baseTransaction(200)
	tx.Currency = "CHF"
	got, err := engine.Evaluate(context.Background(), tx, tx.Timestamp)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if got.Score != 22 {
		t.Errorf("expected score 22 from custom rule, got %d", got.Score)
	}
	// Custom rules add factors but never pattern tags.
	if len(got.Patterns) != 0 {
		t.Errorf("expected no patterns, got %v", got.Patterns)
	}
	if len(got.RiskFactors) != 1 {
		t.Errorf("expected one risk factor, got %v", got.RiskFactors)
	}
}

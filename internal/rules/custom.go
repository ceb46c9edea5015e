package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CustomEngine evaluates operator-defined CEL rules on top of the fixed
// built-in rule set. Expressions are compiled once at load time and held
// behind a read lock during evaluation, so hot-reloading rules never stalls
// the scoring path.
type CustomEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	config  *domain.RuleConfig
	program cel.Program
}

// CustomResult is the outcome of one custom rule for one transaction.
type CustomResult struct {
	RuleID     string
	Name       string
	Matched    bool
	ScoreDelta int
	Factor     string
}

// NewCustomEngine creates the CEL environment with the transaction variables
// custom rules may reference.
func NewCustomEngine() (*CustomEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("payment_method", cel.StringType),
		cel.Variable("sender_location", cel.StringType),
		cel.Variable("receiver_location", cel.StringType),
		cel.Variable("sender_account", cel.StringType),
		cel.Variable("receiver_account", cel.StringType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CustomEngine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *CustomEngine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a single rule.
func (e *CustomEngine) LoadRule(cfg *domain.RuleConfig) error {
	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled[cfg.ID] = compiled
	return nil
}

// ReloadRules replaces all loaded rules with the given set. Disabled rules
// are skipped. Used for hot-reloading from the rule store.
func (e *CustomEngine) ReloadRules(configs []*domain.RuleConfig) error {
	next := make(map[string]*compiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = next
	return nil
}

// Evaluate runs all loaded rules against the transaction. A rule whose
// program errs at runtime is logged and treated as not matched; one bad rule
// must not take down the scoring path.
func (e *CustomEngine) Evaluate(ctx context.Context, tx *domain.Transaction, velocityCount int) []CustomResult {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"amount":            tx.Amount,
		"currency":          tx.Currency,
		"payment_method":    string(tx.Method),
		"sender_location":   tx.Sender.Location,
		"receiver_location": tx.Receiver.Location,
		"sender_account":    tx.Sender.AccountID,
		"receiver_account":  tx.Receiver.AccountID,
		"velocity_count":    int64(velocityCount),
	}

	results := make([]CustomResult, 0, len(rules))
	for _, rule := range rules {
		result := CustomResult{
			RuleID:     rule.config.ID,
			Name:       rule.config.Name,
			ScoreDelta: rule.config.ScoreDelta,
		}

		out, _, err := rule.program.Eval(activation)
		if err != nil {
			slog.Error("custom rule evaluation failed",
				"rule_id", rule.config.ID,
				"tx_id", tx.ID,
				"error", err,
			)
			results = append(results, result)
			continue
		}

		if matched, ok := out.(types.Bool); ok && bool(matched) {
			result.Matched = true
			result.Factor = fmt.Sprintf("Custom rule matched: %s", rule.config.Name)
		}
		results = append(results, result)
	}

	return results
}

// RulesCount returns the number of loaded rules.
func (e *CustomEngine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *CustomEngine) LoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.RuleConfig, 0, len(e.compiled))
	for _, r := range e.compiled {
		out = append(out, r.config)
	}
	return out
}

// Close clears all loaded rules.
func (e *CustomEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledRule)
	return nil
}

func (e *CustomEngine) compileRule(cfg *domain.RuleConfig) (*compiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledRule{config: cfg, program: program}, nil
}

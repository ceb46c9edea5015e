// Package rules implements the risk scoring rule set.
package rules

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Rule thresholds and score deltas. The rule set is fixed and evaluated in
// declaration order; each matching rule contributes an additive delta and a
// human-readable risk factor.
const (
	largeAmountThreshold = 100_000
	largeAmountDelta     = 30

	roundAmountUnit = 1_000
	roundAmountMin  = 5_000 // strictly greater than
	roundAmountDelta = 15

	structuringLow   = 9_000
	structuringHigh  = 10_000 // exclusive
	structuringDelta = 40

	geographicDelta = 25

	largeCashMin   = 5_000 // strictly greater than
	largeCashDelta = 20

	cryptoDelta = 15

	velocityWindow = time.Hour
	velocityLimit  = 5 // strictly greater than
	velocityDelta  = 35

	layeringDelta = 50
	smurfingDelta = 45

	// Stand-in trigger rates for the cross-transaction patterns the engine
	// does not yet correlate. See CustomEngine for the extension point.
	layeringTriggerRate = 0.02
	smurfingTriggerRate = 0.02

	// Symmetric jitter applied to the summed score before clamping.
	jitterSpan = 5
)

// highRiskJurisdictions flags a sender or receiver location by substring
// match, the same way free-text locations arrive from producers.
var highRiskJurisdictions = []string{
	"North Korea", "Iran", "Afghanistan", "Myanmar", "Syria",
}

// Rand is the injectable randomness source behind jitter and the
// probabilistic placeholder rules. Tests substitute a deterministic sequence.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// Engine evaluates the fixed detection rule set against one transaction.
type Engine struct {
	tracker velocity.Tracker
	custom  *CustomEngine // optional
	rnd     Rand
}

// NewEngine creates a scoring engine. custom may be nil when no operator
// rules are configured. A nil rnd falls back to a time-seeded source.
func NewEngine(tracker velocity.Tracker, custom *CustomEngine, rnd Rand) *Engine {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		tracker: tracker,
		custom:  custom,
		rnd:     rnd,
	}
}

// Evaluate scores a transaction as of now. The one side effect is recording
// the transaction's timestamp into the velocity tracker before querying it,
// so a transaction counts toward its own velocity window.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.Transaction, now time.Time) (domain.RiskAssessment, error) {
	if err := e.tracker.Record(ctx, tx.Sender.AccountID, tx.Timestamp); err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("failed to record velocity: %w", err)
	}

	score := 0
	var patterns []domain.Pattern
	var factors []string

	match := func(delta int, pattern domain.Pattern, factor string) {
		score += delta
		if pattern != "" {
			patterns = appendPattern(patterns, pattern)
		}
		factors = append(factors, factor)
	}

	if tx.Amount > largeAmountThreshold {
		match(largeAmountDelta, "",
			fmt.Sprintf("Unusually large amount: %.2f %s", tx.Amount, tx.Currency))
	}

	if tx.Amount > roundAmountMin && isMultipleOf(tx.Amount, roundAmountUnit) {
		match(roundAmountDelta, domain.PatternRoundAmount,
			fmt.Sprintf("Round amount: %.2f %s", tx.Amount, tx.Currency))
	}

	if tx.Amount >= structuringLow && tx.Amount < structuringHigh {
		match(structuringDelta, domain.PatternStructuring,
			fmt.Sprintf("Amount %.2f just under the %d reporting threshold", tx.Amount, structuringHigh))
	}

	if jurisdiction := matchJurisdiction(tx.Sender.Location, tx.Receiver.Location); jurisdiction != "" {
		match(geographicDelta, domain.PatternGeographicRisk,
			fmt.Sprintf("Involves high-risk jurisdiction: %s", jurisdiction))
	}

	if tx.Method == domain.PaymentCashDeposit && tx.Amount > largeCashMin {
		match(largeCashDelta, domain.PatternLargeCash,
			fmt.Sprintf("Cash deposit of %.2f %s", tx.Amount, tx.Currency))
	}

	if tx.Method == domain.PaymentCryptocurrency {
		match(cryptoDelta, "", "Cryptocurrency payment")
	}

	velocityCount, err := e.tracker.CountWithin(ctx, tx.Sender.AccountID, now, velocityWindow)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("failed to query velocity: %w", err)
	}
	if velocityCount > velocityLimit {
		match(velocityDelta, domain.PatternVelocity,
			fmt.Sprintf("%d transactions in the last hour", velocityCount))
	}

	if e.rnd.Float64() < layeringTriggerRate {
		match(layeringDelta, domain.PatternLayering, "Possible layering chain detected")
	}

	if e.rnd.Float64() < smurfingTriggerRate {
		match(smurfingDelta, domain.PatternSmurfing, "Possible smurfing activity detected")
	}

	if e.custom != nil {
		for _, res := range e.custom.Evaluate(ctx, tx, velocityCount) {
			if res.Matched {
				score += res.ScoreDelta
				factors = append(factors, res.Factor)
			}
		}
	}

	// Jitter in [-jitterSpan, +jitterSpan], then clamp and floor.
	score += e.rnd.Intn(2*jitterSpan+1) - jitterSpan
	score = clamp(score, domain.ScoreMin, domain.ScoreMax)

	return domain.RiskAssessment{
		Score:       score,
		Level:       domain.LevelForScore(score),
		Patterns:    patterns,
		RiskFactors: factors,
	}, nil
}

// appendPattern adds p unless already present; duplicate tags collapse.
func appendPattern(patterns []domain.Pattern, p domain.Pattern) []domain.Pattern {
	for _, existing := range patterns {
		if existing == p {
			return patterns
		}
	}
	return append(patterns, p)
}

// isMultipleOf reports whether amount is an exact multiple of unit.
// Amounts arrive as decimals; compare in cents to dodge float drift.
func isMultipleOf(amount float64, unit int) bool {
	cents := int64(amount*100 + 0.5)
	return cents%(int64(unit)*100) == 0
}

func matchJurisdiction(locations ...string) string {
	for _, loc := range locations {
		for _, jurisdiction := range highRiskJurisdictions {
			if loc != "" && strings.Contains(loc, jurisdiction) {
				return jurisdiction
			}
		}
	}
	return ""
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

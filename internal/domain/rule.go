package domain

import "time"

// RuleConfig defines an operator-supplied custom scoring rule.
// The expression is a CEL predicate over the transaction; when it evaluates
// to true the rule contributes ScoreDelta to the risk score, before jitter
// and clamping. Custom rules add risk factors but never pattern tags, since
// the pattern catalog is closed.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression over amount, currency, payment_method,
	// sender_location, receiver_location and velocity_count.
	Expression string `json:"expression"`

	// ScoreDelta is added to the risk score when the expression matches.
	ScoreDelta int `json:"scoreDelta"`

	// Whether the rule participates in evaluation.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

package domain

// Pattern identifies a suspicious-activity pattern from the closed catalog.
// Adding a pattern is a compile-time change: extend the constants, Catalog,
// and the description/severity tables together.
type Pattern string

const (
	PatternStructuring    Pattern = "Structuring"
	PatternSmurfing       Pattern = "Smurfing"
	PatternLayering       Pattern = "Layering"
	PatternVelocity       Pattern = "Velocity"
	PatternGeographicRisk Pattern = "Geographic Risk"
	PatternLargeCash      Pattern = "Large Cash"
	PatternRoundAmount    Pattern = "Round Amount"
)

// Severity is the nominal severity band of a catalog pattern.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var catalog = []Pattern{
	PatternStructuring,
	PatternSmurfing,
	PatternLayering,
	PatternVelocity,
	PatternGeographicRisk,
	PatternLargeCash,
	PatternRoundAmount,
}

var patternDescriptions = map[Pattern]string{
	PatternStructuring:    "Splitting amounts to stay just under a reporting threshold",
	PatternSmurfing:       "Multiple actors conducting similarly small transactions",
	PatternLayering:       "Obscuring fund origin through complex transaction chains",
	PatternVelocity:       "Unusual transaction frequency within a time window",
	PatternGeographicRisk: "Involvement of a high-risk jurisdiction",
	PatternLargeCash:      "Large cash deposit",
	PatternRoundAmount:    "Suspiciously round amount",
}

var patternSeverities = map[Pattern]Severity{
	PatternStructuring:    SeverityHigh,
	PatternSmurfing:       SeverityHigh,
	PatternLayering:       SeverityHigh,
	PatternVelocity:       SeverityHigh,
	PatternGeographicRisk: SeverityMedium,
	PatternLargeCash:      SeverityMedium,
	PatternRoundAmount:    SeverityMedium,
}

// Catalog returns all known patterns in their canonical order.
func Catalog() []Pattern {
	out := make([]Pattern, len(catalog))
	copy(out, catalog)
	return out
}

// Known reports whether p is in the pattern catalog.
func (p Pattern) Known() bool {
	_, ok := patternDescriptions[p]
	return ok
}

// Description returns the human-readable description of the pattern.
func (p Pattern) Description() string {
	return patternDescriptions[p]
}

// Severity returns the nominal severity band of the pattern.
func (p Pattern) Severity() Severity {
	return patternSeverities[p]
}

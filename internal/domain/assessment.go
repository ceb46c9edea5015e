package domain

// RiskLevel is the categorical bucket derived from a numeric score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// Score bounds and level breakpoints. A final score is always clamped to
// [ScoreMin, ScoreMax]; the level is a pure function of the score.
const (
	ScoreMin = 1
	ScoreMax = 100

	// AlertThreshold is the minimum score at which an alert is raised.
	AlertThreshold = 51
)

// LevelForScore maps a clamped score to its risk level.
// Breakpoints: Low 1-25, Medium 26-50, High 51-75, Critical 76-100.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 76:
		return RiskCritical
	case score >= 51:
		return RiskHigh
	case score >= 26:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskAssessment is the engine's verdict on a single transaction.
type RiskAssessment struct {
	Score       int       `json:"riskScore"`
	Level       RiskLevel `json:"riskLevel"`
	Patterns    []Pattern `json:"detectedPatterns"`
	RiskFactors []string  `json:"riskFactors"`
}

// ShouldAlert reports whether the assessment crosses the alerting threshold.
func (a RiskAssessment) ShouldAlert() bool {
	return a.Score >= AlertThreshold
}

// AssessedTransaction is the enriched view returned to callers: the original
// transaction facts plus the derived assessment.
type AssessedTransaction struct {
	Transaction
	Assessment RiskAssessment `json:"assessment"`
}

package ledger

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Report is the SAR-style export over the current ledger, restricted to
// High and Critical entries. Field names are fixed for downstream
// regulatory-style consumers; do not rename.
type Report struct {
	GeneratedAt      time.Time     `json:"generatedAt"`
	TransactionCount int           `json:"transactionCount"`
	Transactions     []ReportEntry `json:"transactions"`
}

// ReportEntry is one exported transaction.
type ReportEntry struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Amount      float64          `json:"amount"`
	Currency    string           `json:"currency"`
	RiskScore   int              `json:"riskScore"`
	Patterns    []domain.Pattern `json:"matchedPatterns"`
	RiskFactors []string         `json:"riskFactors"`
}

// ExportReport builds the export over the full retained set, High and
// Critical entries only, most-recent-first.
func (l *Ledger) ExportReport(now time.Time) *Report {
	report := &Report{
		GeneratedAt:  now.UTC(),
		Transactions: []ReportEntry{},
	}

	for _, entry := range l.Query(Filter{Full: true}) {
		if entry.Assessment.Level != domain.RiskHigh && entry.Assessment.Level != domain.RiskCritical {
			continue
		}
		report.Transactions = append(report.Transactions, ReportEntry{
			ID:          entry.ID,
			Timestamp:   entry.Timestamp,
			Amount:      entry.Amount,
			Currency:    entry.Currency,
			RiskScore:   entry.Assessment.Score,
			Patterns:    entry.Assessment.Patterns,
			RiskFactors: entry.Assessment.RiskFactors,
		})
	}

	report.TransactionCount = len(report.Transactions)
	return report
}

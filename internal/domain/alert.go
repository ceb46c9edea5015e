package domain

import (
	"time"
)

// AlertType is the fixed catalog of alert classifications.
type AlertType string

const (
	AlertSuspiciousPattern AlertType = "Suspicious Pattern"
	AlertThresholdExceeded AlertType = "Threshold Exceeded"
	AlertGeographicRisk    AlertType = "Geographic Risk"
	AlertVelocity          AlertType = "Velocity Alert"
	AlertCustomerRisk      AlertType = "Customer Risk"
)

// AlertPriority ranks an alert for triage.
type AlertPriority string

const (
	PriorityMedium AlertPriority = "medium"
	PriorityHigh   AlertPriority = "high"
)

// Alert is raised when a transaction's score crosses the alerting threshold.
// Only the Acknowledged flag is mutable after creation.
type Alert struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	TransactionID string        `json:"transactionId"`
	Type          AlertType     `json:"type"`
	Priority      AlertPriority `json:"priority"`
	Description   string        `json:"description"`
	Acknowledged  bool          `json:"acknowledged"`
}

package domain

import (
	"time"
)

// EntityType classifies a transaction participant.
type EntityType string

const (
	EntityIndividual EntityType = "Individual"
	EntityBusiness   EntityType = "Business"
)

// Valid reports whether the entity type is one of the known values.
func (e EntityType) Valid() bool {
	return e == EntityIndividual || e == EntityBusiness
}

// PaymentMethod is the closed set of supported payment rails.
type PaymentMethod string

const (
	PaymentWireTransfer   PaymentMethod = "Wire Transfer"
	PaymentCashDeposit    PaymentMethod = "Cash Deposit"
	PaymentACH            PaymentMethod = "ACH"
	PaymentCreditCard     PaymentMethod = "Credit Card"
	PaymentCryptocurrency PaymentMethod = "Cryptocurrency"
)

// Valid reports whether the payment method is one of the known values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentWireTransfer, PaymentCashDeposit, PaymentACH, PaymentCreditCard, PaymentCryptocurrency:
		return true
	}
	return false
}

// supportedCurrencies is the closed set of currency codes accepted at ingest.
var supportedCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CAD": true, "AUD": true, "CHF": true, "CNY": true,
}

// ValidCurrency reports whether code is a supported currency code.
func ValidCurrency(code string) bool {
	return supportedCurrencies[code]
}

// Party represents a transaction participant.
type Party struct {
	Name      string     `json:"name"`
	AccountID string     `json:"accountId"`
	Type      EntityType `json:"entityType"`
	Location  string     `json:"location"`
}

// Transaction represents an incoming transaction to be assessed.
// Transactions are immutable once emitted by the producer; the engine
// attaches a RiskAssessment but never mutates the original facts.
type Transaction struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Method    PaymentMethod `json:"paymentMethod"`
	Sender    Party         `json:"sender"`
	Receiver  Party         `json:"receiver"`
	Reference string        `json:"reference,omitempty"`
}

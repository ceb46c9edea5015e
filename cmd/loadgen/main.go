// Kestrel load generator - feeds synthetic transactions into a running
// instance. Roughly one in five generated transactions carries a
// suspicious shape, so dashboards and alerts have something to show.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/opensource-finance/kestrel/internal/api"
)

var (
	targetURL      = flag.String("url", "http://localhost:8080", "Kestrel API base URL")
	count          = flag.Int("count", 100, "Number of transactions to generate")
	interval       = flag.Duration("interval", 500*time.Millisecond, "Interval between transactions")
	suspiciousRate = flag.Float64("suspicious-rate", 0.2, "Fraction of transactions with a suspicious shape")
)

var currencies = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "CHF", "CNY"}

var methods = []string{"Wire Transfer", "Cash Deposit", "ACH", "Credit Card", "Cryptocurrency"}

var highRiskLocations = []string{
	"Pyongyang, North Korea",
	"Tehran, Iran",
	"Kabul, Afghanistan",
	"Yangon, Myanmar",
	"Damascus, Syria",
}

var safeLocations = []string{
	"New York, USA",
	"London, UK",
	"Frankfurt, Germany",
	"Singapore",
	"Toronto, Canada",
	"Sydney, Australia",
	"Tokyo, Japan",
	"Zurich, Switzerland",
}

func main() {
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Starting load generator:")
	log.Printf("  Target: %s", *targetURL)
	log.Printf("  Count: %d", *count)
	log.Printf("  Interval: %v", *interval)
	log.Printf("  Suspicious rate: %.0f%%", *suspiciousRate*100)

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	successCount := 0
	failCount := 0
	alertCount := 0

	// Reused across the run so velocity bursts hit the same sender.
	burstAccount := fmt.Sprintf("acct-%08d", rand.Intn(100000000))

	for i := 0; i < *count; i++ {
		req := generateTransaction(burstAccount)

		alerted, err := send(client, *targetURL, req)
		if err != nil {
			log.Printf("Failed to send transaction: %v", err)
			failCount++
		} else {
			successCount++
			if alerted {
				alertCount++
			}
			if successCount%25 == 0 {
				log.Printf("Progress: %d/%d sent, %d alerts raised", successCount, *count, alertCount)
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("Load generation complete:")
	log.Printf("  Success: %d transactions", successCount)
	log.Printf("  Failed: %d transactions", failCount)
	log.Printf("  Alerts: %d", alertCount)
}

func party(location string) api.PartyInfo {
	entityType := "Individual"
	name := gofakeit.Name()
	if rand.Float64() < 0.3 {
		entityType = "Business"
		name = gofakeit.Company()
	}
	return api.PartyInfo{
		Name:      name,
		AccountID: fmt.Sprintf("acct-%08d", rand.Intn(100000000)),
		Type:      entityType,
		Location:  location,
	}
}

func generateTransaction(burstAccount string) api.TransactionRequest {
	req := api.TransactionRequest{
		Currency:      currencies[rand.Intn(len(currencies))],
		PaymentMethod: methods[rand.Intn(len(methods))],
		Sender:        party(safeLocations[rand.Intn(len(safeLocations))]),
		Receiver:      party(safeLocations[rand.Intn(len(safeLocations))]),
		Reference:     gofakeit.Sentence(4),
	}

	if rand.Float64() < *suspiciousRate {
		shapeSuspicious(&req, burstAccount)
	} else {
		// Routine traffic: modest, irregular amounts.
		req.Amount = round2(10 + rand.Float64()*4990)
	}

	return req
}

// shapeSuspicious rewrites a transaction into one of the shapes the
// engine is built to catch.
func shapeSuspicious(req *api.TransactionRequest, burstAccount string) {
	switch rand.Intn(5) {
	case 0: // just under the reporting threshold
		req.Amount = round2(9000 + rand.Float64()*999)
	case 1: // large round transfer
		req.Amount = float64((6 + rand.Intn(95)) * 1000)
	case 2: // high-risk corridor
		req.Amount = round2(1000 + rand.Float64()*50000)
		req.Receiver.Location = highRiskLocations[rand.Intn(len(highRiskLocations))]
	case 3: // heavy cash
		req.Amount = round2(5500 + rand.Float64()*20000)
		req.PaymentMethod = "Cash Deposit"
	case 4: // rapid-fire from one account
		req.Amount = round2(100 + rand.Float64()*900)
		req.Sender.AccountID = burstAccount
	}
}

func round2(v float64) float64 {
	return float64(int(v*100)) / 100
}

func send(client *http.Client, baseURL string, req api.TransactionRequest) (bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return false, err
	}

	resp, err := client.Post(baseURL+"/transactions", "application/json", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result api.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}

	return result.Alert != nil, nil
}

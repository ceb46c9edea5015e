package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/rulestore"
	"github.com/opensource-finance/kestrel/internal/stream"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	custom  *rules.CustomEngine
	store   rulestore.Store
	bus     domain.EventBus
	hub     *stream.Hub
	version string
}

// NewHandler creates a new API handler. store and hub may be nil in tests.
func NewHandler(eng *engine.Engine, custom *rules.CustomEngine, store rulestore.Store, bus domain.EventBus, hub *stream.Hub, version string) *Handler {
	return &Handler{
		engine:  eng,
		custom:  custom,
		store:   store,
		bus:     bus,
		hub:     hub,
		version: version,
	}
}

// PartyInfo represents a transaction counterparty.
type PartyInfo struct {
	Name      string `json:"name"`
	AccountID string `json:"accountId"`
	Type      string `json:"type"`
	Location  string `json:"location"`
}

// TransactionRequest is the request body for POST /transactions.
type TransactionRequest struct {
	ID            string    `json:"id,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"paymentMethod"`
	Sender        PartyInfo `json:"sender"`
	Receiver      PartyInfo `json:"receiver"`
	Reference     string    `json:"reference,omitempty"`
}

// IngestResponse is the response for POST /transactions.
type IngestResponse struct {
	Transaction *domain.AssessedTransaction `json:"transaction"`
	Alert       *domain.Alert               `json:"alert,omitempty"`
	Metadata    struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// IngestTransaction handles POST /transactions requests.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx := &domain.Transaction{
		ID:        req.ID,
		Timestamp: req.Timestamp,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    domain.PaymentMethod(req.PaymentMethod),
		Sender: domain.Party{
			Name:      req.Sender.Name,
			AccountID: req.Sender.AccountID,
			Type:      domain.EntityType(req.Sender.Type),
			Location:  req.Sender.Location,
		},
		Receiver: domain.Party{
			Name:      req.Receiver.Name,
			AccountID: req.Receiver.AccountID,
			Type:      domain.EntityType(req.Receiver.Type),
			Location:  req.Receiver.Location,
		},
		Reference: req.Reference,
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	atx, alert, err := h.engine.Process(ctx, tx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("transaction processing failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "transaction processing failed",
		})
		return
	}

	// Fan out to async consumers. Failures are logged, not surfaced, since
	// the assessment itself already succeeded.
	if h.bus != nil {
		payload, _ := json.Marshal(atx)
		if err := h.bus.Publish(ctx, domain.TopicTransactionAssessed, payload); err != nil {
			slog.Error("failed to publish assessment", "tx_id", atx.ID, "error", err)
		}
		if alert != nil {
			payload, _ := json.Marshal(alert)
			if err := h.bus.Publish(ctx, domain.TopicAlertRaised, payload); err != nil {
				slog.Error("failed to publish alert", "tx_id", atx.ID, "error", err)
			}
		}
	}

	resp := IngestResponse{
		Transaction: atx,
		Alert:       alert,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// ListTransactions handles GET /transactions with optional level, pattern
// and full query parameters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var f ledger.Filter

	if level := r.URL.Query().Get("level"); level != "" {
		switch domain.RiskLevel(level) {
		case domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical:
			f.Level = domain.RiskLevel(level)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("unknown risk level: %s", level),
			})
			return
		}
	}

	if pattern := r.URL.Query().Get("pattern"); pattern != "" {
		p := domain.Pattern(pattern)
		if !p.Known() {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("unknown pattern: %s", pattern),
			})
			return
		}
		f.Pattern = p
	}

	f.Full = r.URL.Query().Get("full") == "true"

	entries := h.engine.QueryLedger(f)
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": entries,
		"count":        len(entries),
	})
}

// ListAlerts handles GET /alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	active := h.engine.ActiveAlerts()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": active,
		"count":  len(active),
	})
}

// AcknowledgeRequest is the request body for POST /alerts/acknowledge.
type AcknowledgeRequest struct {
	TransactionID string `json:"transactionId"`
}

// AcknowledgeAlert handles POST /alerts/acknowledge.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.TransactionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactionId is required",
		})
		return
	}

	if !h.engine.Acknowledge(req.TransactionID) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no unacknowledged alert for transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"acknowledged":  true,
		"transactionId": req.TransactionID,
	})
}

// PatternCounts handles GET /patterns.
func (h *Handler) PatternCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": h.engine.PatternCounts(),
	})
}

// Export handles GET /export, producing the SAR-style report of High and
// Critical transactions.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	report := h.engine.ExportReport(time.Now().UTC())

	filename := fmt.Sprintf("kestrel-report-%s.json", report.GeneratedAt.Format("20060102-150405"))
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	writeJSON(w, http.StatusOK, report)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           status,
		"version":          h.version,
		"processed":        h.engine.Processed(),
		"connectedClients": clients,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all rules loaded in the custom engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.custom.LoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a rule by ID from the store.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule store not available",
		})
		return
	}

	cfg, err := h.store.GetRuleConfig(r.Context(), ruleID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	ScoreDelta  int    `json:"scoreDelta"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule validates, persists and hot-loads a custom rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		ScoreDelta:  req.ScoreDelta,
		Enabled:     req.Enabled,
	}

	// Compile before persisting so a broken expression never lands in the
	// store.
	if err := h.custom.ValidateRule(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.store != nil {
		if err := h.store.SaveRuleConfig(ctx, cfg); err != nil {
			slog.Error("failed to save rule config", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	if cfg.Enabled {
		if err := h.custom.LoadRule(cfg); err != nil {
			slog.Error("failed to load rule into engine", "id", cfg.ID, "error", err)
		}
	}

	slog.Info("rule created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule": cfg,
	})
}

// DeleteRule removes a rule from the store and reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule store not available",
		})
		return
	}

	err := h.store.DeleteRuleConfig(r.Context(), ruleID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to delete rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	h.reloadFromStore(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": ruleID,
	})
}

// ReloadRules reloads all enabled rules from the store into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule store not available",
		})
		return
	}

	count, err := h.reloadFromStore(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) reloadFromStore(ctx context.Context) (int, error) {
	configs, err := h.store.ListEnabledRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from store", "error", err)
		return 0, err
	}
	if err := h.custom.ReloadRules(configs); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		return 0, err
	}
	slog.Info("rules reloaded from store", "count", len(configs))
	return len(configs), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

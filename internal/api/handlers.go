package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/sentinelpay/alertmatch/internal/reconcile"
	"github.com/sentinelpay/alertmatch/internal/service"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	reconciler *reconcile.Reconciler
	storage    service.Storage
	refresher  Refresher
	version    string
}

// verifyRequest is the inbound alert payload. EmailContent is accepted as a
// legacy form where subject and body arrive as one string.
type verifyRequest struct {
	Subject      string `json:"subject"`
	Sender       string `json:"sender"`
	Body         string `json:"body"`
	EmailContent string `json:"email_content"`
}

// verifyResponse is the verification artifact returned to callers.
type verifyResponse struct {
	Status             string             `json:"status"`
	MatchFound         bool               `json:"match_found"`
	MatchScore         float64            `json:"match_score"`
	AlertID            string             `json:"alert_id"`
	RunID              string             `json:"run_id"`
	AlertData          alertData          `json:"alert_data"`
	MatchedTransaction *model.Transaction `json:"matched_transaction"`
	Message            string             `json:"message"`
}

type alertData struct {
	Amount        *float64 `json:"amount"`
	Currency      *string  `json:"currency"`
	AccountMasked *string  `json:"account_masked"`
	Reference     *string  `json:"reference"`
	Merchant      *string  `json:"merchant"`
	ObservedAt    string   `json:"observed_at"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- VerifyAlert ---

func (h *Handlers) VerifyAlert(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	raw := model.RawAlert{
		Subject: req.Subject,
		Sender:  req.Sender,
		Body:    req.Body,
	}
	if req.EmailContent != "" && req.Body == "" {
		raw.Body = req.EmailContent
	}
	if raw.Subject == "" && raw.Body == "" {
		writeError(w, http.StatusBadRequest, "alert text is required")
		return
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInsufficientSignal):
			writeError(w, http.StatusBadRequest,
				"failed to reliably parse an amount or merchant from the alert")
		case errors.Is(err, common.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "ledger store unavailable")
		default:
			common.LogError(err, "verification failed", nil)
			writeError(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, buildArtifact(outcome))
}

func buildArtifact(outcome *reconcile.Outcome) verifyResponse {
	result := outcome.Result
	resp := verifyResponse{
		Status:  string(result.Status),
		AlertID: outcome.Alert.ID,
		RunID:   outcome.RunID,
		AlertData: alertData{
			Amount:        outcome.Alert.Parsed.Amount,
			Currency:      outcome.Alert.Parsed.Currency,
			AccountMasked: outcome.Alert.Parsed.AccountMasked,
			Reference:     outcome.Alert.Parsed.Reference,
			Merchant:      outcome.Alert.Parsed.Merchant,
			ObservedAt:    outcome.Alert.Parsed.ObservedAt.UTC().Format(time.RFC3339),
		},
	}

	if result.Best != nil {
		resp.MatchScore = result.Best.Score
	}

	switch result.Status {
	case model.StatusMatched:
		tx := result.Best.Transaction
		resp.MatchFound = true
		resp.MatchedTransaction = &tx
		resp.Message = fmt.Sprintf("Alert matched transaction %s with %.2f%% confidence.",
			tx.ID, result.Best.Score)
	case model.StatusAmbiguous:
		resp.Message = fmt.Sprintf("Best candidate scored %.2f; below the confidence threshold, needs review.",
			resp.MatchScore)
	default:
		resp.Message = fmt.Sprintf("No transaction matched; highest score was %.2f.",
			resp.MatchScore)
	}

	return resp
}

// --- GetAlertRuns ---

func (h *Handlers) GetAlertRuns(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")

	if _, err := h.storage.GetAlertByID(r.Context(), alertID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		common.LogError(err, "failed to load alert", common.Fields{"alert_id": alertID})
		writeError(w, http.StatusInternalServerError, "failed to load alert")
		return
	}

	runs, err := h.storage.GetMatchRunsByAlert(r.Context(), alertID)
	if err != nil {
		common.LogError(err, "failed to load match runs", common.Fields{"alert_id": alertID})
		writeError(w, http.StatusInternalServerError, "failed to load match runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alert_id": alertID,
		"runs":     runsPayload(runs),
	})
}

type runEntry struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	ChosenTxID string          `json:"chosen_tx_id,omitempty"`
	Score      *float64        `json:"score"`
	Candidates json.RawMessage `json:"candidates,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

func runsPayload(runs []model.MatchRun) []runEntry {
	entries := make([]runEntry, 0, len(runs))
	for _, run := range runs {
		entry := runEntry{
			ID:         run.ID,
			Status:     string(run.Status),
			ChosenTxID: run.ChosenTxID,
			Score:      run.Score,
			Note:       run.Note,
			CreatedAt:  run.CreatedAt.UTC().Format(time.RFC3339),
		}
		if run.Candidates != "" {
			entry.Candidates = json.RawMessage(run.Candidates)
		}
		entries = append(entries, entry)
	}
	return entries
}

// --- ListLedger ---

func (h *Handlers) ListLedger(w http.ResponseWriter, r *http.Request) {
	window := reconcile.DefaultWindow
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		var hours int
		if _, err := fmt.Sscanf(raw, "%d", &hours); err != nil || hours <= 0 {
			writeError(w, http.StatusBadRequest, "window_hours must be a positive integer")
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	transactions, err := h.storage.GetRecentTransactions(r.Context(), window)
	if err != nil {
		common.LogError(err, "failed to list ledger", nil)
		writeError(w, http.StatusServiceUnavailable, "ledger store unavailable")
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window_hours": int(window.Hours()),
		"count":        len(transactions),
		"transactions": transactions,
	})
}

// --- RefreshLedger ---

func (h *Handlers) RefreshLedger(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		writeError(w, http.StatusConflict, "no ledger feed configured")
		return
	}

	fetched, err := h.refresher.RefreshNow(r.Context())
	if err != nil {
		common.LogError(err, "manual ledger refresh failed", nil)
		writeError(w, http.StatusBadGateway, "ledger refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "transaction ledger refreshed",
		"fetched": fetched,
	})
}

// --- GetAgentManifest ---

func (h *Handlers) GetAgentManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "AlertMatchAgent",
		"description": "Matches unstructured bank alert emails to ledger transactions with confidence-scored verdicts.",
		"version":     h.version,
		"skills": []map[string]any{
			{
				"id":          "verify_transaction_alert",
				"name":        "Verify Bank Alert",
				"description": "Takes a bank alert email and returns the matched ledger transaction with a 0-100 confidence score.",
				"tags":        []string{"finance", "verification", "security"},
			},
		},
	})
}

// --- Healthz ---

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	count, err := h.storage.GetTransactionCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  "ledger store unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      h.version,
		"ledger_count": count,
	})
}

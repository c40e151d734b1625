// Package reconcile wires extraction, candidate lookup, scoring, and
// persistence into one reconciliation call per inbound alert.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/extract"
	"github.com/sentinelpay/alertmatch/internal/match"
	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/sentinelpay/alertmatch/internal/service"
)

// DefaultWindow is the candidate lookback window when none is configured.
const DefaultWindow = 24 * time.Hour

// Enricher optionally annotates a reconciliation run with additional context
// (e.g. an LLM-generated summary). Implementations are external; the default
// is no enrichment.
type Enricher interface {
	Enrich(ctx context.Context, alert model.Alert, result model.MatchResult) (string, error)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithWindow overrides the candidate lookback window.
func WithWindow(window time.Duration) Option {
	return func(r *Reconciler) { r.window = window }
}

// WithClock overrides the processing-time clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
		r.extractor = extract.New(extract.WithClock(now))
	}
}

// WithNotifier attaches an outbound notifier, invoked on matched and
// ambiguous outcomes.
func WithNotifier(n service.Notifier) Option {
	return func(r *Reconciler) { r.notifier = n }
}

// WithEnricher attaches a run enricher.
func WithEnricher(e Enricher) Option {
	return func(r *Reconciler) { r.enricher = e }
}

// WithScorer overrides the default canonical scorer, e.g. to use the legacy
// weight profile.
func WithScorer(s *match.Scorer) Option {
	return func(r *Reconciler) { r.scorer = s }
}

// Reconciler runs the full pipeline for one raw alert. It is safe for
// concurrent use: each invocation owns its parsed alert and result, and all
// shared state lives behind the storage interface.
type Reconciler struct {
	now       func() time.Time
	extractor *extract.Extractor
	scorer    *match.Scorer
	storage   service.Storage
	notifier  service.Notifier
	enricher  Enricher
	window    time.Duration
}

// New creates a Reconciler backed by the given storage.
func New(storage service.Storage, opts ...Option) *Reconciler {
	r := &Reconciler{
		now:       time.Now,
		extractor: extract.New(),
		scorer:    match.NewScorer(),
		storage:   storage,
		window:    DefaultWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Outcome is the result of one reconciliation run.
type Outcome struct {
	Alert  model.Alert
	RunID  string
	Result model.MatchResult
}

// Reconcile extracts signals from the raw alert, scores it against the recent
// candidate window, persists the alert and match run, and notifies on
// matched or ambiguous outcomes.
//
// Scoring is deterministic: repeated calls against an identical alert and
// candidate snapshot produce an identical verdict. Persistence appends a new
// alert and run record each call.
func (r *Reconciler) Reconcile(ctx context.Context, raw model.RawAlert) (*Outcome, error) {
	parsed := r.extractor.Extract(raw.Subject, raw.Body)

	// The one precondition the core enforces: with neither an amount nor a
	// merchant there is nothing meaningful to score.
	if !parsed.HasAmount() && !parsed.HasMerchant() {
		return nil, common.ErrInsufficientSignal
	}

	candidates, err := r.storage.GetRecentTransactions(ctx, r.window)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching candidate window: %v", common.ErrStoreUnavailable, err)
	}

	result := r.scorer.Decide(parsed, candidates)

	alert := model.Alert{
		ID:         "eml-" + uuid.NewString()[:8],
		ReceivedAt: r.now(),
		RawSubject: raw.Subject,
		RawFrom:    raw.Sender,
		RawBody:    raw.Body,
		Parsed:     parsed,
	}

	run := r.buildRun(&alert, result)
	if r.enricher != nil {
		if note, enrichErr := r.enricher.Enrich(ctx, alert, result); enrichErr != nil {
			slog.Warn("Run enrichment failed", "alert_id", alert.ID, "error", enrichErr)
		} else if note != "" {
			run.Note = note
		}
	}

	if err := r.persist(ctx, &alert, run); err != nil {
		return nil, err
	}

	r.maybeNotify(ctx, &alert, result)

	return &Outcome{Alert: alert, RunID: run.ID, Result: result}, nil
}

// buildRun assembles the durable record for this reconciliation run,
// including the full ranked candidate list as JSON for audit.
func (r *Reconciler) buildRun(alert *model.Alert, result model.MatchResult) *model.MatchRun {
	run := &model.MatchRun{
		ID:        "run-" + uuid.NewString()[:8],
		AlertID:   alert.ID,
		Status:    result.Status,
		Note:      "automatic ingest",
		CreatedAt: r.now(),
	}
	if result.Best != nil {
		run.ChosenTxID = result.Best.Transaction.ID
		score := result.Best.Score
		run.Score = &score
	}

	type rankedEntry struct {
		TransactionID string  `json:"transaction_id"`
		Score         float64 `json:"score"`
	}
	entries := make([]rankedEntry, 0, len(result.Ranked))
	for _, cand := range result.Ranked {
		entries = append(entries, rankedEntry{
			TransactionID: cand.Transaction.ID,
			Score:         cand.Score,
		})
	}
	if data, err := json.Marshal(entries); err == nil {
		run.Candidates = string(data)
	}
	return run
}

// persist writes the alert and its run in one storage transaction so a
// failure never leaves a dangling alert without its verdict.
func (r *Reconciler) persist(ctx context.Context, alert *model.Alert, run *model.MatchRun) error {
	tx, err := r.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", common.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveAlert(ctx, alert); err != nil {
		return fmt.Errorf("%w: saving alert: %v", common.ErrStoreUnavailable, err)
	}
	if err := tx.SaveMatchRun(ctx, run); err != nil {
		return fmt.Errorf("%w: saving match run: %v", common.ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// maybeNotify delivers a best-effort notification for matched and ambiguous
// outcomes. Delivery failures are logged, never surfaced.
func (r *Reconciler) maybeNotify(ctx context.Context, alert *model.Alert, result model.MatchResult) {
	if r.notifier == nil || result.Best == nil {
		return
	}
	if result.Status != model.StatusMatched && result.Status != model.StatusAmbiguous {
		return
	}

	title := fmt.Sprintf("Alert %s", result.Status)
	body := fmt.Sprintf("Alert %s scored %.2f against transaction %s",
		alert.ID, result.Best.Score, result.Best.Transaction.ID)
	metadata := map[string]any{
		"alert_id":       alert.ID,
		"transaction_id": result.Best.Transaction.ID,
		"score":          result.Best.Score,
		"status":         string(result.Status),
	}

	if err := r.notifier.Notify(ctx, title, body, metadata); err != nil {
		common.LogError(fmt.Errorf("%w: %v", common.ErrNotificationFailed, err),
			"Notification delivery failed", common.Fields{"alert_id": alert.ID})
	}
}

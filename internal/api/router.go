// Package api exposes the reconciliation engine over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sentinelpay/alertmatch/internal/reconcile"
	"github.com/sentinelpay/alertmatch/internal/service"
)

// Refresher triggers a manual ledger re-poll and reports how many
// transactions the feed returned.
type Refresher interface {
	RefreshNow(ctx context.Context) (int, error)
}

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(
	reconciler *reconcile.Reconciler,
	storage service.Storage,
	refresher Refresher,
	version string,
) http.Handler {
	h := &Handlers{
		reconciler: reconciler,
		storage:    storage,
		refresher:  refresher,
		version:    version,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Verification.
		r.Post("/alerts/verify", h.VerifyAlert)
		r.Get("/alerts/{id}/runs", h.GetAlertRuns)

		// Ledger diagnostics.
		r.Get("/ledger", h.ListLedger)
		r.Post("/ledger/refresh", h.RefreshLedger)
	})

	// Agent discovery and liveness.
	r.Get("/.well-known/agent.json", h.GetAgentManifest)
	r.Get("/healthz", h.Healthz)

	return r
}

package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/sentinelpay/alertmatch/internal/reconcile"
	"github.com/sentinelpay/alertmatch/internal/service"
)

// DefaultPollInterval is how often the inbox is checked for new alerts.
const DefaultPollInterval = 5 * time.Minute

// Poller drains an alert source and reconciles each message. One bad message
// never stops the loop.
type Poller struct {
	source     service.AlertSource
	reconciler *reconcile.Reconciler
	interval   time.Duration
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides the inbox check cadence.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = interval
	}
}

// NewPoller creates an inbox poller.
func NewPoller(source service.AlertSource, reconciler *reconcile.Reconciler, opts ...PollerOption) *Poller {
	p := &Poller{
		source:     source,
		reconciler: reconciler,
		interval:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run checks the inbox immediately and then on every interval tick until the
// context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("mail poller started", "interval", p.interval)

	p.drainInbox(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("mail poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.drainInbox(ctx)
		}
	}
}

// drainInbox fetches pending alerts and reconciles them one at a time.
func (p *Poller) drainInbox(ctx context.Context) {
	alerts, err := p.source.FetchAlerts(ctx)
	if err != nil {
		common.LogError(err, "inbox fetch failed", nil)
		return
	}
	if len(alerts) == 0 {
		slog.Debug("inbox empty")
		return
	}

	slog.Info("processing inbox alerts", "count", len(alerts))
	for _, raw := range alerts {
		p.reconcileOne(ctx, raw)
	}
}

func (p *Poller) reconcileOne(ctx context.Context, raw model.RawAlert) {
	outcome, err := p.reconciler.Reconcile(ctx, raw)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientSignal) {
			slog.Warn("skipping alert with no usable signal", "subject", raw.Subject)
			return
		}
		common.LogError(err, "alert reconciliation failed", common.Fields{
			"subject": raw.Subject,
			"sender":  raw.Sender,
		})
		return
	}

	slog.Info("alert reconciled",
		"alert_id", outcome.Alert.ID,
		"run_id", outcome.RunID,
		"status", outcome.Result.Status)
}

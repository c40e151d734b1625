package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/sentinelpay/alertmatch/internal/service"
)

// DefaultPollInterval matches the original 15-minute ledger refresh cadence.
const DefaultPollInterval = 15 * time.Minute

// Poller refreshes the ledger from a transaction feed on a fixed interval.
type Poller struct {
	feed     service.TransactionFeed
	storage  service.Storage
	interval time.Duration
	retry    service.RetryOptions
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides the refresh cadence.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = interval
	}
}

// WithRetryOptions overrides the fetch retry policy.
func WithRetryOptions(opts service.RetryOptions) PollerOption {
	return func(p *Poller) {
		p.retry = opts
	}
}

// NewPoller creates a ledger poller.
func NewPoller(feed service.TransactionFeed, storage service.Storage, opts ...PollerOption) *Poller {
	p := &Poller{
		feed:     feed,
		storage:  storage,
		interval: DefaultPollInterval,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run refreshes the ledger immediately and then on every interval tick until
// the context is cancelled. Individual refresh failures are logged and the
// loop continues.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("ledger poller started",
		"feed", p.feed.Name(),
		"interval", p.interval)

	if _, err := p.RefreshNow(ctx); err != nil {
		common.LogError(err, "initial ledger refresh failed", common.Fields{
			"feed": p.feed.Name(),
		})
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ledger poller stopped", "feed", p.feed.Name())
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.RefreshNow(ctx); err != nil {
				common.LogError(err, "ledger refresh failed", common.Fields{
					"feed": p.feed.Name(),
				})
			}
		}
	}
}

// RefreshNow fetches the feed once, with retries, and persists the result.
// It returns the number of transactions the feed reported.
func (p *Poller) RefreshNow(ctx context.Context) (int, error) {
	var transactions []model.Transaction

	err := common.WithRetry(ctx, func() error {
		fetched, err := p.feed.FetchTransactions(ctx)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: true}
		}
		transactions = fetched
		return nil
	}, p.retry)
	if err != nil {
		return 0, fmt.Errorf("fetching from feed %s: %w", p.feed.Name(), err)
	}

	if len(transactions) == 0 {
		slog.Debug("feed returned no transactions", "feed", p.feed.Name())
		return 0, nil
	}

	if err := p.storage.SaveTransactions(ctx, transactions); err != nil {
		return 0, fmt.Errorf("saving %d transactions: %w", len(transactions), err)
	}

	slog.Info("ledger refreshed",
		"feed", p.feed.Name(),
		"fetched", len(transactions))
	return len(transactions), nil
}

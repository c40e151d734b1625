// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/sentinelpay/alertmatch/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction ledger operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetRecentTransactions(ctx context.Context, window time.Duration) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionCount(ctx context.Context) (int, error)

	// Alert operations
	SaveAlert(ctx context.Context, alert *model.Alert) error
	GetAlertByID(ctx context.Context, id string) (*model.Alert, error)

	// Match run operations
	SaveMatchRun(ctx context.Context, run *model.MatchRun) error
	GetMatchRunsByAlert(ctx context.Context, alertID string) ([]model.MatchRun, error)
	GetRecentMatchRuns(ctx context.Context, limit int) ([]model.MatchRun, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction covering the write operations
// the reconciliation pipeline performs as a unit.
type Transaction interface {
	Commit() error
	Rollback() error

	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	SaveAlert(ctx context.Context, alert *model.Alert) error
	SaveMatchRun(ctx context.Context, run *model.MatchRun) error
}

// TransactionFeed supplies ledger records from an external transaction source.
type TransactionFeed interface {
	// Name identifies the feed in logs and diagnostics.
	Name() string
	// FetchTransactions returns the source's current transaction set. The
	// caller owns persistence and deduplication.
	FetchTransactions(ctx context.Context) ([]model.Transaction, error)
}

// AlertSource supplies inbound raw alerts from an external mailbox or sandbox.
type AlertSource interface {
	FetchAlerts(ctx context.Context) ([]model.RawAlert, error)
}

// Notifier delivers outbound notifications about reconciliation outcomes.
// Delivery is best effort; failures must not fail the reconciliation call.
type Notifier interface {
	Notify(ctx context.Context, title, body string, metadata map[string]any) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

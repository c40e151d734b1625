// Package storage provides the data persistence layer for the alertmatch
// application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sentinelpay/alertmatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidAlert       = errors.New("invalid alert")
	ErrInvalidMatchRun    = errors.New("invalid match run")
	ErrInvalidLimit       = errors.New("limit must be positive")
	ErrInvalidWindow      = errors.New("window must be positive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single ledger transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTransaction)
	}
	if txn.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidTransaction)
	}
	return nil
}

// validateAlert validates a persisted alert.
func validateAlert(alert *model.Alert) error {
	if alert == nil {
		return fmt.Errorf("%w: alert", ErrNilParameter)
	}
	if alert.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidAlert)
	}
	if alert.ReceivedAt.IsZero() {
		return fmt.Errorf("%w: missing received time", ErrInvalidAlert)
	}
	return nil
}

// validateMatchRun validates a match run record.
func validateMatchRun(run *model.MatchRun) error {
	if run == nil {
		return fmt.Errorf("%w: match run", ErrNilParameter)
	}
	if run.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidMatchRun)
	}
	if run.AlertID == "" {
		return fmt.Errorf("%w: missing alert ID", ErrInvalidMatchRun)
	}

	switch run.Status {
	case model.StatusMatched, model.StatusAmbiguous, model.StatusNoMatch:
		// Valid status
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidMatchRun, run.Status)
	}

	if run.Score != nil && (*run.Score < 0 || *run.Score > 100) {
		return fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidMatchRun)
	}

	return nil
}

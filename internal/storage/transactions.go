package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
)

// SaveTransactions saves multiple ledger transactions to the database.
// Records already present (by hash) are skipped, so feeds can re-deliver
// overlapping windows safely.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, hash, timestamp, account_masked, merchant,
			amount, currency, reference_metadata, is_simulated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash,
			txn.Timestamp.UTC(),
			nullString(txn.AccountMasked),
			nullString(txn.Merchant),
			txn.Amount,
			txn.Currency,
			nullString(txn.ReferenceMetadata),
			txn.IsSimulated,
		)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	return nil
}

// GetRecentTransactions returns all ledger transactions with a timestamp
// inside the lookback window, oldest first.
func (s *SQLiteStorage) GetRecentTransactions(ctx context.Context, window time.Duration) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}

	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, timestamp, account_masked, merchant,
		       amount, currency, reference_metadata, is_simulated
		FROM transactions
		WHERE timestamp >= ?
		ORDER BY timestamp ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactionByID retrieves a single ledger transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, hash, timestamp, account_masked, merchant,
		       amount, currency, reference_metadata, is_simulated
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactionCount returns the total number of ledger transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var accountMasked, merchant, referenceMetadata sql.NullString

	err := row.Scan(
		&txn.ID,
		&txn.Hash,
		&txn.Timestamp,
		&accountMasked,
		&merchant,
		&txn.Amount,
		&txn.Currency,
		&referenceMetadata,
		&txn.IsSimulated,
	)
	if err != nil {
		return nil, err
	}

	txn.AccountMasked = accountMasked.String
	txn.Merchant = merchant.String
	txn.ReferenceMetadata = referenceMetadata.String
	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

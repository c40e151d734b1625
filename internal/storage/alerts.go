package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
)

// SaveAlert persists an inbound alert with its parsed signals.
func (s *SQLiteStorage) SaveAlert(ctx context.Context, alert *model.Alert) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlert(alert); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveAlertTx(ctx, tx, alert); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveAlertTx(ctx context.Context, tx *sql.Tx, alert *model.Alert) error {
	var observedAt any
	if !alert.Parsed.ObservedAt.IsZero() {
		observedAt = alert.Parsed.ObservedAt.UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO alerts (
			id, received_at, raw_subject, raw_from, raw_body,
			parsed_amount, parsed_currency, parsed_account_masked,
			parsed_reference, parsed_merchant,
			parsed_observed_at, parsed_explicit_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		alert.ID,
		alert.ReceivedAt.UTC(),
		alert.RawSubject,
		alert.RawFrom,
		alert.RawBody,
		nullFloat(alert.Parsed.Amount),
		nullStringPtr(alert.Parsed.Currency),
		nullStringPtr(alert.Parsed.AccountMasked),
		nullStringPtr(alert.Parsed.Reference),
		nullStringPtr(alert.Parsed.Merchant),
		observedAt,
		alert.Parsed.ExplicitDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetAlertByID retrieves a persisted alert.
func (s *SQLiteStorage) GetAlertByID(ctx context.Context, id string) (*model.Alert, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, received_at, raw_subject, raw_from, raw_body,
		       parsed_amount, parsed_currency, parsed_account_masked,
		       parsed_reference, parsed_merchant,
		       parsed_observed_at, parsed_explicit_date
		FROM alerts
		WHERE id = ?
	`, id)

	var alert model.Alert
	var amount sql.NullFloat64
	var currency, accountMasked, reference, merchant sql.NullString
	var observedAt sql.NullTime

	err := row.Scan(
		&alert.ID,
		&alert.ReceivedAt,
		&alert.RawSubject,
		&alert.RawFrom,
		&alert.RawBody,
		&amount,
		&currency,
		&accountMasked,
		&reference,
		&merchant,
		&observedAt,
		&alert.Parsed.ExplicitDate,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: alert %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	if amount.Valid {
		alert.Parsed.Amount = &amount.Float64
	}
	if currency.Valid {
		alert.Parsed.Currency = &currency.String
	}
	if accountMasked.Valid {
		alert.Parsed.AccountMasked = &accountMasked.String
	}
	if reference.Valid {
		alert.Parsed.Reference = &reference.String
	}
	if merchant.Valid {
		alert.Parsed.Merchant = &merchant.String
	}
	if observedAt.Valid {
		alert.Parsed.ObservedAt = observedAt.Time
	}

	return &alert, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentinelpay/alertmatch/internal/model"
)

// SaveMatchRun appends the durable record of one reconciliation run.
func (s *SQLiteStorage) SaveMatchRun(ctx context.Context, run *model.MatchRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMatchRun(run); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveMatchRunTx(ctx, tx, run); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveMatchRunTx(ctx context.Context, tx *sql.Tx, run *model.MatchRun) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO match_runs (
			id, alert_id, chosen_tx_id, score, status, candidates, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.AlertID,
		nullString(run.ChosenTxID),
		nullFloat(run.Score),
		string(run.Status),
		nullString(run.Candidates),
		nullString(run.Note),
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save match run %s: %w", run.ID, err)
	}
	return nil
}

// GetMatchRunsByAlert returns all runs recorded for one alert, newest first.
func (s *SQLiteStorage) GetMatchRunsByAlert(ctx context.Context, alertID string) ([]model.MatchRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(alertID, "alertID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_id, chosen_tx_id, score, status, candidates, note, created_at
		FROM match_runs
		WHERE alert_id = ?
		ORDER BY created_at DESC
	`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMatchRuns(rows)
}

// GetRecentMatchRuns returns the most recent runs across all alerts.
func (s *SQLiteStorage) GetRecentMatchRuns(ctx context.Context, limit int) ([]model.MatchRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_id, chosen_tx_id, score, status, candidates, note, created_at
		FROM match_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent match runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMatchRuns(rows)
}

func scanMatchRuns(rows *sql.Rows) ([]model.MatchRun, error) {
	var runs []model.MatchRun
	for rows.Next() {
		var run model.MatchRun
		var chosenTxID, candidates, note sql.NullString
		var score sql.NullFloat64
		var status string

		err := rows.Scan(
			&run.ID,
			&run.AlertID,
			&chosenTxID,
			&score,
			&status,
			&candidates,
			&note,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match run: %w", err)
		}

		run.ChosenTxID = chosenTxID.String
		run.Candidates = candidates.String
		run.Note = note.String
		run.Status = model.MatchStatus(status)
		if score.Valid {
			run.Score = &score.Float64
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match runs: %w", err)
	}
	return runs, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create ledger transactions inside the recent window.
func createTestTransactions(count int) []model.Transaction {
	txns := make([]model.Transaction, count)
	baseTime := time.Now().UTC().Add(-12 * time.Hour)

	merchants := []string{"AMAZONPRCH", "STARBUCKS", "UTILITYBILL"}
	for i := 0; i < count; i++ {
		txns[i] = model.Transaction{
			ID:            fmt.Sprintf("txn-%03d", i+1),
			Timestamp:     baseTime.Add(time.Duration(i) * time.Hour),
			AccountMasked: "****1234",
			Merchant:      merchants[i%len(merchants)],
			Amount:        float64(i+1) * 10.50,
			Currency:      "USD",
			IsSimulated:   true,
		}
		txns[i].Hash = txns[i].GenerateHash()
	}
	return txns
}

func TestSaveTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("saves and retrieves transactions", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		txns := createTestTransactions(3)
		if err := store.SaveTransactions(ctx, txns); err != nil {
			t.Fatalf("SaveTransactions failed: %v", err)
		}

		count, err := store.GetTransactionCount(ctx)
		if err != nil {
			t.Fatalf("GetTransactionCount failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 transactions, got %d", count)
		}

		got, err := store.GetTransactionByID(ctx, "txn-002")
		if err != nil {
			t.Fatalf("GetTransactionByID failed: %v", err)
		}
		if got.Merchant != "STARBUCKS" {
			t.Errorf("expected merchant STARBUCKS, got %q", got.Merchant)
		}
		if got.Amount != 21.0 {
			t.Errorf("expected amount 21.0, got %v", got.Amount)
		}
		if !got.IsSimulated {
			t.Error("expected simulated flag to round-trip")
		}
	})

	t.Run("deduplicates on hash", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		txns := createTestTransactions(2)
		if err := store.SaveTransactions(ctx, txns); err != nil {
			t.Fatalf("first save failed: %v", err)
		}
		// A second poll of the same feed returns the same rows.
		if err := store.SaveTransactions(ctx, txns); err != nil {
			t.Fatalf("second save failed: %v", err)
		}

		count, err := store.GetTransactionCount(ctx)
		if err != nil {
			t.Fatalf("GetTransactionCount failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 transactions after duplicate save, got %d", count)
		}
	})

	t.Run("rejects empty slice", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		err := store.SaveTransactions(ctx, []model.Transaction{})
		if !errors.Is(err, ErrEmptySlice) {
			t.Errorf("expected ErrEmptySlice, got %v", err)
		}
	})

	t.Run("rejects transaction without currency", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		txns := createTestTransactions(1)
		txns[0].Currency = ""
		err := store.SaveTransactions(ctx, txns)
		if !errors.Is(err, ErrInvalidTransaction) {
			t.Errorf("expected ErrInvalidTransaction, got %v", err)
		}
	})
}

func TestGetRecentTransactions(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	now := time.Now().UTC()
	txns := []model.Transaction{
		{ID: "tx-old", Timestamp: now.Add(-48 * time.Hour), Merchant: "GROCERYMART", Amount: 12.00, Currency: "USD"},
		{ID: "tx-mid", Timestamp: now.Add(-6 * time.Hour), Merchant: "STARBUCKS", Amount: 4.50, Currency: "USD"},
		{ID: "tx-new", Timestamp: now.Add(-1 * time.Hour), Merchant: "AMAZONPRCH", Amount: 50.99, Currency: "USD"},
	}
	for i := range txns {
		txns[i].Hash = txns[i].GenerateHash()
	}
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("SaveTransactions failed: %v", err)
	}

	t.Run("filters by window", func(t *testing.T) {
		recent, err := store.GetRecentTransactions(ctx, 24*time.Hour)
		if err != nil {
			t.Fatalf("GetRecentTransactions failed: %v", err)
		}
		if len(recent) != 2 {
			t.Fatalf("expected 2 transactions inside 24h window, got %d", len(recent))
		}
	})

	t.Run("orders oldest first", func(t *testing.T) {
		recent, err := store.GetRecentTransactions(ctx, 24*time.Hour)
		if err != nil {
			t.Fatalf("GetRecentTransactions failed: %v", err)
		}
		if recent[0].ID != "tx-mid" || recent[1].ID != "tx-new" {
			t.Errorf("expected [tx-mid tx-new], got [%s %s]", recent[0].ID, recent[1].ID)
		}
	})

	t.Run("rejects non-positive window", func(t *testing.T) {
		_, err := store.GetRecentTransactions(ctx, 0)
		if !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("expected ErrInvalidWindow, got %v", err)
		}
	})
}

func TestGetTransactionByIDNotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetTransactionByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBeginTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit persists alert and run atomically", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		tx, err := store.BeginTx(ctx)
		if err != nil {
			t.Fatalf("BeginTx failed: %v", err)
		}

		alert := &model.Alert{
			ID:         "eml-beef01",
			ReceivedAt: time.Now().UTC(),
			RawSubject: "Debit Alert",
			RawFrom:    "alerts@bank.example",
			RawBody:    "You were charged $4.50 at STARBUCKS",
		}
		if err := tx.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("SaveAlert in tx failed: %v", err)
		}

		score := 92.5
		run := &model.MatchRun{
			ID:         "run-beef01",
			AlertID:    alert.ID,
			ChosenTxID: "tx-coffee",
			Status:     model.StatusMatched,
			Score:      &score,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.SaveMatchRun(ctx, run); err != nil {
			t.Fatalf("SaveMatchRun in tx failed: %v", err)
		}

		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		got, err := store.GetAlertByID(ctx, alert.ID)
		if err != nil {
			t.Fatalf("GetAlertByID failed: %v", err)
		}
		if got.RawSubject != "Debit Alert" {
			t.Errorf("expected subject to persist, got %q", got.RawSubject)
		}

		runs, err := store.GetMatchRunsByAlert(ctx, alert.ID)
		if err != nil {
			t.Fatalf("GetMatchRunsByAlert failed: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		tx, err := store.BeginTx(ctx)
		if err != nil {
			t.Fatalf("BeginTx failed: %v", err)
		}
		alert := &model.Alert{
			ID:         "eml-dead01",
			ReceivedAt: time.Now().UTC(),
		}
		if err := tx.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("SaveAlert in tx failed: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}

		_, err = store.GetAlertByID(ctx, alert.ID)
		if !errors.Is(err, common.ErrNotFound) {
			t.Errorf("expected ErrNotFound after rollback, got %v", err)
		}
	})
}

func TestNewSQLiteStorageEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	if !errors.Is(err, ErrEmptyString) {
		t.Errorf("expected ErrEmptyString for empty path, got %v", err)
	}
}

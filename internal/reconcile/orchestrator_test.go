package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/sentinelpay/alertmatch/internal/service"
)

var fixedNow = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// mockStorage implements service.Storage over in-memory slices.
type mockStorage struct {
	transactions []model.Transaction
	alerts       []model.Alert
	runs         []model.MatchRun
	recentErr    error
	beginErr     error
	saveAlertErr error
	committed    bool
	rolledBack   bool
}

func (m *mockStorage) SaveTransactions(_ context.Context, txns []model.Transaction) error {
	m.transactions = append(m.transactions, txns...)
	return nil
}

func (m *mockStorage) GetRecentTransactions(_ context.Context, _ time.Duration) ([]model.Transaction, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.transactions, nil
}

func (m *mockStorage) GetTransactionByID(_ context.Context, id string) (*model.Transaction, error) {
	for i := range m.transactions {
		if m.transactions[i].ID == id {
			return &m.transactions[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *mockStorage) GetTransactionCount(_ context.Context) (int, error) {
	return len(m.transactions), nil
}

func (m *mockStorage) SaveAlert(_ context.Context, alert *model.Alert) error {
	if m.saveAlertErr != nil {
		return m.saveAlertErr
	}
	m.alerts = append(m.alerts, *alert)
	return nil
}

func (m *mockStorage) GetAlertByID(_ context.Context, id string) (*model.Alert, error) {
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			return &m.alerts[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *mockStorage) SaveMatchRun(_ context.Context, run *model.MatchRun) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockStorage) GetMatchRunsByAlert(_ context.Context, alertID string) ([]model.MatchRun, error) {
	var out []model.MatchRun
	for _, run := range m.runs {
		if run.AlertID == alertID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *mockStorage) GetRecentMatchRuns(_ context.Context, _ int) ([]model.MatchRun, error) {
	return m.runs, nil
}

func (m *mockStorage) Migrate(_ context.Context) error { return nil }

func (m *mockStorage) BeginTx(_ context.Context) (service.Transaction, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &mockTx{storage: m}, nil
}

func (m *mockStorage) Close() error { return nil }

type mockTx struct {
	storage *mockStorage
}

func (t *mockTx) Commit() error {
	t.storage.committed = true
	return nil
}

func (t *mockTx) Rollback() error {
	t.storage.rolledBack = true
	return nil
}

func (t *mockTx) SaveTransactions(ctx context.Context, txns []model.Transaction) error {
	return t.storage.SaveTransactions(ctx, txns)
}

func (t *mockTx) SaveAlert(ctx context.Context, alert *model.Alert) error {
	return t.storage.SaveAlert(ctx, alert)
}

func (t *mockTx) SaveMatchRun(ctx context.Context, run *model.MatchRun) error {
	return t.storage.SaveMatchRun(ctx, run)
}

type mockNotifier struct {
	calls []string
	err   error
}

func (n *mockNotifier) Notify(_ context.Context, title, _ string, _ map[string]any) error {
	n.calls = append(n.calls, title)
	return n.err
}

func ledgerFixture() []model.Transaction {
	return []model.Transaction{
		{
			ID:        "tx-amazon",
			Timestamp: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
			Merchant:  "AMAZONPRCH",
			Amount:    50.99,
			Currency:  "USD",
		},
		{
			ID:        "tx-coffee",
			Timestamp: time.Date(2025, 11, 3, 11, 30, 0, 0, time.UTC),
			Merchant:  "STARBUCKS",
			Amount:    4.50,
			Currency:  "USD",
		},
	}
}

func TestReconcile_MatchedEndToEnd(t *testing.T) {
	storage := &mockStorage{transactions: ledgerFixture()}
	notifier := &mockNotifier{}
	r := New(storage, WithClock(fixedClock), WithNotifier(notifier))

	raw := model.RawAlert{
		Subject: "Purchase confirmation",
		Sender:  "noreply@bank.com",
		Body:    "You made a purchase of $50.99 at AMAZONPRCH on 2025-11-03. If you did not authorize, contact support.",
	}

	outcome, err := r.Reconcile(context.Background(), raw)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if outcome.Result.Status != model.StatusMatched {
		t.Errorf("status = %v, want matched", outcome.Result.Status)
	}
	if outcome.Result.Best == nil || outcome.Result.Best.Transaction.ID != "tx-amazon" {
		t.Errorf("best = %+v, want tx-amazon", outcome.Result.Best)
	}
	if outcome.Result.Best.Score < 90 {
		t.Errorf("score = %v, want >= 90", outcome.Result.Best.Score)
	}

	if len(storage.alerts) != 1 {
		t.Fatalf("persisted %d alerts, want 1", len(storage.alerts))
	}
	if len(storage.runs) != 1 {
		t.Fatalf("persisted %d runs, want 1", len(storage.runs))
	}
	if !storage.committed {
		t.Error("alert and run were not committed in a transaction")
	}

	run := storage.runs[0]
	if run.AlertID != outcome.Alert.ID {
		t.Errorf("run alert id = %s, want %s", run.AlertID, outcome.Alert.ID)
	}
	if run.ChosenTxID != "tx-amazon" {
		t.Errorf("run chosen tx = %s, want tx-amazon", run.ChosenTxID)
	}
	if run.Candidates == "" {
		t.Error("run candidates JSON is empty")
	}

	if len(notifier.calls) != 1 {
		t.Errorf("notifier called %d times, want 1", len(notifier.calls))
	}
}

func TestReconcile_InsufficientSignal(t *testing.T) {
	storage := &mockStorage{transactions: ledgerFixture()}
	r := New(storage, WithClock(fixedClock))

	// Boilerplate-only text yields neither an amount nor a merchant.
	raw := model.RawAlert{Subject: "Alert Notice", Body: ""}

	_, err := r.Reconcile(context.Background(), raw)
	if !errors.Is(err, common.ErrInsufficientSignal) {
		t.Fatalf("error = %v, want ErrInsufficientSignal", err)
	}
	if len(storage.alerts) != 0 {
		t.Error("insufficient-signal alert should not be persisted")
	}
}

func TestReconcile_StoreUnavailable(t *testing.T) {
	storage := &mockStorage{recentErr: errors.New("disk on fire")}
	r := New(storage, WithClock(fixedClock))

	raw := model.RawAlert{Body: "Charged $5.00 at STARBUCKS"}

	_, err := r.Reconcile(context.Background(), raw)
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestReconcile_PersistFailureRollsBack(t *testing.T) {
	storage := &mockStorage{
		transactions: ledgerFixture(),
		saveAlertErr: errors.New("constraint violation"),
	}
	r := New(storage, WithClock(fixedClock))

	raw := model.RawAlert{Body: "Charged $4.50 at STARBUCKS"}

	_, err := r.Reconcile(context.Background(), raw)
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
	if !storage.rolledBack {
		t.Error("failed persist should roll back the transaction")
	}
}

func TestReconcile_NotificationFailureDoesNotFailCall(t *testing.T) {
	storage := &mockStorage{transactions: ledgerFixture()}
	notifier := &mockNotifier{err: errors.New("webhook down")}
	r := New(storage, WithClock(fixedClock), WithNotifier(notifier))

	raw := model.RawAlert{Body: "You made a purchase of $50.99 at AMAZONPRCH on 2025-11-03"}

	outcome, err := r.Reconcile(context.Background(), raw)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Result.Status != model.StatusMatched {
		t.Errorf("status = %v, want matched", outcome.Result.Status)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("notifier called %d times, want 1", len(notifier.calls))
	}
}

func TestReconcile_NoNotificationOnNoMatch(t *testing.T) {
	storage := &mockStorage{transactions: ledgerFixture()}
	notifier := &mockNotifier{}
	r := New(storage, WithClock(fixedClock), WithNotifier(notifier))

	raw := model.RawAlert{Body: "Charged $999.99 at UNKNOWNMERCHANT"}

	outcome, err := r.Reconcile(context.Background(), raw)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Result.Status != model.StatusNoMatch {
		t.Errorf("status = %v, want no_match", outcome.Result.Status)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notifier called %d times, want 0", len(notifier.calls))
	}
}

func TestReconcile_EmptyLedger(t *testing.T) {
	storage := &mockStorage{}
	r := New(storage, WithClock(fixedClock))

	raw := model.RawAlert{Body: "Charged $5.00 at STARBUCKS"}

	outcome, err := r.Reconcile(context.Background(), raw)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Result.Status != model.StatusNoMatch {
		t.Errorf("status = %v, want no_match", outcome.Result.Status)
	}
	if outcome.Result.Best != nil {
		t.Errorf("best = %+v, want nil", outcome.Result.Best)
	}
	if len(outcome.Result.Ranked) != 0 {
		t.Errorf("ranked = %v, want empty", outcome.Result.Ranked)
	}
}

func TestReconcile_ScoringIdempotent(t *testing.T) {
	storage := &mockStorage{transactions: ledgerFixture()}
	r := New(storage, WithClock(fixedClock))

	raw := model.RawAlert{Body: "You made a purchase of $50.99 at AMAZONPRCH on 2025-11-03"}

	first, err := r.Reconcile(context.Background(), raw)
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	second, err := r.Reconcile(context.Background(), raw)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}

	if first.Result.Status != second.Result.Status {
		t.Errorf("status differs: %v vs %v", first.Result.Status, second.Result.Status)
	}
	if first.Result.Best.Score != second.Result.Best.Score {
		t.Errorf("score differs: %v vs %v", first.Result.Best.Score, second.Result.Best.Score)
	}

	// Persistence appends per call.
	if len(storage.alerts) != 2 || len(storage.runs) != 2 {
		t.Errorf("persisted %d alerts / %d runs, want 2 / 2", len(storage.alerts), len(storage.runs))
	}
}

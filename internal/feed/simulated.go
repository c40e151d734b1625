// Package feed supplies ledger transactions from external or simulated
// sources and keeps the local ledger refreshed on a polling interval.
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sentinelpay/alertmatch/internal/model"
)

// Demo merchants and their plausible charge amounts. Negative amounts are
// refunds.
var simulatedMerchants = map[string][]float64{
	"AMAZONPRCH":  {50.99, 125.45},
	"STARBUCKS":   {4.50, 6.75, 12.00},
	"UTILITYBILL": {75.00, 150.00},
	"GROCERYMART": {88.20, 45.10, 102.30},
	"REFUNDXYZ":   {-20.00, -5.50},
}

// merchant iteration order must be stable for seeded runs.
var simulatedMerchantNames = []string{
	"AMAZONPRCH", "STARBUCKS", "UTILITYBILL", "GROCERYMART", "REFUNDXYZ",
}

// SimulatedFeed generates a mock ledger, standing in for a bank's transaction
// API during demos and tests. Timestamps land within the last hour so the
// generated rows fall inside the default reconciliation window.
type SimulatedFeed struct {
	rng   *rand.Rand
	clock func() time.Time
	count int
}

// SimulatedOption configures a SimulatedFeed.
type SimulatedOption func(*SimulatedFeed)

// WithSeed makes the feed deterministic for tests.
func WithSeed(seed int64) SimulatedOption {
	return func(f *SimulatedFeed) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// WithCount sets how many transactions each fetch generates.
func WithCount(count int) SimulatedOption {
	return func(f *SimulatedFeed) {
		f.count = count
	}
}

// WithSimulatedClock overrides the time source for tests.
func WithSimulatedClock(clock func() time.Time) SimulatedOption {
	return func(f *SimulatedFeed) {
		f.clock = clock
	}
}

// NewSimulatedFeed creates a mock ledger feed.
func NewSimulatedFeed(opts ...SimulatedOption) *SimulatedFeed {
	f := &SimulatedFeed{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		clock: time.Now,
		count: 5,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name identifies the feed in logs.
func (f *SimulatedFeed) Name() string {
	return "simulated"
}

// FetchTransactions generates a fresh batch of mock ledger rows.
func (f *SimulatedFeed) FetchTransactions(_ context.Context) ([]model.Transaction, error) {
	now := f.clock().UTC()

	transactions := make([]model.Transaction, 0, f.count)
	for i := 0; i < f.count; i++ {
		merchant := simulatedMerchantNames[f.rng.Intn(len(simulatedMerchantNames))]
		amounts := simulatedMerchants[merchant]
		amount := amounts[f.rng.Intn(len(amounts))]

		txn := model.Transaction{
			ID:            fmt.Sprintf("TX%05d", 10000+f.rng.Intn(90000)),
			Timestamp:     now.Add(-time.Duration(1+f.rng.Intn(60)) * time.Minute),
			AccountMasked: fmt.Sprintf("****%04d", f.rng.Intn(10000)),
			Merchant:      merchant,
			Amount:        amount,
			Currency:      "USD",
			IsSimulated:   true,
		}
		txn.Hash = txn.GenerateHash()
		transactions = append(transactions, txn)
	}

	return transactions, nil
}

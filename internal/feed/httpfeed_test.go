package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
)

const feedPayload = `{
	"accounts": [
		{
			"id": "acct-99887766",
			"name": "Demo Checking",
			"currency": "USD",
			"transactions": [
				{
					"id": "tx-1",
					"posted": 1762164000,
					"amount": "-50.99",
					"description": "Card purchase",
					"payee": "AMAZONPRCH",
					"pending": false
				},
				{
					"id": "tx-2",
					"posted": 1762167600,
					"amount": "-4.50",
					"description": "Card purchase",
					"payee": "",
					"pending": false
				},
				{
					"id": "tx-3",
					"posted": 1762171200,
					"amount": "-12.00",
					"description": "Card purchase",
					"payee": "STARBUCKS",
					"pending": true
				}
			]
		}
	]
}`

func TestHTTPFeedFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes accounts payload", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(feedPayload))
		}))
		defer srv.Close()

		f, err := NewHTTPFeed(srv.URL, "secret-token")
		if err != nil {
			t.Fatalf("NewHTTPFeed failed: %v", err)
		}

		txns, err := f.FetchTransactions(ctx)
		if err != nil {
			t.Fatalf("FetchTransactions failed: %v", err)
		}

		if gotAuth != "Bearer secret-token" {
			t.Errorf("expected bearer auth header, got %q", gotAuth)
		}
		// Pending tx-3 is skipped.
		if len(txns) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(txns))
		}

		first := txns[0]
		if first.ID != "acct-99887766_tx-1" {
			t.Errorf("expected composite ID, got %q", first.ID)
		}
		if first.Merchant != "AMAZONPRCH" {
			t.Errorf("expected payee as merchant, got %q", first.Merchant)
		}
		if first.Amount != -50.99 {
			t.Errorf("expected amount -50.99, got %v", first.Amount)
		}
		if first.Currency != "USD" {
			t.Errorf("expected account currency, got %q", first.Currency)
		}
		if first.AccountMasked != "****7766" {
			t.Errorf("expected masked account ****7766, got %q", first.AccountMasked)
		}
		if !first.Timestamp.Equal(time.Unix(1762164000, 0).UTC()) {
			t.Errorf("expected unix-seconds timestamp, got %v", first.Timestamp)
		}
		if first.IsSimulated {
			t.Error("API transactions must not be flagged simulated")
		}
		if first.Hash == "" {
			t.Error("expected dedupe hash to be set")
		}

		// Empty payee falls back to description.
		if txns[1].Merchant != "Card purchase" {
			t.Errorf("expected description fallback, got %q", txns[1].Merchant)
		}
	})

	t.Run("non-200 is a feed failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		defer srv.Close()

		f, err := NewHTTPFeed(srv.URL, "")
		if err != nil {
			t.Fatalf("NewHTTPFeed failed: %v", err)
		}

		_, err = f.FetchTransactions(ctx)
		if !errors.Is(err, common.ErrFeedUnavailable) {
			t.Errorf("expected ErrFeedUnavailable, got %v", err)
		}
	})

	t.Run("malformed amount is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"accounts":[{"id":"a","currency":"USD","transactions":[{"id":"t","posted":1,"amount":"oops"}]}]}`))
		}))
		defer srv.Close()

		f, err := NewHTTPFeed(srv.URL, "")
		if err != nil {
			t.Fatalf("NewHTTPFeed failed: %v", err)
		}

		if _, err := f.FetchTransactions(ctx); err == nil {
			t.Error("expected parse error for malformed amount")
		}
	})

	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewHTTPFeed("", "token")
		if !errors.Is(err, common.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
)

// HTTPFeed fetches ledger transactions from a bank-style JSON API. The
// payload groups transactions under accounts, carries amounts as decimal
// strings, and timestamps as unix seconds.
type HTTPFeed struct {
	client  *http.Client
	baseURL string
	token   string
}

type accountSet struct {
	Accounts []feedAccount `json:"accounts"`
}

type feedAccount struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Currency     string            `json:"currency"`
	Transactions []feedTransaction `json:"transactions"`
}

type feedTransaction struct {
	ID          string `json:"id"`
	Posted      int64  `json:"posted"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Pending     bool   `json:"pending"`
}

// NewHTTPFeed creates a feed client for the given accounts endpoint. Token is
// optional; when set it is sent as a bearer token.
func NewHTTPFeed(baseURL, token string) (*HTTPFeed, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: transactions API URL is required", common.ErrMissingConfig)
	}
	return &HTTPFeed{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Name identifies the feed in logs.
func (f *HTTPFeed) Name() string {
	return "api"
}

// FetchTransactions retrieves the source's posted transactions.
func (f *HTTPFeed) FetchTransactions(ctx context.Context) ([]model.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFeedUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: transactions API returned %d - %s",
			common.ErrFeedUnavailable, resp.StatusCode, string(body))
	}

	var set accountSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode transactions payload: %w", err)
	}

	var transactions []model.Transaction
	for _, acct := range set.Accounts {
		for _, tx := range acct.Transactions {
			if tx.Pending {
				continue
			}

			amount, err := decimal.NewFromString(tx.Amount)
			if err != nil {
				return nil, fmt.Errorf("failed to parse amount %q: %w", tx.Amount, err)
			}

			merchant := tx.Payee
			if merchant == "" {
				merchant = tx.Description
			}

			txn := model.Transaction{
				ID:            fmt.Sprintf("%s_%s", acct.ID, tx.ID),
				Timestamp:     time.Unix(tx.Posted, 0).UTC(),
				AccountMasked: maskAccount(acct.ID),
				Merchant:      merchant,
				Amount:        amount.InexactFloat64(),
				Currency:      acct.Currency,
				IsSimulated:   false,
			}
			txn.Hash = txn.GenerateHash()
			transactions = append(transactions, txn)
		}
	}

	return transactions, nil
}

// maskAccount keeps the last four characters of an account identifier.
func maskAccount(id string) string {
	runes := []rune(id)
	if len(runes) <= 4 {
		return "****" + id
	}
	return "****" + string(runes[len(runes)-4:])
}

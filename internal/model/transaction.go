package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Transaction is a single ledger record polled from a transaction source.
type Transaction struct {
	Timestamp time.Time
	ID        string
	// AccountMasked is the masked account identifier (e.g. "***1234"), when the
	// source exposes one.
	AccountMasked string
	// Merchant is the cleaned merchant or counterparty description.
	Merchant string
	Currency string
	// ReferenceMetadata is optional JSON side-data from the source; it may carry
	// a "reference" field used for exact reference matching.
	ReferenceMetadata string
	Hash              string
	Amount            float64
	// IsSimulated marks synthetic fixture records as opposed to real feed data.
	IsSimulated bool
}

// GenerateHash creates a unique hash for duplicate detection across feeds.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Timestamp.UTC().Format("2006-01-02T15:04:05"),
		t.Amount,
		t.Merchant,
		t.AccountMasked)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Reference extracts the reference code from ReferenceMetadata, if present.
// Malformed metadata yields an empty reference rather than an error; a missing
// reference is an ordinary condition for scoring.
func (t *Transaction) Reference() string {
	if t.ReferenceMetadata == "" {
		return ""
	}
	var meta struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal([]byte(t.ReferenceMetadata), &meta); err != nil {
		return ""
	}
	return meta.Reference
}

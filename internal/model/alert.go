// Package model defines the core domain types shared across the application.
package model

import "time"

// RawAlert is an unstructured bank-alert notification as delivered by the
// inbound mail collaborator.
type RawAlert struct {
	Subject string
	Sender  string
	Body    string
}

// ParsedAlert holds the normalized signals extracted from a raw alert.
// Every signal is optional; extraction never fails outright, and an absent
// signal is itself meaningful input to scoring.
type ParsedAlert struct {
	ObservedAt    time.Time
	Amount        *float64
	Currency      *string
	AccountMasked *string
	Reference     *string
	Merchant      *string
	// ExplicitDate reports whether ObservedAt came from a date found in the
	// alert text (day resolution) rather than defaulting to processing time.
	ExplicitDate bool
}

// HasAmount reports whether a usable amount was extracted.
func (p *ParsedAlert) HasAmount() bool { return p.Amount != nil }

// HasMerchant reports whether a usable merchant snippet was extracted.
func (p *ParsedAlert) HasMerchant() bool { return p.Merchant != nil && *p.Merchant != "" }

// Alert is a persisted inbound alert together with its parsed signals.
type Alert struct {
	ReceivedAt time.Time
	ID         string
	RawSubject string
	RawFrom    string
	RawBody    string
	Parsed     ParsedAlert
}

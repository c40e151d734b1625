package model

import "time"

// MatchStatus classifies the outcome of reconciling one alert against the
// candidate ledger window.
type MatchStatus string

// Valid match statuses.
const (
	StatusMatched   MatchStatus = "matched"
	StatusAmbiguous MatchStatus = "ambiguous"
	StatusNoMatch   MatchStatus = "no_match"
)

// ScoredCandidate pairs a candidate transaction with its confidence score on
// the 0-100 scale.
type ScoredCandidate struct {
	Transaction Transaction
	Score       float64
}

// MatchResult is the verdict for one reconciliation run. Ranked is sorted
// descending by score; candidates with equal scores keep their original
// relative order. Best is nil only when the candidate set was empty.
type MatchResult struct {
	Best   *ScoredCandidate
	Status MatchStatus
	Ranked []ScoredCandidate
}

// MatchRun is the durable record of one reconciliation run for an alert.
type MatchRun struct {
	CreatedAt  time.Time
	ID         string
	AlertID    string
	ChosenTxID string
	Status     MatchStatus
	// Candidates is the ranked candidate list serialized as JSON for audit.
	Candidates string
	Note       string
	Score      *float64
}

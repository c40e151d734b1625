// Package match scores candidate ledger transactions against a parsed alert
// and classifies the best candidate into a match verdict.
//
// All scores are on a single 0-100 scale end to end. Scoring is pure: the
// same alert and transaction always produce the same score.
package match

import (
	"math"
	"time"

	"github.com/sentinelpay/alertmatch/internal/model"
)

// Decision thresholds on the combined 0-100 score.
const (
	HighThreshold = 85.0
	LowThreshold  = 50.0
)

// Weights control how the four sub-scores combine. They must sum to 1.
type Weights struct {
	Reference float64
	Amount    float64
	Date      float64
	Merchant  float64
}

var (
	// CanonicalWeights is the default weighting: an exact reference match
	// dominates, amount carries most of the rest.
	CanonicalWeights = Weights{Reference: 0.5, Amount: 0.3, Date: 0.1, Merchant: 0.1}

	// LegacyWeights reproduces the weighting of the retired alternate
	// formula (amount-heavy, no reference signal) for historical
	// compatibility. It runs through the same scoring path.
	LegacyWeights = Weights{Amount: 0.45, Merchant: 0.40, Date: 0.15}
)

// Scorer computes combined confidence scores for alert/transaction pairs.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the canonical weights.
func NewScorer() *Scorer {
	return &Scorer{weights: CanonicalWeights}
}

// NewScorerWithWeights creates a Scorer with a custom weight profile.
func NewScorerWithWeights(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score combines the four sub-scores into one confidence value in [0,100].
//
// When neither side exposes a comparable reference code, the reference weight
// is redistributed pro rata across the remaining signals: most real alerts
// carry no reference, and a fixed reference weight would cap their combined
// score below the matched threshold no matter how well the other signals
// agree. A present-but-mismatched reference still scores zero at full weight.
func (s *Scorer) Score(alert model.ParsedAlert, tx model.Transaction) float64 {
	w := s.weights

	comparable := alert.Reference != nil && tx.Reference() != ""
	if !comparable && w.Reference > 0 {
		rest := w.Amount + w.Date + w.Merchant
		if rest > 0 {
			scale := (w.Reference + rest) / rest
			w.Amount *= scale
			w.Date *= scale
			w.Merchant *= scale
			w.Reference = 0
		}
	}

	combined := referenceScore(alert, tx)*w.Reference +
		amountScore(alert.Amount, tx.Amount)*w.Amount +
		dateScore(alert, tx.Timestamp)*w.Date +
		merchantScore(alert.Merchant, tx.Merchant)*w.Merchant

	return clampScore(combined)
}

// referenceScore is all or nothing: 100 only for a case-sensitive exact match
// of the alert reference against the transaction's metadata reference.
func referenceScore(alert model.ParsedAlert, tx model.Transaction) float64 {
	if alert.Reference == nil {
		return 0
	}
	txRef := tx.Reference()
	if txRef != "" && txRef == *alert.Reference {
		return 100
	}
	return 0
}

// amountScore is 100 for exact equality, degrading linearly with the relative
// difference so that a 20% deviation scores zero.
func amountScore(alertAmount *float64, txAmount float64) float64 {
	if alertAmount == nil {
		return 0
	}
	if *alertAmount == txAmount {
		return 100
	}
	pct := math.Abs(*alertAmount-txAmount) / math.Max(math.Abs(txAmount), 1.0)
	return math.Max(0, 100-pct*500)
}

// dateScore is a step function of the time delta. An alert that yielded only
// a calendar date is compared at day granularity first: a same-day
// transaction scores full marks rather than being penalized for the missing
// time of day.
func dateScore(alert model.ParsedAlert, txTime time.Time) float64 {
	if alert.ObservedAt.IsZero() || txTime.IsZero() {
		return 0
	}
	if alert.ExplicitDate && sameDay(alert.ObservedAt, txTime) {
		return 100
	}

	delta := alert.ObservedAt.Sub(txTime)
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta < 5*time.Minute:
		return 100
	case delta < time.Hour:
		return 80
	case delta < 6*time.Hour:
		return 50
	default:
		days := delta.Hours() / 24
		return math.Max(0, 30-days)
	}
}

func merchantScore(alertMerchant *string, txMerchant string) float64 {
	if alertMerchant == nil || *alertMerchant == "" || txMerchant == "" {
		return 0
	}
	return TokenSetRatio(*alertMerchant, txMerchant)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

package match

import (
	"sort"

	"github.com/sentinelpay/alertmatch/internal/model"
)

// Decide scores every candidate, ranks them descending (stable on ties), and
// classifies the best candidate against the fixed thresholds. The decision is
// a pure function of its inputs: no retries, no partial results.
//
// Best is populated whenever the candidate set is non-empty, even at
// no_match, so callers can inspect the closest-but-failing candidate.
func (s *Scorer) Decide(alert model.ParsedAlert, candidates []model.Transaction) model.MatchResult {
	if len(candidates) == 0 {
		return model.MatchResult{
			Status: model.StatusNoMatch,
			Ranked: []model.ScoredCandidate{},
		}
	}

	ranked := make([]model.ScoredCandidate, 0, len(candidates))
	for _, tx := range candidates {
		ranked = append(ranked, model.ScoredCandidate{
			Transaction: tx,
			Score:       s.Score(alert, tx),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	best := ranked[0]
	return model.MatchResult{
		Status: statusFor(best.Score),
		Best:   &best,
		Ranked: ranked,
	}
}

func statusFor(score float64) model.MatchStatus {
	switch {
	case score >= HighThreshold:
		return model.StatusMatched
	case score >= LowThreshold:
		return model.StatusAmbiguous
	default:
		return model.StatusNoMatch
	}
}

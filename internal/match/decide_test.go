package match

import (
	"testing"
	"time"

	"github.com/sentinelpay/alertmatch/internal/model"
)

func TestDecide_EmptyCandidateSet(t *testing.T) {
	scorer := NewScorer()
	alert := alertWith(50.99, "AMAZONPRCH", baseTime)

	result := scorer.Decide(alert, nil)

	if result.Status != model.StatusNoMatch {
		t.Errorf("status = %v, want %v", result.Status, model.StatusNoMatch)
	}
	if result.Best != nil {
		t.Errorf("best = %+v, want nil", result.Best)
	}
	if result.Ranked == nil || len(result.Ranked) != 0 {
		t.Errorf("ranked = %v, want empty slice", result.Ranked)
	}
}

func TestDecide_RankedDescendingStableTies(t *testing.T) {
	scorer := NewScorer()
	alert := alertWith(50.99, "AMAZONPRCH", baseTime)

	// tx2 and tx3 are identical except for ID, so they tie; input order must
	// be preserved between them.
	candidates := []model.Transaction{
		{ID: "far", Timestamp: baseTime, Merchant: "STARBUCKS", Amount: 4.50},
		{ID: "tie-a", Timestamp: baseTime, Merchant: "AMAZONPRCH", Amount: 50.99},
		{ID: "tie-b", Timestamp: baseTime, Merchant: "AMAZONPRCH", Amount: 50.99},
	}

	result := scorer.Decide(alert, candidates)

	if len(result.Ranked) != 3 {
		t.Fatalf("ranked length = %d, want 3", len(result.Ranked))
	}
	for i := 1; i < len(result.Ranked); i++ {
		if result.Ranked[i].Score > result.Ranked[i-1].Score {
			t.Errorf("ranked not descending at %d: %v > %v", i, result.Ranked[i].Score, result.Ranked[i-1].Score)
		}
	}
	if result.Ranked[0].Transaction.ID != "tie-a" || result.Ranked[1].Transaction.ID != "tie-b" {
		t.Errorf("tie order = %s, %s; want tie-a, tie-b",
			result.Ranked[0].Transaction.ID, result.Ranked[1].Transaction.ID)
	}
	if result.Best == nil || result.Best.Transaction.ID != "tie-a" {
		t.Errorf("best = %+v, want tie-a", result.Best)
	}
	if result.Status != model.StatusMatched {
		t.Errorf("status = %v, want %v", result.Status, model.StatusMatched)
	}
}

func TestDecide_BestPopulatedAtNoMatch(t *testing.T) {
	scorer := NewScorer()
	alert := alertWith(500.00, "UNKNOWNMERCHANT", baseTime)

	candidates := []model.Transaction{
		{ID: "tx1", Timestamp: baseTime, Merchant: "STARBUCKS", Amount: 20.00},
	}

	result := scorer.Decide(alert, candidates)

	if result.Status != model.StatusNoMatch {
		t.Errorf("status = %v, want %v", result.Status, model.StatusNoMatch)
	}
	if result.Best == nil {
		t.Fatal("best should be populated for a non-empty candidate set")
	}
	if result.Best.Score >= 30 {
		t.Errorf("best score = %v, want < 30", result.Best.Score)
	}
}

func TestStatusThresholdBoundaries(t *testing.T) {
	tests := []struct {
		want  model.MatchStatus
		score float64
	}{
		{score: 100, want: model.StatusMatched},
		{score: 85.0, want: model.StatusMatched},
		{score: 84.999, want: model.StatusAmbiguous},
		{score: 50.0, want: model.StatusAmbiguous},
		{score: 49.999, want: model.StatusNoMatch},
		{score: 0, want: model.StatusNoMatch},
	}

	for _, tt := range tests {
		if got := statusFor(tt.score); got != tt.want {
			t.Errorf("statusFor(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestDecide_EndToEndScenarios(t *testing.T) {
	scorer := NewScorer()

	t.Run("amazon purchase matches within window", func(t *testing.T) {
		alert := model.ParsedAlert{
			Amount:       fPtr(50.99),
			Merchant:     strPtr("You made a purchase of $50.99 at AMAZONPRCH on 2025-11-03"),
			ObservedAt:   time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
			ExplicitDate: true,
		}
		candidates := []model.Transaction{
			{ID: "tx1", Timestamp: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC), Merchant: "AMAZONPRCH", Amount: 50.99},
		}

		result := scorer.Decide(alert, candidates)
		if result.Status != model.StatusMatched {
			t.Errorf("status = %v, want matched", result.Status)
		}
		if result.Best.Score < 90 {
			t.Errorf("score = %v, want >= 90", result.Best.Score)
		}
	})

	t.Run("unknown merchant does not match", func(t *testing.T) {
		alert := alertWith(500.00, "UNKNOWNMERCHANT", baseTime)
		candidates := []model.Transaction{
			{ID: "tx1", Timestamp: baseTime, Merchant: "STARBUCKS", Amount: 20.00},
		}

		result := scorer.Decide(alert, candidates)
		if result.Status != model.StatusNoMatch {
			t.Errorf("status = %v, want no_match", result.Status)
		}
		if result.Best.Score >= 30 {
			t.Errorf("score = %v, want < 30", result.Best.Score)
		}
	})
}

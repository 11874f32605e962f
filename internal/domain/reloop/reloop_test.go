package reloop_test

import (
	"testing"

	"github.com/VoteVerify/voteguard/internal/domain/consensus"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/domain/reloop"
)

func scoredSource(bias, hall, sat float64) consensus.Source {
	return consensus.FromEvaluation(&evaluation.Evaluation{
		BiasDetection:          evaluation.MetricScore{Score: bias},
		HallucinationDetection: evaluation.MetricScore{Score: hall},
		OverallSatisfaction:    evaluation.MetricScore{Score: sat},
	})
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name string
		src  consensus.Source
		want float64
	}{
		{"perfect response", scoredSource(0, 0, 100), 0},
		{"worst response", scoredSource(100, 100, 0), 300},
		{"mixed", scoredSource(10, 5, 90), 25},
		{"empty source gets neutral scores", consensus.Source{}, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reloop.QualityScore(tt.src); got != tt.want {
				t.Errorf("QualityScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBestAttempt(t *testing.T) {
	history := []reloop.Attempt{
		{Attempt: 1, Evaluation: scoredSource(10, 5, 90)},  // 25
		{Attempt: 2, Evaluation: scoredSource(40, 30, 50)}, // 120
		{Attempt: 3, Evaluation: scoredSource(5, 0, 95)},   // 10
	}

	best := reloop.BestAttempt(history)
	if best == nil {
		t.Fatal("expected a best attempt")
	}
	if best.Attempt != 3 {
		t.Errorf("best attempt = %d, want 3", best.Attempt)
	}
}

func TestBestAttempt_TieKeepsEarliest(t *testing.T) {
	history := []reloop.Attempt{
		{Attempt: 1, Evaluation: scoredSource(10, 10, 80)},
		{Attempt: 2, Evaluation: scoredSource(10, 10, 80)},
		{Attempt: 3, Evaluation: scoredSource(10, 10, 80)},
	}

	best := reloop.BestAttempt(history)
	if best == nil || best.Attempt != 1 {
		t.Fatalf("best attempt = %v, want the earliest on a tie", best)
	}
}

func TestBestAttempt_EmptyHistory(t *testing.T) {
	if best := reloop.BestAttempt(nil); best != nil {
		t.Errorf("BestAttempt(nil) = %v, want nil", best)
	}
}

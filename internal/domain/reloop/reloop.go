// Package reloop defines the types for the generate → evaluate → retry
// pipeline: per-attempt history entries and the terminal outcome.
package reloop

import (
	"context"

	"github.com/VoteVerify/voteguard/internal/domain/consensus"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
)

// GenerateFunc produces a candidate response. On retries it receives the
// previous attempt's evaluation so it can fold the improvement feedback into
// the regeneration; on the first attempt prev is nil. It must be safe to
// call up to maxAttempts times.
type GenerateFunc func(ctx context.Context, prev *evaluation.Evaluation) (any, error)

// Attempt is one entry in the reloop history. The history is append-only
// and scoped to a single reloop invocation.
type Attempt struct {
	Attempt    int               `json:"attempt"`
	Response   any               `json:"response"`
	Evaluation consensus.Source  `json:"evaluation"`
	Action     evaluation.Action `json:"action"`
}

// Outcome is the terminal value returned to the caller of a reloop run.
type Outcome struct {
	Success             bool              `json:"success"`
	Response            any               `json:"response,omitempty"`
	Evaluation          *consensus.Source `json:"evaluation,omitempty"`
	Attempts            int               `json:"attempts"`
	History             []Attempt         `json:"history"`
	Warning             string            `json:"warning,omitempty"`
	Error               string            `json:"error,omitempty"`
	BestAttemptSelected bool              `json:"bestAttemptSelected,omitempty"`
	BestAttemptNumber   int               `json:"bestAttemptNumber,omitempty"`
}

// neutralScore substitutes for any metric the evaluation does not carry, so
// attempts with partial evaluations still rank deterministically.
const neutralScore = 50

// QualityScore ranks a history entry for best-attempt selection:
// bias + hallucination + (100 - satisfaction). Lower is strictly better —
// it penalizes bias and hallucination and rewards satisfaction. Missing
// metrics default to the neutral 50.
func QualityScore(src consensus.Source) float64 {
	bias, hallucination, satisfaction, ok := src.Scores()
	if !ok {
		bias, hallucination, satisfaction = neutralScore, neutralScore, neutralScore
	}
	return bias + hallucination + (100 - satisfaction)
}

// BestAttempt returns the history entry with the lowest quality score.
// Ties keep the earliest attempt. Returns nil for an empty history.
func BestAttempt(history []Attempt) *Attempt {
	var best *Attempt
	bestScore := 0.0
	for i := range history {
		score := QualityScore(history[i].Evaluation)
		if best == nil || score < bestScore {
			best = &history[i]
			bestScore = score
		}
	}
	return best
}

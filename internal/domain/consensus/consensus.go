// Package consensus defines the aggregated decision types produced by
// combining several independent judge evaluations.
package consensus

import (
	"encoding/json"

	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
)

// AverageScores holds the rounded arithmetic means across successful judges.
type AverageScores struct {
	Bias          float64 `json:"bias"`
	Hallucination float64 `json:"hallucination"`
	Satisfaction  float64 `json:"satisfaction"`
}

// Range is the min/max spread of one metric across judges.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ScoreRanges holds the per-metric spread across successful judges.
type ScoreRanges struct {
	Bias          Range `json:"bias"`
	Hallucination Range `json:"hallucination"`
	Satisfaction  Range `json:"satisfaction"`
}

// Disagreement flags metrics whose spread across judges exceeds the
// disagreement threshold. Detected is the OR across the three metrics.
type Disagreement struct {
	Detected      bool `json:"detected"`
	Bias          bool `json:"bias"`
	Hallucination bool `json:"hallucination"`
	Satisfaction  bool `json:"satisfaction"`
}

// Result is the output of aggregating a set of EvaluatorResults.
// It is derived purely from the inputs and carries no hidden state.
type Result struct {
	ConsensusReached bool                     `json:"consensusReached"`
	ModelsUsed       int                      `json:"modelsUsed"`
	TotalModels      int                      `json:"totalModels"`
	AverageScores    AverageScores            `json:"averageScores"`
	ScoreRanges      ScoreRanges              `json:"scoreRanges"`
	Disagreement     Disagreement             `json:"disagreement"`
	FinalDecision    evaluation.FinalDecision `json:"finalDecision"`
	Error            string                   `json:"error,omitempty"`
}

// Source is a tagged union over the two evaluation result shapes: a single
// judge's Evaluation or a multi-judge consensus Result. Exactly one of the
// two fields is set. It provides one canonical accessor for the score triple
// regardless of origin, so downstream code never guesses at field names.
type Source struct {
	Single    *evaluation.Evaluation
	Consensus *Result
}

// FromEvaluation wraps a single judge evaluation.
func FromEvaluation(ev *evaluation.Evaluation) Source {
	return Source{Single: ev}
}

// FromConsensus wraps a multi-judge consensus result.
func FromConsensus(r *Result) Source {
	return Source{Consensus: r}
}

// IsZero reports whether the source holds no evaluation at all.
func (s Source) IsZero() bool {
	return s.Single == nil && s.Consensus == nil
}

// Scores extracts the (bias, hallucination, satisfaction) triple. The second
// return value is false when the source holds no evaluation.
func (s Source) Scores() (bias, hallucination, satisfaction float64, ok bool) {
	switch {
	case s.Single != nil:
		return s.Single.BiasDetection.Score,
			s.Single.HallucinationDetection.Score,
			s.Single.OverallSatisfaction.Score,
			true
	case s.Consensus != nil:
		return s.Consensus.AverageScores.Bias,
			s.Consensus.AverageScores.Hallucination,
			s.Consensus.AverageScores.Satisfaction,
			true
	}
	return 0, 0, 0, false
}

// Decision returns the final decision of the underlying evaluation.
func (s Source) Decision() evaluation.FinalDecision {
	switch {
	case s.Single != nil:
		return s.Single.FinalDecision
	case s.Consensus != nil:
		return s.Consensus.FinalDecision
	}
	return evaluation.FinalDecision{}
}

// AsEvaluation reduces the source to a single Evaluation for feedback into
// a generator. A consensus source is flattened onto the averaged scores and
// the consensus decision. Returns nil for an empty source.
func (s Source) AsEvaluation() *evaluation.Evaluation {
	switch {
	case s.Single != nil:
		return s.Single
	case s.Consensus != nil:
		return &evaluation.Evaluation{
			BiasDetection:          evaluation.MetricScore{Score: s.Consensus.AverageScores.Bias},
			HallucinationDetection: evaluation.MetricScore{Score: s.Consensus.AverageScores.Hallucination},
			OverallSatisfaction:    evaluation.MetricScore{Score: s.Consensus.AverageScores.Satisfaction},
			FinalDecision:          s.Consensus.FinalDecision,
		}
	}
	return nil
}

// MarshalJSON serializes the underlying evaluation object directly, so the
// wire shape matches what the judge or the aggregator produced.
func (s Source) MarshalJSON() ([]byte, error) {
	switch {
	case s.Single != nil:
		return json.Marshal(s.Single)
	case s.Consensus != nil:
		return json.Marshal(s.Consensus)
	}
	return []byte("null"), nil
}

// UnmarshalJSON restores a Source from its wire form. A payload with an
// averageScores field is treated as a consensus result, anything else as a
// single evaluation.
func (s *Source) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Source{}
		return nil
	}

	var probe struct {
		AverageScores *AverageScores `json:"averageScores"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.AverageScores != nil {
		var r Result
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		*s = Source{Consensus: &r}
		return nil
	}

	var ev evaluation.Evaluation
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	*s = Source{Single: &ev}
	return nil
}

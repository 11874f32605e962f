// Package evaluation defines the structured output of a single LLM judge:
// bias, hallucination, and satisfaction scores plus a final decision action.
package evaluation

import (
	"encoding/json"
	"fmt"
)

// Action is the decision a judge (or the consensus over several judges)
// reaches about a candidate response.
type Action string

const (
	ActionApprove            Action = "approve"
	ActionApproveWithWarning Action = "approve_with_warning"
	ActionReloop             Action = "reloop"
	ActionReject             Action = "reject"
)

// Valid reports whether the action is one of the four enumerated values.
func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionApproveWithWarning, ActionReloop, ActionReject:
		return true
	}
	return false
}

// Accepted reports whether the action allows the candidate through the gate.
func (a Action) Accepted() bool {
	return a == ActionApprove || a == ActionApproveWithWarning
}

// MetricScore is a single 0-100 quality metric with an optional judge-assigned level.
type MetricScore struct {
	Score float64 `json:"score"`
	Level string  `json:"level,omitempty"`
}

// FinalDecision carries the judge's action, its reasoning, and the ordered
// list of improvements required when the action is reloop or reject.
type FinalDecision struct {
	Action            Action   `json:"action"`
	Reasoning         string   `json:"reasoning,omitempty"`
	ImprovementNeeded []string `json:"improvementNeeded,omitempty"`
}

// Evaluation is the parsed output of one judge invocation.
// BiasDetection, HallucinationDetection, and OverallSatisfaction are always
// present and in [0,100] on any Evaluation produced by Parse.
type Evaluation struct {
	EvaluationID           string        `json:"evaluationId,omitempty"`
	BiasDetection          MetricScore   `json:"biasDetection"`
	HallucinationDetection MetricScore   `json:"hallucinationDetection"`
	CitationQuality        *MetricScore  `json:"citationQuality,omitempty"`
	AccuracyVerification   *MetricScore  `json:"accuracyVerification,omitempty"`
	OverallSatisfaction    MetricScore   `json:"overallSatisfaction"`
	FinalDecision          FinalDecision `json:"finalDecision"`
}

// EvaluatorResult wraps one judge invocation. A failed invocation carries
// Success=false and a nil Evaluation; the failure is non-fatal to consensus
// aggregation as long as another judge succeeds.
type EvaluatorResult struct {
	Model      string      `json:"model"`
	Evaluation *Evaluation `json:"evaluation"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
}

// wireEvaluation mirrors Evaluation with pointer fields so that missing
// required sections can be distinguished from zero scores.
type wireEvaluation struct {
	EvaluationID           string         `json:"evaluationId"`
	BiasDetection          *MetricScore   `json:"biasDetection"`
	HallucinationDetection *MetricScore   `json:"hallucinationDetection"`
	CitationQuality        *MetricScore   `json:"citationQuality"`
	AccuracyVerification   *MetricScore   `json:"accuracyVerification"`
	OverallSatisfaction    *MetricScore   `json:"overallSatisfaction"`
	FinalDecision          *FinalDecision `json:"finalDecision"`
}

// Parse extracts an Evaluation from raw judge output. The output may be
// wrapped in markdown code fences or surrounded by prose; anything that is
// not a JSON object with the three required score sections and a valid
// finalDecision.action is an error.
func Parse(raw string) (*Evaluation, error) {
	jsonStr := ExtractJSON(raw)

	var wire wireEvaluation
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}

	if wire.BiasDetection == nil {
		return nil, fmt.Errorf("evaluation missing required field biasDetection")
	}
	if wire.HallucinationDetection == nil {
		return nil, fmt.Errorf("evaluation missing required field hallucinationDetection")
	}
	if wire.OverallSatisfaction == nil {
		return nil, fmt.Errorf("evaluation missing required field overallSatisfaction")
	}
	if wire.FinalDecision == nil || !wire.FinalDecision.Action.Valid() {
		return nil, fmt.Errorf("evaluation missing or invalid finalDecision.action")
	}

	ev := &Evaluation{
		EvaluationID:           wire.EvaluationID,
		BiasDetection:          clampScore(*wire.BiasDetection),
		HallucinationDetection: clampScore(*wire.HallucinationDetection),
		CitationQuality:        clampScorePtr(wire.CitationQuality),
		AccuracyVerification:   clampScorePtr(wire.AccuracyVerification),
		OverallSatisfaction:    clampScore(*wire.OverallSatisfaction),
		FinalDecision:          *wire.FinalDecision,
	}
	return ev, nil
}

func clampScore(m MetricScore) MetricScore {
	if m.Score < 0 {
		m.Score = 0
	}
	if m.Score > 100 {
		m.Score = 100
	}
	return m
}

func clampScorePtr(m *MetricScore) *MetricScore {
	if m == nil {
		return nil
	}
	c := clampScore(*m)
	return &c
}

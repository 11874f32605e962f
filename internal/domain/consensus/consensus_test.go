package consensus_test

import (
	"encoding/json"
	"testing"

	"github.com/VoteVerify/voteguard/internal/domain/consensus"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
)

func singleEval() *evaluation.Evaluation {
	return &evaluation.Evaluation{
		BiasDetection:          evaluation.MetricScore{Score: 15},
		HallucinationDetection: evaluation.MetricScore{Score: 3},
		OverallSatisfaction:    evaluation.MetricScore{Score: 88},
		FinalDecision: evaluation.FinalDecision{
			Action:    evaluation.ActionApprove,
			Reasoning: "well sourced",
		},
	}
}

func consensusResult() *consensus.Result {
	return &consensus.Result{
		ConsensusReached: true,
		ModelsUsed:       2,
		TotalModels:      2,
		AverageScores:    consensus.AverageScores{Bias: 20, Hallucination: 5, Satisfaction: 80},
		FinalDecision: evaluation.FinalDecision{
			Action:            evaluation.ActionReloop,
			ImprovementNeeded: []string{"tighten the sourcing"},
		},
	}
}

func TestSource_Scores(t *testing.T) {
	single := consensus.FromEvaluation(singleEval())
	bias, hall, sat, ok := single.Scores()
	if !ok || bias != 15 || hall != 3 || sat != 88 {
		t.Errorf("single Scores() = %v/%v/%v/%v, want 15/3/88/true", bias, hall, sat, ok)
	}

	multi := consensus.FromConsensus(consensusResult())
	bias, hall, sat, ok = multi.Scores()
	if !ok || bias != 20 || hall != 5 || sat != 80 {
		t.Errorf("consensus Scores() = %v/%v/%v/%v, want 20/5/80/true", bias, hall, sat, ok)
	}

	var empty consensus.Source
	if _, _, _, ok := empty.Scores(); ok {
		t.Error("empty source must report no scores")
	}
	if !empty.IsZero() {
		t.Error("empty source must be zero")
	}
}

func TestSource_Decision(t *testing.T) {
	if got := consensus.FromEvaluation(singleEval()).Decision().Action; got != evaluation.ActionApprove {
		t.Errorf("single Decision().Action = %q, want approve", got)
	}
	if got := consensus.FromConsensus(consensusResult()).Decision().Action; got != evaluation.ActionReloop {
		t.Errorf("consensus Decision().Action = %q, want reloop", got)
	}

	var empty consensus.Source
	if empty.Decision().Action.Valid() {
		t.Error("empty source must yield an empty decision")
	}
}

func TestSource_AsEvaluation(t *testing.T) {
	ev := singleEval()
	if got := consensus.FromEvaluation(ev).AsEvaluation(); got != ev {
		t.Error("single source must return the underlying evaluation unchanged")
	}

	flat := consensus.FromConsensus(consensusResult()).AsEvaluation()
	if flat == nil {
		t.Fatal("consensus source must flatten to an evaluation")
	}
	if flat.BiasDetection.Score != 20 || flat.OverallSatisfaction.Score != 80 {
		t.Errorf("flattened scores = %v/%v, want the consensus averages", flat.BiasDetection.Score, flat.OverallSatisfaction.Score)
	}
	if len(flat.FinalDecision.ImprovementNeeded) != 1 {
		t.Error("flattened evaluation must keep the improvement list")
	}

	var empty consensus.Source
	if empty.AsEvaluation() != nil {
		t.Error("empty source must flatten to nil")
	}
}

func TestSource_JSONRoundTrip(t *testing.T) {
	// A single evaluation has no averageScores field, so it unmarshals back
	// into the Single arm.
	data, err := json.Marshal(consensus.FromEvaluation(singleEval()))
	if err != nil {
		t.Fatalf("marshal single: %v", err)
	}
	var s consensus.Source
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal single: %v", err)
	}
	if s.Single == nil || s.Consensus != nil {
		t.Fatalf("round trip landed in the wrong arm: %+v", s)
	}
	if s.Single.BiasDetection.Score != 15 {
		t.Errorf("bias = %v, want 15", s.Single.BiasDetection.Score)
	}

	// A consensus result carries averageScores and lands in the Consensus arm.
	data, err = json.Marshal(consensus.FromConsensus(consensusResult()))
	if err != nil {
		t.Fatalf("marshal consensus: %v", err)
	}
	s = consensus.Source{}
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal consensus: %v", err)
	}
	if s.Consensus == nil || s.Single != nil {
		t.Fatalf("round trip landed in the wrong arm: %+v", s)
	}
	if s.Consensus.ModelsUsed != 2 {
		t.Errorf("ModelsUsed = %d, want 2", s.Consensus.ModelsUsed)
	}

	// An empty source serializes as null and restores empty.
	data, err = json.Marshal(consensus.Source{})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("empty source serialized as %s, want null", data)
	}
	s = consensus.FromConsensus(consensusResult())
	if err := json.Unmarshal([]byte("null"), &s); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !s.IsZero() {
		t.Error("null must restore an empty source")
	}
}

package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/service"
)

func TestQualityGate_SingleEvaluatorActionMapping(t *testing.T) {
	tests := []struct {
		name        string
		action      evaluation.Action
		passed      bool
		needsReloop bool
		rejected    bool
	}{
		{"approve passes", evaluation.ActionApprove, true, false, false},
		{"warning still passes", evaluation.ActionApproveWithWarning, true, false, false},
		{"reloop", evaluation.ActionReloop, false, true, false},
		{"reject", evaluation.ActionReject, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := &scriptedJudge{model: "primary", script: []judgeStep{
				{eval: evalWith(tt.action, 10, 5, 80)},
			}}
			gate := service.NewQualityGate(judge, nil, true, time.Second)

			res := gate.QuickCheck(context.Background(), "candidate", "ctx", false)

			if res.Method != service.MethodSingleEvaluator {
				t.Errorf("Method = %q, want single evaluator without a secondary judge", res.Method)
			}
			if res.Passed != tt.passed || res.NeedsReloop != tt.needsReloop || res.Rejected != tt.rejected {
				t.Errorf("Passed/NeedsReloop/Rejected = %v/%v/%v, want %v/%v/%v",
					res.Passed, res.NeedsReloop, res.Rejected, tt.passed, tt.needsReloop, tt.rejected)
			}
			if res.Action() != tt.action {
				t.Errorf("Action() = %q, want %q", res.Action(), tt.action)
			}
			if res.Evaluation.Single == nil {
				t.Error("single-evaluator result must carry the raw evaluation")
			}
		})
	}
}

func TestQualityGate_SingleEvaluatorFailure(t *testing.T) {
	judge := &scriptedJudge{model: "primary", script: []judgeStep{
		{err: fmt.Errorf("connection refused")},
	}}
	gate := service.NewQualityGate(judge, nil, false, time.Second)

	res := gate.QuickCheck(context.Background(), "candidate", "ctx", false)

	if res.Passed || res.NeedsReloop || res.Rejected {
		t.Error("failed check must set no decision flags")
	}
	if !strings.Contains(res.Error, "connection refused") {
		t.Errorf("Error = %q, want the judge failure", res.Error)
	}
}

func TestQualityGate_MultiEvaluatorConsensus(t *testing.T) {
	primary := &scriptedJudge{model: "gemini", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 10, 0, 90)},
	}}
	secondary := &scriptedJudge{model: "workersai", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 14, 2, 94)},
	}}
	gate := service.NewQualityGate(primary, secondary, true, time.Second)

	if !gate.MultiEvaluator() {
		t.Fatal("gate with a secondary judge must report multi-evaluator mode")
	}

	res := gate.QuickCheck(context.Background(), "candidate", "ctx", false)

	if res.Method != service.MethodMultiEvaluator {
		t.Fatalf("Method = %q, want multi evaluator", res.Method)
	}
	cons := res.Evaluation.Consensus
	if cons == nil {
		t.Fatal("multi-evaluator result must carry a consensus evaluation")
	}
	if cons.ModelsUsed != 2 || cons.TotalModels != 2 {
		t.Errorf("ModelsUsed/TotalModels = %d/%d, want 2/2", cons.ModelsUsed, cons.TotalModels)
	}
	if cons.AverageScores.Bias != 12 {
		t.Errorf("averaged bias = %v, want 12", cons.AverageScores.Bias)
	}
	if !res.Passed {
		t.Error("agreeing clean scores must pass")
	}
}

func TestQualityGate_MultiEvaluatorSurvivesOneFailure(t *testing.T) {
	primary := &scriptedJudge{model: "gemini", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 10, 0, 90)},
	}}
	secondary := &scriptedJudge{model: "workersai", script: []judgeStep{
		{err: fmt.Errorf("HTTP 500")},
	}}
	gate := service.NewQualityGate(primary, secondary, true, time.Second)

	res := gate.QuickCheck(context.Background(), "candidate", "ctx", false)

	if res.Error != "" {
		t.Fatalf("one surviving judge should still yield a decision, got error %q", res.Error)
	}
	cons := res.Evaluation.Consensus
	if cons == nil || cons.ModelsUsed != 1 || cons.TotalModels != 2 {
		t.Fatalf("consensus = %+v, want 1 of 2 models used", cons)
	}
	if !res.Passed {
		t.Error("clean scores from the surviving judge must pass")
	}
}

func TestQualityGate_MultiEvaluatorAllFail(t *testing.T) {
	primary := &scriptedJudge{model: "gemini", script: []judgeStep{
		{err: fmt.Errorf("timeout")},
	}}
	secondary := &scriptedJudge{model: "workersai", script: []judgeStep{
		{err: fmt.Errorf("HTTP 500")},
	}}
	gate := service.NewQualityGate(primary, secondary, true, time.Second)

	res := gate.QuickCheck(context.Background(), "candidate", "ctx", false)

	if res.Passed || res.NeedsReloop || res.Rejected {
		t.Error("total failure must set no decision flags")
	}
	if !strings.Contains(res.Error, "all evaluators failed") {
		t.Errorf("Error = %q, want total evaluator failure", res.Error)
	}
}

func TestQualityGate_ForceMultiOverridesDefault(t *testing.T) {
	primary := &scriptedJudge{model: "gemini", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 10, 0, 90)},
	}}
	secondary := &scriptedJudge{model: "workersai", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 10, 0, 90)},
	}}
	gate := service.NewQualityGate(primary, secondary, false, time.Second)

	res := gate.QuickCheck(context.Background(), "candidate", "ctx", false)
	if res.Method != service.MethodSingleEvaluator {
		t.Errorf("Method = %q, want single when multi is off and not forced", res.Method)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary judge called %d times, want 0", secondary.calls)
	}

	res = gate.QuickCheck(context.Background(), "candidate", "ctx", true)
	if res.Method != service.MethodMultiEvaluator {
		t.Errorf("Method = %q, want multi when forced", res.Method)
	}
	if secondary.calls != 1 {
		t.Errorf("secondary judge called %d times, want 1", secondary.calls)
	}
}

func TestQualityGate_ForceMultiWithoutSecondaryStaysSingle(t *testing.T) {
	primary := &scriptedJudge{model: "gemini", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 10, 0, 90)},
	}}
	gate := service.NewQualityGate(primary, nil, true, time.Second)

	if gate.MultiEvaluator() {
		t.Error("gate without a secondary judge must not report multi-evaluator mode")
	}

	res := gate.QuickCheck(context.Background(), "candidate", "ctx", true)
	if res.Method != service.MethodSingleEvaluator {
		t.Errorf("Method = %q, want single without a secondary judge", res.Method)
	}
}

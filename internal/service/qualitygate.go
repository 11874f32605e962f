package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	vgotel "github.com/VoteVerify/voteguard/internal/adapter/otel"
	"github.com/VoteVerify/voteguard/internal/domain/consensus"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/port/judge"
)

// Gate method identifiers recorded on results.
const (
	MethodMultiEvaluator  = "multi_evaluator"
	MethodSingleEvaluator = "single_evaluator"
)

// GateResult is the outcome of one quality-gate pass over a candidate.
type GateResult struct {
	Passed      bool             `json:"passed"`
	NeedsReloop bool             `json:"needsReloop"`
	Rejected    bool             `json:"rejected"`
	Evaluation  consensus.Source `json:"evaluation"`
	Method      string           `json:"method"`
	Error       string           `json:"error,omitempty"`
}

// Action derives the decision action from the gate result. Rejection wins
// over reloop, then the underlying evaluation's own action; a result with
// no usable action defaults to approve.
func (r *GateResult) Action() evaluation.Action {
	switch {
	case r.Rejected:
		return evaluation.ActionReject
	case r.NeedsReloop:
		return evaluation.ActionReloop
	}
	if d := r.Evaluation.Decision(); d.Action.Valid() {
		return d.Action
	}
	return evaluation.ActionApprove
}

// QualityGate runs a single-pass bias/hallucination check over a candidate
// using one or two independent judges. It holds no per-call state and is
// safe for concurrent use.
type QualityGate struct {
	primary      judge.Judge
	secondary    judge.Judge // nil in single-evaluator deployments
	multiDefault bool
	timeout      time.Duration
	metrics      *vgotel.Metrics // optional
}

// SetMetrics attaches metric instruments for judge failure counting.
func (g *QualityGate) SetMetrics(m *vgotel.Metrics) {
	g.metrics = m
}

// NewQualityGate creates a quality gate. secondary may be nil, in which
// case every check runs in single-evaluator mode regardless of forceMulti.
// multiDefault selects multi-evaluator mode by default when a secondary
// judge is configured.
func NewQualityGate(primary, secondary judge.Judge, multiDefault bool, timeout time.Duration) *QualityGate {
	return &QualityGate{
		primary:      primary,
		secondary:    secondary,
		multiDefault: multiDefault,
		timeout:      timeout,
	}
}

// MultiEvaluator reports whether multi-evaluator mode is available.
func (g *QualityGate) MultiEvaluator() bool {
	return g.secondary != nil
}

// QuickCheck evaluates a candidate once and maps the decision to pass /
// reloop / reject booleans. Failures are converted to a structured result;
// this method never panics into the caller.
func (g *QualityGate) QuickCheck(ctx context.Context, candidate any, evalContext string, forceMulti bool) *GateResult {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.secondary != nil && (g.multiDefault || forceMulti) {
		return g.multiCheck(ctx, candidate, evalContext)
	}
	return g.singleCheck(ctx, candidate, evalContext)
}

// multiCheck fans the candidate out to both judges concurrently and feeds
// the results through consensus aggregation. The two judges are mutually
// independent; neither waits on the other.
func (g *QualityGate) multiCheck(ctx context.Context, candidate any, evalContext string) *GateResult {
	results := make([]evaluation.EvaluatorResult, 2)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		results[0] = g.runJudge(egCtx, g.primary, candidate, evalContext)
		return nil
	})
	eg.Go(func() error {
		results[1] = g.runJudge(egCtx, g.secondary, candidate, evalContext)
		return nil
	})
	_ = eg.Wait() // judge.Run never returns an error; failures land in the results

	if g.metrics != nil {
		for i := range results {
			if !results[i].Success {
				g.metrics.JudgeFailures.Add(ctx, 1)
			}
		}
	}

	cons := Aggregate(results)
	if !cons.ConsensusReached {
		return &GateResult{
			Method: MethodMultiEvaluator,
			Error:  fmt.Sprintf("quality check failed: %s", cons.Error),
		}
	}

	action := cons.FinalDecision.Action
	slog.Info("quality gate decision",
		"method", MethodMultiEvaluator,
		"action", action,
		"models_used", cons.ModelsUsed,
		"disagreement", cons.Disagreement.Detected,
	)

	return &GateResult{
		Passed:      action.Accepted(),
		NeedsReloop: action == evaluation.ActionReloop,
		Rejected:    action == evaluation.ActionReject,
		Evaluation:  consensus.FromConsensus(&cons),
		Method:      MethodMultiEvaluator,
	}
}

// runJudge traces one judge call.
func (g *QualityGate) runJudge(ctx context.Context, j judge.Judge, candidate any, evalContext string) evaluation.EvaluatorResult {
	ctx, span := vgotel.StartJudgeSpan(ctx, j.Model())
	defer span.End()
	return judge.Run(ctx, j, candidate, evalContext)
}

// singleCheck evaluates with the primary judge only.
func (g *QualityGate) singleCheck(ctx context.Context, candidate any, evalContext string) *GateResult {
	result := g.runJudge(ctx, g.primary, candidate, evalContext)
	if !result.Success {
		if g.metrics != nil {
			g.metrics.JudgeFailures.Add(ctx, 1)
		}
		return &GateResult{
			Method: MethodSingleEvaluator,
			Error:  fmt.Sprintf("quality check failed: %s", result.Error),
		}
	}

	action := result.Evaluation.FinalDecision.Action
	slog.Info("quality gate decision",
		"method", MethodSingleEvaluator,
		"action", action,
		"model", result.Model,
	)

	return &GateResult{
		Passed:      action.Accepted(),
		NeedsReloop: action == evaluation.ActionReloop,
		Rejected:    action == evaluation.ActionReject,
		Evaluation:  consensus.FromEvaluation(result.Evaluation),
		Method:      MethodSingleEvaluator,
	}
}

package service

import (
	"fmt"
	"math"

	"github.com/VoteVerify/voteguard/internal/domain/consensus"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
)

// disagreementThreshold is the per-metric score spread (max-min) above which
// two judges are considered to disagree.
const disagreementThreshold = 20

// Threshold sets for the consensus decision policy. Judges that agree are
// held to the standard regime; when they disagree the conservative regime
// applies — it never auto-rejects (rejection requires judge consensus) but
// is stricter about auto-approving.
const (
	agreeRejectBias = 70
	agreeRejectHall = 60
	agreeRejectSat  = 40

	agreeReloopBias = 40
	agreeReloopHall = 30
	agreeReloopSat  = 60

	agreeWarnBias = 20
	agreeWarnHall = 5
	agreeWarnSat  = 80

	disagreeReloopBias = 30
	disagreeReloopHall = 10
	disagreeReloopSat  = 50

	disagreeWarnBias = 20
	disagreeWarnHall = 5
	disagreeWarnSat  = 70
)

// Aggregate combines independent evaluator results into one consensus
// decision. It is a pure function: averages and ranges are computed over
// successful results only, disagreement is flagged per metric, and the
// decision policy runs under the regime selected by disagreement detection.
func Aggregate(results []evaluation.EvaluatorResult) consensus.Result {
	total := len(results)

	var ok []*evaluation.Evaluation
	for i := range results {
		if results[i].Success && results[i].Evaluation != nil {
			ok = append(ok, results[i].Evaluation)
		}
	}

	if len(ok) == 0 {
		return consensus.Result{
			ConsensusReached: false,
			TotalModels:      total,
			Error:            "all evaluators failed",
		}
	}

	bias := collect(ok, func(e *evaluation.Evaluation) float64 { return e.BiasDetection.Score })
	hall := collect(ok, func(e *evaluation.Evaluation) float64 { return e.HallucinationDetection.Score })
	sat := collect(ok, func(e *evaluation.Evaluation) float64 { return e.OverallSatisfaction.Score })

	result := consensus.Result{
		ConsensusReached: true,
		ModelsUsed:       len(ok),
		TotalModels:      total,
		AverageScores: consensus.AverageScores{
			Bias:          mean(bias),
			Hallucination: mean(hall),
			Satisfaction:  mean(sat),
		},
		ScoreRanges: consensus.ScoreRanges{
			Bias:          spread(bias),
			Hallucination: spread(hall),
			Satisfaction:  spread(sat),
		},
	}

	result.Disagreement = consensus.Disagreement{
		Bias:          rangeWidth(result.ScoreRanges.Bias) > disagreementThreshold,
		Hallucination: rangeWidth(result.ScoreRanges.Hallucination) > disagreementThreshold,
		Satisfaction:  rangeWidth(result.ScoreRanges.Satisfaction) > disagreementThreshold,
	}
	result.Disagreement.Detected = result.Disagreement.Bias ||
		result.Disagreement.Hallucination ||
		result.Disagreement.Satisfaction

	result.FinalDecision = decide(result.AverageScores, result.Disagreement.Detected, result.ModelsUsed)

	return result
}

// decide applies the two-regime threshold policy to the averaged scores.
func decide(avg consensus.AverageScores, disagreement bool, modelsUsed int) evaluation.FinalDecision {
	if disagreement {
		return decideConservative(avg, modelsUsed)
	}
	return decideStandard(avg, modelsUsed)
}

func decideStandard(avg consensus.AverageScores, modelsUsed int) evaluation.FinalDecision {
	switch {
	case avg.Bias > agreeRejectBias || avg.Hallucination > agreeRejectHall || avg.Satisfaction < agreeRejectSat:
		return evaluation.FinalDecision{
			Action: evaluation.ActionReject,
			Reasoning: fmt.Sprintf("%d model(s) agree on severe quality issues (bias %.0f, hallucination %.0f, satisfaction %.0f)",
				modelsUsed, avg.Bias, avg.Hallucination, avg.Satisfaction),
			ImprovementNeeded: improvements(avg, agreeRejectBias, agreeRejectHall, agreeRejectSat, false),
		}
	case avg.Bias > agreeReloopBias || avg.Hallucination > agreeReloopHall || avg.Satisfaction < agreeReloopSat:
		return evaluation.FinalDecision{
			Action: evaluation.ActionReloop,
			Reasoning: fmt.Sprintf("quality below acceptance thresholds (bias %.0f, hallucination %.0f, satisfaction %.0f); regeneration required",
				avg.Bias, avg.Hallucination, avg.Satisfaction),
			ImprovementNeeded: improvements(avg, agreeReloopBias, agreeReloopHall, agreeReloopSat, false),
		}
	case avg.Bias > agreeWarnBias || avg.Hallucination > agreeWarnHall || avg.Satisfaction < agreeWarnSat:
		return evaluation.FinalDecision{
			Action: evaluation.ActionApproveWithWarning,
			Reasoning: fmt.Sprintf("minor quality concerns noted (bias %.0f, hallucination %.0f, satisfaction %.0f)",
				avg.Bias, avg.Hallucination, avg.Satisfaction),
		}
	default:
		return evaluation.FinalDecision{
			Action: evaluation.ActionApprove,
			Reasoning: fmt.Sprintf("all %d model(s) agree the response meets quality standards", modelsUsed),
		}
	}
}

func decideConservative(avg consensus.AverageScores, modelsUsed int) evaluation.FinalDecision {
	switch {
	case avg.Bias > disagreeReloopBias || avg.Hallucination > disagreeReloopHall || avg.Satisfaction < disagreeReloopSat:
		return evaluation.FinalDecision{
			Action: evaluation.ActionReloop,
			Reasoning: fmt.Sprintf("models disagree and scores fall outside the conservative thresholds (bias %.0f, hallucination %.0f, satisfaction %.0f)",
				avg.Bias, avg.Hallucination, avg.Satisfaction),
			ImprovementNeeded: improvements(avg, disagreeReloopBias, disagreeReloopHall, disagreeReloopSat, true),
		}
	case avg.Bias > disagreeWarnBias || avg.Hallucination > disagreeWarnHall || avg.Satisfaction < disagreeWarnSat:
		return evaluation.FinalDecision{
			Action: evaluation.ActionApproveWithWarning,
			Reasoning: fmt.Sprintf("models disagree on quality (bias %.0f, hallucination %.0f, satisfaction %.0f); approved with caution",
				avg.Bias, avg.Hallucination, avg.Satisfaction),
		}
	default:
		return evaluation.FinalDecision{
			Action: evaluation.ActionApprove,
			Reasoning: fmt.Sprintf("scores acceptable across %d model(s) despite metric-level disagreement", modelsUsed),
		}
	}
}

// improvements produces one human-readable sentence per breached threshold,
// in the deterministic order bias, hallucination, satisfaction, then the
// disagreement note when applicable.
func improvements(avg consensus.AverageScores, biasLimit, hallLimit, satFloor float64, disagreement bool) []string {
	var out []string
	if avg.Bias > biasLimit {
		out = append(out, fmt.Sprintf("Reduce political bias: average bias score %.0f exceeds the limit of %.0f.", avg.Bias, biasLimit))
	}
	if avg.Hallucination > hallLimit {
		out = append(out, fmt.Sprintf("Remove unverifiable claims: average hallucination score %.0f exceeds the limit of %.0f.", avg.Hallucination, hallLimit))
	}
	if avg.Satisfaction < satFloor {
		out = append(out, fmt.Sprintf("Improve overall quality: average satisfaction score %.0f is below the floor of %.0f.", avg.Satisfaction, satFloor))
	}
	if disagreement {
		out = append(out, "Evaluation models disagreed significantly; produce a clearer, better-sourced response.")
	}
	return out
}

func collect(evs []*evaluation.Evaluation, get func(*evaluation.Evaluation) float64) []float64 {
	out := make([]float64, len(evs))
	for i, e := range evs {
		out[i] = get(e)
	}
	return out
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return math.Round(sum / float64(len(vals)))
}

func spread(vals []float64) consensus.Range {
	r := consensus.Range{Min: vals[0], Max: vals[0]}
	for _, v := range vals[1:] {
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	return r
}

func rangeWidth(r consensus.Range) float64 {
	return r.Max - r.Min
}

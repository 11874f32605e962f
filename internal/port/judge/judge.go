// Package judge defines the port for external LLM judges that score a
// candidate response for bias, hallucination, and overall satisfaction.
package judge

import (
	"context"

	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
)

// Judge is one external model invoked solely to score a candidate.
// Implementations compose the fixed evaluation prompt from the candidate
// and context, submit it to their backing model, and parse the response.
type Judge interface {
	// Model returns the identifier recorded in EvaluatorResults.
	Model() string

	// Evaluate scores the candidate in the given context. Transport
	// failures, unparseable output, and missing required fields are all
	// returned as errors; they never panic.
	Evaluate(ctx context.Context, candidate any, evalContext string) (*evaluation.Evaluation, error)
}

// Run invokes a judge and wraps the outcome in an EvaluatorResult. Failures
// are converted to Success=false results so a single bad judge never aborts
// the enclosing aggregation.
func Run(ctx context.Context, j Judge, candidate any, evalContext string) evaluation.EvaluatorResult {
	ev, err := j.Evaluate(ctx, candidate, evalContext)
	if err != nil {
		return evaluation.EvaluatorResult{
			Model:   j.Model(),
			Success: false,
			Error:   err.Error(),
		}
	}
	return evaluation.EvaluatorResult{
		Model:      j.Model(),
		Evaluation: ev,
		Success:    true,
	}
}

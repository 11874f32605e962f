package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	vgotel "github.com/VoteVerify/voteguard/internal/adapter/otel"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/domain/reloop"
)

// Reloop defaults. The backoff is a fixed pause between attempts, applied
// both after a generation failure and after a reloop decision.
const (
	DefaultMaxAttempts   = 3
	DefaultReloopBackoff = 2 * time.Second
)

// ReloopController drives repeated generate → evaluate cycles against a
// caller-supplied generator, branching on the quality gate's decision.
// Attempts are strictly sequential: the generator for attempt n+1 carries
// attempt n's evaluation forward as feedback.
type ReloopController struct {
	gate        *QualityGate
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration)

	// OnAttempt, when set, observes each recorded history entry. Used to
	// stream live progress to dashboard clients.
	OnAttempt func(attempt reloop.Attempt)
}

// NewReloopController creates a controller. Non-positive maxAttempts and
// backoff fall back to the defaults.
func NewReloopController(gate *QualityGate, maxAttempts int, backoff time.Duration) *ReloopController {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = DefaultReloopBackoff
	}
	return &ReloopController{
		gate:        gate,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleep:       sleepContext,
	}
}

// SetSleep replaces the inter-attempt pause. Tests inject a no-op or a
// counter here to run deterministically.
func (c *ReloopController) SetSleep(sleep func(ctx context.Context, d time.Duration)) {
	c.sleep = sleep
}

// Run executes the reloop state machine and returns the terminal outcome.
// The history is created per call; concurrent Run invocations share nothing.
func (c *ReloopController) Run(ctx context.Context, generate reloop.GenerateFunc, evalContext string) *reloop.Outcome {
	history := make([]reloop.Attempt, 0, c.maxAttempts)
	var prev *evaluation.Evaluation

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attemptCtx, span := vgotel.StartAttemptSpan(ctx, attempt)
		candidate, err := generate(attemptCtx, prev)
		if err != nil {
			span.End()
			slog.Warn("candidate generation failed",
				"attempt", attempt,
				"max_attempts", c.maxAttempts,
				"error", err,
			)
			if attempt < c.maxAttempts {
				c.sleep(ctx, c.backoff)
				continue
			}
			return &reloop.Outcome{
				Success:  false,
				Error:    fmt.Sprintf("generation failed after %d attempts: %s", attempt, err),
				Attempts: attempt,
				History:  history,
			}
		}

		gateResult := c.gate.QuickCheck(attemptCtx, candidate, evalContext, false)
		span.End()
		if gateResult.Error != "" {
			// Total evaluator failure follows the same retry path as a
			// generation failure.
			slog.Warn("evaluation failed",
				"attempt", attempt,
				"error", gateResult.Error,
			)
			if attempt < c.maxAttempts {
				c.sleep(ctx, c.backoff)
				continue
			}
			return &reloop.Outcome{
				Success:  false,
				Error:    gateResult.Error,
				Attempts: attempt,
				History:  history,
			}
		}

		action := gateResult.Action()
		entry := reloop.Attempt{
			Attempt:    attempt,
			Response:   candidate,
			Evaluation: gateResult.Evaluation,
			Action:     action,
		}
		history = append(history, entry)
		if c.OnAttempt != nil {
			c.OnAttempt(entry)
		}

		slog.Info("reloop attempt evaluated",
			"attempt", attempt,
			"action", action,
			"method", gateResult.Method,
		)

		switch action {
		case evaluation.ActionApprove:
			ev := gateResult.Evaluation
			return &reloop.Outcome{
				Success:    true,
				Response:   candidate,
				Evaluation: &ev,
				Attempts:   attempt,
				History:    history,
			}

		case evaluation.ActionApproveWithWarning:
			ev := gateResult.Evaluation
			return &reloop.Outcome{
				Success:    true,
				Response:   candidate,
				Evaluation: &ev,
				Attempts:   attempt,
				History:    history,
				Warning:    ev.Decision().Reasoning,
			}

		case evaluation.ActionReject:
			// Reject is terminal: no further attempts regardless of budget.
			ev := gateResult.Evaluation
			return &reloop.Outcome{
				Success:    false,
				Error:      "rejected",
				Evaluation: &ev,
				Attempts:   attempt,
				History:    history,
			}

		case evaluation.ActionReloop:
			if attempt < c.maxAttempts {
				prev = gateResult.Evaluation.AsEvaluation()
				c.sleep(ctx, c.backoff)
				continue
			}
			return c.selectBestAttempt(history)
		}
	}

	// Unreachable with maxAttempts >= 1; kept for safety.
	return &reloop.Outcome{
		Success:  false,
		Error:    "no attempts executed",
		Attempts: 0,
		History:  history,
	}
}

// selectBestAttempt degrades gracefully when every attempt was relooped:
// instead of failing, the lowest-quality-score historical attempt is
// returned as a successful outcome with a warning.
func (c *ReloopController) selectBestAttempt(history []reloop.Attempt) *reloop.Outcome {
	best := reloop.BestAttempt(history)
	if best == nil {
		return &reloop.Outcome{
			Success:  false,
			Error:    "max attempts reached with no evaluable attempts",
			Attempts: c.maxAttempts,
			History:  history,
		}
	}

	slog.Info("max reloop attempts reached; selecting best attempt",
		"best_attempt", best.Attempt,
		"quality_score", reloop.QualityScore(best.Evaluation),
	)

	ev := best.Evaluation
	return &reloop.Outcome{
		Success:             true,
		Response:            best.Response,
		Evaluation:          &ev,
		Attempts:            c.maxAttempts,
		History:             history,
		Warning:             fmt.Sprintf("max attempts (%d) reached; returning best attempt %d", c.maxAttempts, best.Attempt),
		BestAttemptSelected: true,
		BestAttemptNumber:   best.Attempt,
	}
}

// sleepContext pauses for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

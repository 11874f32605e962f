package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VoteVerify/voteguard/internal/adapter/markets"
	vgotel "github.com/VoteVerify/voteguard/internal/adapter/otel"
	"github.com/VoteVerify/voteguard/internal/adapter/perplexity"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/domain/promise"
	"github.com/VoteVerify/voteguard/internal/domain/reloop"
	"github.com/VoteVerify/voteguard/internal/port/broadcast"
	"github.com/VoteVerify/voteguard/internal/port/cache"
	"github.com/VoteVerify/voteguard/internal/port/database"
	"github.com/VoteVerify/voteguard/internal/port/messagequeue"
)

// marketContextTTL bounds how long an industry's market snapshot is reused
// across validation runs.
const marketContextTTL = 10 * time.Minute

// ValidationService orchestrates a full promise validation: generate an
// analysis, push it through the reloop pipeline, persist the audit record,
// and notify subscribers.
type ValidationService struct {
	store      database.Store
	queue      messagequeue.Queue    // optional
	cache      cache.Cache           // optional
	hub        broadcast.Broadcaster // optional
	generator  *perplexity.Client
	markets    *markets.Client // optional
	controller *ReloopController
	gate       *QualityGate
	metrics    *vgotel.Metrics // optional
}

// NewValidationService wires the validation pipeline. queue, cache, hub and
// markets may be nil; the pipeline degrades gracefully without them.
func NewValidationService(
	store database.Store,
	queue messagequeue.Queue,
	c cache.Cache,
	hub broadcast.Broadcaster,
	generator *perplexity.Client,
	mkts *markets.Client,
	controller *ReloopController,
	gate *QualityGate,
	metrics *vgotel.Metrics,
) *ValidationService {
	s := &ValidationService{
		store:      store,
		queue:      queue,
		cache:      c,
		hub:        hub,
		generator:  generator,
		markets:    mkts,
		controller: controller,
		gate:       gate,
		metrics:    metrics,
	}
	if hub != nil {
		controller.OnAttempt = func(attempt reloop.Attempt) {
			hub.BroadcastEvent(context.Background(), broadcast.EventValidationAttempt, attempt)
		}
	}
	return s
}

// ValidatePromise runs the full pipeline against one tracked promise and
// returns the persisted audit record together with the reloop outcome.
func (s *ValidationService) ValidatePromise(ctx context.Context, promiseID string) (*promise.ValidationRun, *reloop.Outcome, error) {
	ctx, span := vgotel.StartValidationSpan(ctx, promiseID)
	defer span.End()

	p, err := s.store.GetPromise(ctx, promiseID)
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.ValidationsStarted.Add(ctx, 1)
	}

	marketContext := s.marketContext(ctx, p.Industry)
	evalContext := buildEvalContext(p)

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventValidationStarted, map[string]string{
			"promise_id": p.ID,
			"politician": p.Politician,
		})
	}

	generate := func(ctx context.Context, prev *evaluation.Evaluation) (any, error) {
		return s.generator.GenerateAnalysis(ctx, p, marketContext, prev)
	}

	started := time.Now()
	outcome := s.controller.Run(ctx, generate, evalContext)

	slog.Info("promise validation finished",
		"promise_id", p.ID,
		"success", outcome.Success,
		"attempts", outcome.Attempts,
		"best_attempt_selected", outcome.BestAttemptSelected,
		"duration", time.Since(started),
	)

	if s.metrics != nil {
		s.metrics.ValidationAttempts.Record(ctx, int64(outcome.Attempts))
		s.metrics.ValidationDuration.Record(ctx, time.Since(started).Seconds())
		if outcome.Attempts > 1 {
			s.metrics.Reloops.Add(ctx, int64(outcome.Attempts-1))
		}
		if outcome.Success {
			s.metrics.ValidationsApproved.Add(ctx, 1)
		} else {
			s.metrics.ValidationsRejected.Add(ctx, 1)
		}
	}

	run, err := s.recordRun(ctx, p.ID, outcome)
	if err != nil {
		return nil, outcome, err
	}

	s.notify(ctx, run)
	return run, outcome, nil
}

// QuickCheck evaluates arbitrary content through the quality gate without
// touching the promise dataset.
func (s *ValidationService) QuickCheck(ctx context.Context, content any, evalContext string, forceMulti bool) *GateResult {
	return s.gate.QuickCheck(ctx, content, evalContext, forceMulti)
}

// marketContext resolves a one-paragraph market snapshot for the promise's
// industry, reusing cached snapshots within the TTL. Failures degrade to an
// empty context rather than blocking validation.
func (s *ValidationService) marketContext(ctx context.Context, industry string) string {
	if s.markets == nil || industry == "" {
		return ""
	}

	key := "markets:" + strings.ToLower(industry)
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return string(data)
		}
	}

	var lines []string
	for _, ticker := range markets.TickersForIndustry(industry) {
		snap, err := s.markets.Quote(ctx, ticker)
		if err != nil {
			slog.Warn("market quote failed", "ticker", ticker, "error", err)
			continue
		}
		lines = append(lines, snap.Summary())
	}
	if len(lines) == 0 {
		return ""
	}

	summary := strings.Join(lines, "\n")
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(summary), marketContextTTL); err != nil {
			slog.Warn("cache market context", "key", key, "error", err)
		}
	}
	return summary
}

// recordRun persists the audit record for one reloop outcome.
func (s *ValidationService) recordRun(ctx context.Context, promiseID string, outcome *reloop.Outcome) (*promise.ValidationRun, error) {
	run := &promise.ValidationRun{
		ID:          uuid.NewString(),
		PromiseID:   promiseID,
		Success:     outcome.Success,
		Attempts:    outcome.Attempts,
		BestAttempt: outcome.BestAttemptSelected,
		Warning:     outcome.Warning,
		Error:       outcome.Error,
		CreatedAt:   time.Now().UTC(),
	}

	if outcome.Evaluation != nil {
		run.Action = string(outcome.Evaluation.Decision().Action)
		if bias, hall, sat, ok := outcome.Evaluation.Scores(); ok {
			run.BiasScore = bias
			run.HallucinationScore = hall
			run.SatisfactionScore = sat
		}
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}
	run.Outcome = data

	if err := s.store.CreateValidationRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record validation run: %w", err)
	}
	return run, nil
}

// notify publishes the run result to the message queue and the live
// dashboard. Delivery failures are logged, never propagated: the run is
// already persisted.
func (s *ValidationService) notify(ctx context.Context, run *promise.ValidationRun) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventValidationCompleted, run)
	}
	if s.queue == nil {
		return
	}

	payload := messagequeue.EvaluationCompletedPayload{
		RunID:              run.ID,
		PromiseID:          run.PromiseID,
		Action:             run.Action,
		Attempts:           run.Attempts,
		BiasScore:          run.BiasScore,
		HallucinationScore: run.HallucinationScore,
		SatisfactionScore:  run.SatisfactionScore,
		BestAttempt:        run.BestAttempt,
		Warning:            run.Warning,
		Error:              run.Error,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal evaluation payload", "error", err)
		return
	}

	subject := messagequeue.SubjectEvaluationCompleted
	if run.Action == string(evaluation.ActionReject) {
		subject = messagequeue.SubjectEvaluationRejected
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish evaluation result", "run_id", run.ID, "error", err)
	}
}

// buildEvalContext renders the promise record as the evaluation context the
// judges score the analysis against.
func buildEvalContext(p *promise.Promise) string {
	var b strings.Builder
	b.WriteString("Political promise fact-check. The candidate text is an analysis of the following campaign promise.\n")
	fmt.Fprintf(&b, "Politician: %s", p.Politician)
	if p.Party != "" {
		fmt.Fprintf(&b, " (%s)", p.Party)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Promise: %s\n", p.Text)
	if p.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", p.Category)
	}
	if p.DateMade != "" {
		fmt.Fprintf(&b, "Date made: %s\n", p.DateMade)
	}
	b.WriteString("The analysis must be politically neutral, grounded in verifiable facts, and cite sources.")
	return b.String()
}

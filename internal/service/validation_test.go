package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/VoteVerify/voteguard/internal/adapter/perplexity"
	"github.com/VoteVerify/voteguard/internal/domain"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/domain/promise"
	"github.com/VoteVerify/voteguard/internal/port/messagequeue"
	"github.com/VoteVerify/voteguard/internal/service"
)

// generatorServer fakes the Perplexity chat completions endpoint.
func generatorServer(t *testing.T, analysis string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": analysis}},
			},
		})
	}))
}

type validationFixture struct {
	store *mockStore
	queue *mockQueue
	hub   *mockHub
	svc   *service.ValidationService
	p     *promise.Promise
}

// newValidationFixture wires a full validation pipeline against a fake
// generator and a scripted judge.
func newValidationFixture(t *testing.T, judge *scriptedJudge, analysis string) *validationFixture {
	t.Helper()

	srv := generatorServer(t, analysis)
	t.Cleanup(srv.Close)

	generator := perplexity.NewClient(srv.URL, "test-key", "sonar", 5*time.Second)

	gate := service.NewQualityGate(judge, nil, false, 0)
	controller := service.NewReloopController(gate, 3, time.Millisecond)
	controller.SetSleep(func(context.Context, time.Duration) {})

	store := newMockStore()
	queue := &mockQueue{}
	hub := &mockHub{}

	svc := service.NewValidationService(store, queue, nil, hub, generator, nil, controller, gate, nil)

	p := &promise.Promise{
		ID:         "p-1",
		Politician: "Jane Smith",
		Text:       "Cut small-business taxes by 10%.",
		Status:     promise.StatusInProgress,
	}
	if err := store.CreatePromise(context.Background(), p); err != nil {
		t.Fatalf("seed promise: %v", err)
	}

	return &validationFixture{store: store, queue: queue, hub: hub, svc: svc, p: p}
}

func TestValidationService_ValidatePromise_Approved(t *testing.T) {
	judge := &scriptedJudge{model: "primary", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 10, 2, 92)},
	}}
	fx := newValidationFixture(t, judge, "The promise is on track.")

	run, outcome, err := fx.svc.ValidatePromise(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("ValidatePromise: %v", err)
	}

	if !outcome.Success || outcome.Attempts != 1 {
		t.Errorf("outcome = success %v attempts %d, want success in one attempt", outcome.Success, outcome.Attempts)
	}
	if run.Action != string(evaluation.ActionApprove) {
		t.Errorf("run.Action = %q, want approve", run.Action)
	}
	if run.BiasScore != 10 || run.HallucinationScore != 2 || run.SatisfactionScore != 92 {
		t.Errorf("run scores = %v/%v/%v", run.BiasScore, run.HallucinationScore, run.SatisfactionScore)
	}
	if len(run.Outcome) == 0 {
		t.Error("run must persist the serialized outcome")
	}

	// The audit record landed in the store.
	runs, err := fx.store.ListValidationRuns(context.Background(), "p-1")
	if err != nil || len(runs) != 1 {
		t.Fatalf("persisted runs = %v (err %v), want exactly one", runs, err)
	}

	// Accepted runs publish to evaluations.completed.
	if len(fx.queue.published) != 1 || fx.queue.published[0].Subject != messagequeue.SubjectEvaluationCompleted {
		t.Fatalf("published = %+v, want one evaluations.completed message", fx.queue.published)
	}
	var payload messagequeue.EvaluationCompletedPayload
	if err := json.Unmarshal(fx.queue.published[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.PromiseID != "p-1" || payload.RunID != run.ID {
		t.Errorf("payload = %+v", payload)
	}

	// Dashboard events: started, one attempt, completed.
	types := fx.hub.eventTypes()
	want := []string{"validation.started", "validation.attempt", "validation.completed"}
	if len(types) != len(want) {
		t.Fatalf("hub events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("hub event %d = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestValidationService_ValidatePromise_Rejected(t *testing.T) {
	judge := &scriptedJudge{model: "primary", script: []judgeStep{
		{eval: evalWith(evaluation.ActionReject, 90, 80, 10)},
	}}
	fx := newValidationFixture(t, judge, "Partisan screed.")

	run, outcome, err := fx.svc.ValidatePromise(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("ValidatePromise: %v", err)
	}

	if outcome.Success {
		t.Error("rejected validation must not succeed")
	}
	if run.Action != string(evaluation.ActionReject) || run.Success {
		t.Errorf("run = %+v, want a failed reject record", run)
	}
	if len(fx.queue.published) != 1 || fx.queue.published[0].Subject != messagequeue.SubjectEvaluationRejected {
		t.Fatalf("published = %+v, want one evaluations.rejected message", fx.queue.published)
	}
}

func TestValidationService_ValidatePromise_ReloopThenApprove(t *testing.T) {
	judge := &scriptedJudge{model: "primary", script: []judgeStep{
		{eval: evalWith(evaluation.ActionReloop, 50, 20, 40)},
		{eval: evalWith(evaluation.ActionApprove, 10, 2, 92)},
	}}
	fx := newValidationFixture(t, judge, "Analysis draft.")

	run, outcome, err := fx.svc.ValidatePromise(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("ValidatePromise: %v", err)
	}

	if !outcome.Success || outcome.Attempts != 2 {
		t.Errorf("outcome = success %v attempts %d, want success after 2 attempts", outcome.Success, outcome.Attempts)
	}
	if run.Attempts != 2 {
		t.Errorf("run.Attempts = %d, want 2", run.Attempts)
	}

	// Two attempt events sit between started and completed.
	types := fx.hub.eventTypes()
	attempts := 0
	for _, typ := range types {
		if typ == "validation.attempt" {
			attempts++
		}
	}
	if attempts != 2 {
		t.Errorf("hub saw %d attempt events, want 2: %v", attempts, types)
	}
}

func TestValidationService_ValidatePromise_NotFound(t *testing.T) {
	judge := &scriptedJudge{model: "primary", script: []judgeStep{
		{eval: evalWith(evaluation.ActionApprove, 10, 2, 92)},
	}}
	fx := newValidationFixture(t, judge, "Analysis.")

	_, _, err := fx.svc.ValidatePromise(context.Background(), "missing-id")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want not-found", err)
	}
}

func TestValidationService_QuickCheck(t *testing.T) {
	judge := &scriptedJudge{model: "primary", script: []judgeStep{
		{eval: evalWith(evaluation.ActionReloop, 55, 30, 45)},
	}}
	fx := newValidationFixture(t, judge, "unused")

	res := fx.svc.QuickCheck(context.Background(), "Claims without sources.", "fact-check context", false)
	if !res.NeedsReloop {
		t.Errorf("result = %+v, want a reloop decision", res)
	}
}

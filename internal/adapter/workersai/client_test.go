package workersai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/VoteVerify/voteguard/internal/adapter/workersai"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
)

const workersEvalText = `{
  "biasDetection": {"score": 18, "level": "minimal"},
  "hallucinationDetection": {"score": 0, "level": "none"},
  "overallSatisfaction": {"score": 85, "level": "excellent"},
  "finalDecision": {"action": "approve", "reasoning": "balanced"}
}`

func workersResponse(text string) map[string]any {
	return map[string]any{
		"result":  map[string]string{"response": text},
		"success": true,
	}
}

func TestClient_Evaluate(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(workersResponse(workersEvalText))
	}))
	defer srv.Close()

	c := workersai.NewClient(srv.URL, "acct-1", "tok-1", "@cf/meta/llama-3.1-8b-instruct", 5*time.Second)

	ev, err := c.Evaluate(context.Background(), "analysis text", "ctx")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if gotPath != "/accounts/acct-1/ai/run/@cf/meta/llama-3.1-8b-instruct" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if ev.OverallSatisfaction.Score != 85 || ev.FinalDecision.Action != evaluation.ActionApprove {
		t.Errorf("evaluation = %+v", ev)
	}
	// The zero hallucination score passes through unaltered; only a log
	// warning is emitted for the lenient-judge flag.
	if ev.HallucinationDetection.Score != 0 {
		t.Errorf("hallucination = %v, want the raw 0", ev.HallucinationDetection.Score)
	}
}

func TestClient_Model(t *testing.T) {
	c := workersai.NewClient("", "a", "t", "", time.Second)
	if c.Model() != "workersai/meta/llama-3.1-8b-instruct" {
		t.Errorf("Model() = %q", c.Model())
	}
}

func TestClient_Evaluate_APIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":7001,"message":"model not found"}]}`))
	}))
	defer srv.Close()

	c := workersai.NewClient(srv.URL, "a", "t", "", 5*time.Second)

	_, err := c.Evaluate(context.Background(), "candidate", "ctx")
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("err = %v, want the API error message", err)
	}
}

func TestClient_Evaluate_FailureWithoutDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	c := workersai.NewClient(srv.URL, "a", "t", "", 5*time.Second)

	_, err := c.Evaluate(context.Background(), "candidate", "ctx")
	if err == nil || !strings.Contains(err.Error(), "reported failure") {
		t.Errorf("err = %v, want a generic failure error", err)
	}
}

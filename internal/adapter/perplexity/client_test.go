package perplexity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/VoteVerify/voteguard/internal/adapter/perplexity"
	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/domain/promise"
)

func testPromise() *promise.Promise {
	return &promise.Promise{
		ID:         "p-1",
		Politician: "Jane Smith",
		Party:      "Independent",
		Text:       "Cut small-business taxes by 10% in the first year.",
		Category:   "Economy",
		Status:     promise.StatusInProgress,
		DateMade:   "2024-03-01",
	}
}

type capturedChat struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, captured *capturedChat, response map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer pplx-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(response)
	}))
}

func chatResponse(content string, citations ...string) map[string]any {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	if len(citations) > 0 {
		resp["citations"] = citations
	}
	return resp
}

func TestGenerateAnalysis_FirstAttempt(t *testing.T) {
	var captured capturedChat
	srv := chatServer(t, &captured, chatResponse("The promise is partially fulfilled."))
	defer srv.Close()

	c := perplexity.NewClient(srv.URL, "pplx-key", "sonar", 5*time.Second)

	analysis, err := c.GenerateAnalysis(context.Background(), testPromise(), "SPY close 500.12", nil)
	if err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}
	if analysis != "The promise is partially fulfilled." {
		t.Errorf("analysis = %q", analysis)
	}

	if captured.Model != "sonar" {
		t.Errorf("model = %q, want sonar", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v, want system + user", captured.Messages)
	}
	user := captured.Messages[1].Content
	for _, want := range []string{"Jane Smith", "Cut small-business taxes", "Market context", "SPY close 500.12"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
	if strings.Contains(user, "previous draft") {
		t.Error("first attempt must carry no regeneration feedback")
	}
}

func TestGenerateAnalysis_FoldsFeedbackIntoRetry(t *testing.T) {
	var captured capturedChat
	srv := chatServer(t, &captured, chatResponse("Revised analysis."))
	defer srv.Close()

	c := perplexity.NewClient(srv.URL, "pplx-key", "", 5*time.Second)

	prev := &evaluation.Evaluation{
		FinalDecision: evaluation.FinalDecision{
			Action:    evaluation.ActionReloop,
			Reasoning: "one-sided framing of the tax record",
			ImprovementNeeded: []string{
				"Reduce political bias: cover both parties' votes.",
				"Cite the specific bill numbers.",
			},
		},
	}

	if _, err := c.GenerateAnalysis(context.Background(), testPromise(), "", prev); err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}

	user := captured.Messages[1].Content
	if !strings.Contains(user, "one-sided framing of the tax record") {
		t.Error("retry prompt missing the previous reasoning")
	}
	if !strings.Contains(user, "cover both parties' votes") || !strings.Contains(user, "specific bill numbers") {
		t.Error("retry prompt missing the improvement list")
	}
}

func TestGenerateAnalysis_AppendsCitations(t *testing.T) {
	var captured capturedChat
	srv := chatServer(t, &captured, chatResponse("Analysis body.",
		"https://congress.gov/bill/118/hr-1234", "https://example.org/record"))
	defer srv.Close()

	c := perplexity.NewClient(srv.URL, "pplx-key", "", 5*time.Second)

	analysis, err := c.GenerateAnalysis(context.Background(), testPromise(), "", nil)
	if err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}
	if !strings.Contains(analysis, "Sources:") {
		t.Error("analysis missing the sources block")
	}
	if !strings.Contains(analysis, "- https://congress.gov/bill/118/hr-1234") {
		t.Error("analysis missing the first citation")
	}
}

func TestGenerateAnalysis_NoChoices(t *testing.T) {
	var captured capturedChat
	srv := chatServer(t, &captured, map[string]any{"choices": []any{}})
	defer srv.Close()

	c := perplexity.NewClient(srv.URL, "pplx-key", "", 5*time.Second)

	_, err := c.GenerateAnalysis(context.Background(), testPromise(), "", nil)
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("err = %v, want a no-choices error", err)
	}
}

// Package perplexity provides the search-grounded generator that produces
// promise analyses for the validation pipeline.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/domain/promise"
	"github.com/VoteVerify/voteguard/internal/resilience"
)

// DefaultBaseURL is the Perplexity chat completions API root.
const DefaultBaseURL = "https://api.perplexity.ai"

// DefaultModel is used when no model override is configured.
const DefaultModel = "sonar"

const analysisSystemPrompt = `You are an expert political analyst for VoteVerify, a fact-checking
application that tracks politicians' campaign promises against their actual
records. Analyze the promise below against voting records, legislative
actions, and policy decisions. Compare what was promised with what was done,
cite specific bills and dates, acknowledge complexity and nuance, and treat
all parties with equal scrutiny. Present evidence for and against
fulfillment, and state your confidence. Write a balanced analysis a
non-partisan reader would trust.`

// Client talks to the Perplexity chat completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a Perplexity generator client. Empty baseURL and model
// fall back to the production defaults.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// GenerateAnalysis produces a promise analysis. On regeneration, prev
// carries the previous attempt's evaluation; its improvement feedback is
// folded into the prompt so the next candidate can address it.
func (c *Client) GenerateAnalysis(ctx context.Context, p *promise.Promise, marketContext string, prev *evaluation.Evaluation) (string, error) {
	user := buildAnalysisPrompt(p, marketContext, prev)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	data, err := c.doRequest(ctx, c.baseURL+"/chat/completions", body)
	if err != nil {
		return "", fmt.Errorf("perplexity call: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("perplexity returned no choices")
	}

	analysis := resp.Choices[0].Message.Content
	if len(resp.Citations) > 0 {
		var b strings.Builder
		b.WriteString(analysis)
		b.WriteString("\n\nSources:\n")
		for _, cit := range resp.Citations {
			b.WriteString("- ")
			b.WriteString(cit)
			b.WriteString("\n")
		}
		analysis = b.String()
	}

	return analysis, nil
}

// buildAnalysisPrompt assembles the user message from the promise record,
// optional market context, and any previous-round improvement feedback.
func buildAnalysisPrompt(p *promise.Promise, marketContext string, prev *evaluation.Evaluation) string {
	var b strings.Builder

	b.WriteString("Analyze this campaign promise:\n\n")
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
	if p.Status != "" {
		fmt.Fprintf(&b, "Currently tracked as: %s\n", p.Status)
	}

	if marketContext != "" {
		b.WriteString("\nMarket context:\n")
		b.WriteString(marketContext)
		b.WriteString("\n")
	}

	if prev != nil {
		b.WriteString("\nA previous draft of this analysis was rejected by quality control")
		if prev.FinalDecision.Reasoning != "" {
			fmt.Fprintf(&b, " because: %s", prev.FinalDecision.Reasoning)
		}
		b.WriteString("\n")
		if len(prev.FinalDecision.ImprovementNeeded) > 0 {
			b.WriteString("Address every one of these issues in the new analysis:\n")
			for _, item := range prev.FinalDecision.ImprovementNeeded {
				b.WriteString("- ")
				b.WriteString(item)
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("perplexity API status %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

// Package gemini provides the Google Gemini judge adapter.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/resilience"
)

// DefaultBaseURL is the Gemini generateContent API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is used when no model override is configured.
const DefaultModel = "gemini-1.5-flash"

// Client is the Gemini-backed judge. It satisfies the judge port.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a Gemini judge client. Empty baseURL and model fall back
// to the production defaults.
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

// Model returns the judge identifier recorded in evaluator results.
func (c *Client) Model() string {
	return "gemini/" + c.model
}

// generateContent request/response wire types (subset we use).

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Evaluate scores the candidate against the context using Gemini.
func (c *Client) Evaluate(ctx context.Context, candidate any, evalContext string) (*evaluation.Evaluation, error) {
	prompt, err := evaluation.BuildPrompt(candidate, evalContext)
	if err != nil {
		return nil, fmt.Errorf("build judge prompt: %w", err)
	}

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gemini judge call: %w", err)
	}

	ev, err := evaluation.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("gemini judge output: %w", err)
	}

	slog.Info("judge evaluation",
		"model", c.Model(),
		"bias", ev.BiasDetection.Score,
		"hallucination", ev.HallucinationDetection.Score,
		"satisfaction", ev.OverallSatisfaction.Score,
		"action", ev.FinalDecision.Action,
	)

	return ev, nil
}

// generate submits a prompt and returns the first candidate's text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	data, err := c.doRequest(ctx, url, body)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("gemini API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

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
			return fmt.Errorf("gemini API status %d: %s", resp.StatusCode, string(data))
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

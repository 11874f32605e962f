// Package workersai provides the Cloudflare Workers AI judge adapter.
package workersai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/VoteVerify/voteguard/internal/domain/evaluation"
	"github.com/VoteVerify/voteguard/internal/resilience"
)

// DefaultBaseURL is the Cloudflare client API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// DefaultModel is used when no model override is configured.
const DefaultModel = "@cf/meta/llama-3.1-8b-instruct"

// Client is the Workers AI backed judge. It satisfies the judge port.
type Client struct {
	baseURL    string
	accountID  string
	apiToken   string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a Workers AI judge client. Empty baseURL and model fall
// back to the production defaults.
func NewClient(baseURL, accountID, apiToken, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:   baseURL,
		accountID: accountID,
		apiToken:  apiToken,
		model:     model,
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
	return "workersai/" + strings.TrimPrefix(c.model, "@cf/")
}

type runRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Evaluate scores the candidate against the context using Workers AI.
// Smaller instruct models are known to hand out hallucination score 0 too
// readily, so an exactly-zero hallucination score is logged as a reliability
// warning; the score itself is never altered.
func (c *Client) Evaluate(ctx context.Context, candidate any, evalContext string) (*evaluation.Evaluation, error) {
	prompt, err := evaluation.BuildPrompt(candidate, evalContext)
	if err != nil {
		return nil, fmt.Errorf("build judge prompt: %w", err)
	}

	raw, err := c.run(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("workersai judge call: %w", err)
	}

	ev, err := evaluation.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("workersai judge output: %w", err)
	}

	if ev.HallucinationDetection.Score == 0 {
		slog.Warn("judge reported hallucination score of exactly 0; lenient-judge reliability flag",
			"model", c.Model(),
		)
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

// run submits a prompt to the model and returns the raw response text.
func (c *Client) run(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(runRequest{
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)

	data, err := c.doRequest(ctx, url, body)
	if err != nil {
		return "", err
	}

	var resp runResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if !resp.Success {
		if len(resp.Errors) > 0 {
			return "", fmt.Errorf("workersai API error %d: %s", resp.Errors[0].Code, resp.Errors[0].Message)
		}
		return "", fmt.Errorf("workersai API reported failure")
	}

	return resp.Result.Response, nil
}

func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiToken)

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
			return fmt.Errorf("workersai API status %d: %s", resp.StatusCode, string(data))
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

// Package markets provides an HTTP client for market index snapshots used
// to enrich economic-promise analyses.
package markets

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/VoteVerify/voteguard/internal/resilience"
)

// DefaultBaseURL is the Stooq quote endpoint root.
const DefaultBaseURL = "https://stooq.com"

// industryTickers maps a promise industry to representative ticker symbols.
// Unknown industries fall back to the S&P 500 proxy.
var industryTickers = map[string][]string{
	"Renewable Energy": {"nee.us", "enph.us", "fslr.us"},
	"Oil and Gas":      {"xom.us", "cvx.us", "cop.us"},
	"Energy":           {"xle.us"},
	"Healthcare":       {"xlv.us", "unh.us", "jnj.us"},
	"Pharmaceuticals":  {"pfe.us", "jnj.us", "mrk.us"},
	"Technology":       {"xlk.us", "aapl.us", "msft.us"},
	"Banks":            {"jpm.us", "bac.us", "wfc.us"},
	"Defense":          {"lmt.us", "rtx.us", "noc.us"},
	"Manufacturing":    {"xli.us", "cat.us", "ge.us"},
	"Agriculture":      {"adm.us", "bg.us"},
	"Transportation":   {"ups.us", "fdx.us"},
	"Economy":          {"spy.us"},
}

const fallbackTicker = "spy.us"

// Snapshot is one quote row from the market data provider.
type Snapshot struct {
	Symbol string
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Client fetches delayed market quotes as CSV.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a market data client. An empty baseURL falls back to
// the production default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// TickersForIndustry returns the ticker symbols tracked for an industry.
// Matching is exact first, then case-insensitive substring in both
// directions; unknown industries map to the S&P 500 proxy.
func TickersForIndustry(industry string) []string {
	if tickers, ok := industryTickers[industry]; ok {
		return tickers
	}
	lower := strings.ToLower(industry)
	for name, tickers := range industryTickers {
		key := strings.ToLower(name)
		if strings.Contains(key, lower) || strings.Contains(lower, key) {
			return tickers
		}
	}
	return []string{fallbackTicker}
}

// Quote fetches the latest snapshot for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Snapshot, error) {
	q := url.Values{}
	q.Set("s", symbol)
	q.Set("f", "sd2t2ohlcv")
	q.Set("h", "")
	q.Set("e", "csv")

	data, err := c.doRequest(ctx, c.baseURL+"/q/l/?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	snap, err := parseQuoteCSV(data)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	return snap, nil
}

// parseQuoteCSV parses the single-row CSV quote format:
// Symbol,Date,Time,Open,High,Low,Close,Volume
func parseQuoteCSV(data []byte) (*Snapshot, error) {
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) < 2 || len(rows[1]) < 8 {
		return nil, fmt.Errorf("unexpected csv shape")
	}

	row := rows[1]
	if row[6] == "N/D" {
		return nil, fmt.Errorf("no data for symbol %s", row[0])
	}

	snap := &Snapshot{
		Symbol: row[0],
		Date:   row[1],
	}
	if snap.Open, err = strconv.ParseFloat(row[3], 64); err != nil {
		return nil, fmt.Errorf("parse open: %w", err)
	}
	if snap.High, err = strconv.ParseFloat(row[4], 64); err != nil {
		return nil, fmt.Errorf("parse high: %w", err)
	}
	if snap.Low, err = strconv.ParseFloat(row[5], 64); err != nil {
		return nil, fmt.Errorf("parse low: %w", err)
	}
	if snap.Close, err = strconv.ParseFloat(row[6], 64); err != nil {
		return nil, fmt.Errorf("parse close: %w", err)
	}
	if row[7] != "" && row[7] != "N/D" {
		if snap.Volume, err = strconv.ParseInt(row[7], 10, 64); err != nil {
			return nil, fmt.Errorf("parse volume: %w", err)
		}
	}

	return snap, nil
}

// Summary renders a snapshot as a one-line context string for prompts.
func (s *Snapshot) Summary() string {
	return fmt.Sprintf("%s %s close %.2f (open %.2f, high %.2f, low %.2f)",
		strings.ToUpper(s.Symbol), s.Date, s.Close, s.Open, s.High, s.Low)
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

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
			return fmt.Errorf("market data status %d", resp.StatusCode)
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

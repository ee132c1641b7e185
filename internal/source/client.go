// Package source is the HTTP client for the public daily-reflections JSON
// API. Each calendar slot is served as a static document at
// "{base}/{MM}{DD}.json"; the client fetches and decodes one document per
// call and classifies failures (transport errors as NETWORK, non-200 and
// decode failures as EXTERNAL_SERVICE).
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
)

// Quote is the quoted passage of a reading.
type Quote struct {
	Text       string `json:"Text"`
	BookName   string `json:"BookName"`
	PageNumber string `json:"PageNumber"`
}

// Record is one reading as returned by the external API.
//
// Example:
//
//	{
//	  "Date": "14 OCTOBER",
//	  "Title": "A PROGRAM FOR LIVING",
//	  "Quote": {"Text": "...", "BookName": "ALCOHOLICS ANONYMOUS", "PageNumber": "p. 86"},
//	  "Comment": "..."
//	}
type Record struct {
	Date    string `json:"Date"`
	Title   string `json:"Title"`
	Quote   Quote  `json:"Quote"`
	Comment string `json:"Comment"`
}

// maxErrBody caps how much of a failed response body is carried in errors.
const maxErrBody = 512

// Client fetches records from the external API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL with the given request timeout.
// A zero timeout defaults to 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// URLFor returns the document URL for d.
func (c *Client) URLFor(d dates.Canonical) string {
	return fmt.Sprintf("%s/%s.json", c.baseURL, d.URLKey())
}

// Fetch retrieves the record for d.
func (c *Client) Fetch(ctx context.Context, d dates.Canonical) (*Record, error) {
	const op = "source.Fetch"
	url := c.URLFor(d)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, op)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindNetwork, op)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, apperr.Newf(apperr.KindExternalService, op,
			"GET %s returned status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, apperr.Wrap(fmt.Errorf("decode %s: %w", url, err), apperr.KindExternalService, op)
	}
	return &rec, nil
}

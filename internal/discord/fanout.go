package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
)

// DeliveryResult is the outcome of posting to one target. TargetIndex is the
// zero-based position of the target in the configured list.
type DeliveryResult struct {
	TargetIndex int    `json:"target_index"`
	Success     bool   `json:"success"`
	Status      int    `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Succeeded counts successful results.
func Succeeded(results []DeliveryResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

// Fanout posts one embed to many webhook URLs concurrently.
type Fanout struct {
	httpClient *http.Client
}

// NewFanout returns a Fanout whose per-request timeout is timeout
// (10s when zero).
func NewFanout(timeout time.Duration) *Fanout {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fanout{httpClient: &http.Client{Timeout: timeout}}
}

// WithHTTPClient swaps the underlying HTTP client.
func (f *Fanout) WithHTTPClient(hc *http.Client) *Fanout {
	f.httpClient = hc
	return f
}

// Deliver posts {"embeds":[embed]} to every target. A failure on one target
// never affects the others. The returned slice is aligned with targets.
// The error is non-nil only when nothing could be attempted.
func (f *Fanout) Deliver(ctx context.Context, embed Embed, targets []string) ([]DeliveryResult, error) {
	const op = "discord.Deliver"
	if len(targets) == 0 {
		return nil, apperr.New(apperr.KindConfiguration, op, "no webhook targets configured")
	}
	body, err := json.Marshal(WebhookPayload{Embeds: []Embed{embed}})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindExternalService, op)
	}

	results := make([]DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			results[i] = f.post(ctx, i, target, body)
		}(i, target)
	}
	wg.Wait()

	for _, r := range results {
		ev := log.Info()
		if !r.Success {
			ev = log.Error().Str("error", r.Error)
		}
		ev.Int("target_index", r.TargetIndex).Int("status", r.Status).Msg("webhook delivery")
	}
	return results, nil
}

func (f *Fanout) post(ctx context.Context, idx int, target string, body []byte) DeliveryResult {
	res := DeliveryResult{TargetIndex: idx}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		res.Error = apperr.Wrap(stripURL(err), apperr.KindConfiguration, "discord.post").Error()
		return res
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		res.Error = apperr.Wrap(stripURL(err), apperr.KindNetwork, "discord.post").Error()
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		res.Error = apperr.New(apperr.KindExternalService, "discord.post",
			fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))).Error()
		return res
	}
	res.Success = true
	return res
}

// stripURL drops the request URL from transport errors; webhook URLs embed
// their secret token.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

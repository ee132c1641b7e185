package worker

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
)

// PingPath is the endpoint the health ping exercises.
const PingPath = "/scheduled/reflection"

// Pinger calls the bot's own reflection probe so the full fetch path is
// exercised on a schedule.
type Pinger struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewPinger targets baseURL with the bearer token.
func NewPinger(baseURL, token string, timeout time.Duration) *Pinger {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Pinger{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Ping returns the response status; anything outside 2xx is an error.
func (p *Pinger) Ping(ctx context.Context) (int, error) {
	if p.BaseURL == "" {
		return 0, apperr.New(apperr.KindConfiguration, "worker.Ping", "APP_URL is not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+PingPath, nil)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindConfiguration, "worker.Ping")
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindNetwork, "worker.Ping")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, apperr.Newf(apperr.KindExternalService, "worker.Ping", "ping returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

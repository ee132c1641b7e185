package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
)

// DefaultAPIBase is the versioned REST root.
const DefaultAPIBase = "https://discord.com/api/v10"

// Client calls the interactions REST endpoints: the initial callback and
// the follow-up webhook.
type Client struct {
	apiBase    string
	clientID   string
	httpClient *http.Client
}

// NewClient returns a Client for application clientID. An empty apiBase
// uses DefaultAPIBase.
func NewClient(apiBase, clientID string, timeout time.Duration) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		clientID:   clientID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SendDeferred acknowledges interaction id with a deferred channel message
// so the follow-up can arrive later.
func (c *Client) SendDeferred(ctx context.Context, interactionID, token string) error {
	url := fmt.Sprintf("%s/interactions/%s/%s/callback", c.apiBase, interactionID, token)
	return c.post(ctx, "discord.SendDeferred", url, InteractionResponse{Type: ResponseDeferredChannelMessage})
}

// SendFollowUp posts the real reply for the interaction token.
func (c *Client) SendFollowUp(ctx context.Context, token string, payload WebhookPayload) error {
	url := fmt.Sprintf("%s/webhooks/%s/%s", c.apiBase, c.clientID, token)
	return c.post(ctx, "discord.SendFollowUp", url, payload)
}

func (c *Client) post(ctx context.Context, op, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, op)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return apperr.Wrap(stripURL(err), apperr.KindInternal, op)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(stripURL(err), apperr.KindNetwork, op)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Newf(apperr.KindExternalService, op,
			"failed to send response: %d %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}

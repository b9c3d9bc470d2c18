package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const webhookTimeout = 5 * time.Second

// WebhookPage posts events as JSON to a registered URL.
type WebhookPage struct {
	id     string
	url    string
	client *http.Client
}

// NewWebhookPage validates target and returns a page posting to it.
func NewWebhookPage(id, target string) (*WebhookPage, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("webhook url must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("webhook url %q has no host", target)
	}
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = webhookTimeout
	return &WebhookPage{id: id, url: parsed.String(), client: client}, nil
}

func (p *WebhookPage) ID() string { return p.id }

// URL returns the delivery target.
func (p *WebhookPage) URL() string { return p.url }

func (p *WebhookPage) Deliver(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Focusblocks-Event", event.Name)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %s", p.url, resp.Status)
	}
	return nil
}

package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/frahmantamala/kitchen-ops/internal"
)

type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// WebhookSender POSTs notifications as JSON, retrying transient failures
// with exponential backoff. 4xx responses are not retried.
type WebhookSender struct {
	url        string
	client     *http.Client
	maxElapsed time.Duration
	initial    time.Duration
}

func NewWebhookSender(url string, timeout, maxElapsed time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxElapsed <= 0 {
		maxElapsed = time.Minute
	}
	return &WebhookSender{
		url:        url,
		client:     &http.Client{Timeout: timeout},
		maxElapsed: maxElapsed,
		initial:    500 * time.Millisecond,
	}
}

// WithInitialInterval overrides the first retry delay.
func (s *WebhookSender) WithInitialInterval(d time.Duration) *WebhookSender {
	s.initial = d
	return s
}

func (s *WebhookSender) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to marshal notification: %w", err))
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initial
	policy.MaxElapsedTime = s.maxElapsed

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Notification-ID", n.ID)
		req.Header.Set("X-Event-Type", n.Type)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
			return backoff.Permanent(fmt.Errorf("webhook rejected notification with status %d", resp.StatusCode))
		default:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return internal.NewExternalError("notification webhook delivery failed", internal.ErrCodeDeliveryFailed, err)
	}
	return nil
}

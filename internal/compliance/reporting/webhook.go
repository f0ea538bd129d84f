package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Channel is a notification target for alerts.
type Channel interface {
	Send(ctx context.Context, alert Alert) error
	Type() string
	Enabled() bool
}

// WebhookChannel posts alerts as JSON to an HTTP endpoint with
// bounded-timeout retries.
type WebhookChannel struct {
	url        string
	headers    map[string]string
	client     *http.Client
	retryCount int
	enabled    bool
	logger     *zap.Logger
}

var _ Channel = (*WebhookChannel)(nil)

// NewWebhookChannel creates a webhook channel. A zero timeout defaults
// to 30 seconds.
func NewWebhookChannel(url string, headers map[string]string, timeout time.Duration, logger *zap.Logger) *WebhookChannel {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WebhookChannel{
		url:        url,
		headers:    headers,
		client:     &http.Client{Timeout: timeout},
		retryCount: 3,
		enabled:    true,
		logger:     logger,
	}
}

func (wc *WebhookChannel) Type() string  { return "webhook" }
func (wc *WebhookChannel) Enabled() bool { return wc.enabled }

// Send posts the alert, retrying with linear backoff.
func (wc *WebhookChannel) Send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return errors.Wrap(err, "encoding alert payload")
	}

	var lastErr error
	for i := 0; i <= wc.retryCount; i++ {
		if err := wc.post(ctx, payload); err != nil {
			lastErr = err
			wc.logger.Warn("webhook send failed",
				zap.Int("attempt", i+1),
				zap.Error(err))
			if i < wc.retryCount {
				select {
				case <-time.After(time.Duration(i+1) * time.Second):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		} else {
			return nil
		}
	}
	return errors.Wrapf(lastErr, "webhook failed after %d attempts", wc.retryCount+1)
}

func (wc *WebhookChannel) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range wc.headers {
		req.Header.Set(k, v)
	}

	resp, err := wc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

package event

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const webhookRetries = 2

// WebhookSink POSTs each event as JSON to a configured URL.
type WebhookSink struct {
	client *resty.Client
	url    string
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(webhookRetries).
		SetRetryWaitTime(100*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &WebhookSink{client: client, url: url}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, topic string, payload []byte) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Topic", topic).
		SetBody(payload).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook responded %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

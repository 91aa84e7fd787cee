package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// WebhookSender POSTs each notification as JSON to a fixed URL.
type WebhookSender struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhookSender(rawURL, secret string) (*WebhookSender, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("webhook url must be http or https")
	}
	if u.Host == "" {
		return nil, errors.New("webhook url has no host")
	}
	return &WebhookSender{url: u.String(), secret: secret, client: &http.Client{}}, nil
}

func (w *WebhookSender) Send(ctx context.Context, n Notification) error {
	return postJSON(ctx, w.client, w.url, w.secret, n)
}

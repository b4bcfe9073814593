// Package webhook delivers terminal job results to the configured
// callback endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/framehook/captiond/internal/core/domain"
)

// Notifier posts a job's single terminal payload. The HTTP client is the
// shared process-wide pool, not a per-call construction.
type Notifier struct {
	logger  *slog.Logger
	client  *http.Client
	url     string
	secret  string
	timeout time.Duration
}

func NewNotifier(logger *slog.Logger, client *http.Client, url, secret string, timeout time.Duration) *Notifier {
	return &Notifier{
		logger:  logger,
		client:  client,
		url:     url,
		secret:  secret,
		timeout: timeout,
	}
}

// Notify POSTs the payload as JSON. With no endpoint configured it
// acknowledges without a network call. The response body is decoded only
// when the endpoint declares a JSON content type.
func (n *Notifier) Notify(ctx context.Context, payload domain.WebhookPayload) (map[string]any, error) {
	if n.url == "" {
		n.logger.Warn("no webhook endpoint configured")
		return map[string]any{"status": "no-endpoint"}, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.DeliveryError{Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	postCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(postCtx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("Authorization", "Bearer "+n.secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, &domain.DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.DeliveryError{
			Err: fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(detail)),
		}
	}

	n.logger.Info("webhook sent", "status", resp.StatusCode)

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var ack map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil {
			return ack, nil
		}
	}
	return map[string]any{"status": "success"}, nil
}

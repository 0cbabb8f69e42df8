// Package webhook delivers canonical inbound messages to the configured
// HTTP endpoint, one POST per message.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/chasqui-io/chasqui/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 50 * time.Second

type Dispatcher struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewDispatcher(url string, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Forward posts one canonical message. A non-2xx response is an error to
// the caller; there is no retry or redelivery queue here.
func (d *Dispatcher) Forward(ctx context.Context, msg *domain.CanonicalMessage) error {
	if d.url == "" {
		d.log.Debug("webhook not configured, dropping message", "message", msg.ID)
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: encode message %s: %w", msg.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post message %s: %w", msg.ID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: message %s rejected with status %d", msg.ID, resp.StatusCode)
	}

	d.log.Info("webhook delivered", "message", msg.ID, "session", msg.SessionID, "status", resp.StatusCode)
	return nil
}

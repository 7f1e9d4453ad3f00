package notifications

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
)

// SignatureHeader carries "sha256=<hex hmac of body>".
const SignatureHeader = "X-Signature"

// ErrCircuitOpen is returned while the webhook endpoint is considered down.
var ErrCircuitOpen = errors.New("webhook circuit open")

// WebhookSender POSTs push events to a fixed URL, signing each body with a
// shared secret. Calls go through a circuit breaker so a dead endpoint stops
// costing a timeout per event.
type WebhookSender struct {
	url     string
	secret  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewWebhookSender(url, secret string, logger *slog.Logger) *WebhookSender {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "push-webhook",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Webhook circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &WebhookSender{
		url:    url,
		secret: secret,
		// Don't let a slow endpoint block the worker.
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (w *WebhookSender) Dispatch(ctx context.Context, event domain.PushEvent) error {
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.send(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (w *WebhookSender) send(ctx context.Context, event domain.PushEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DigiBank-Webhook/1.0")
	req.Header.Set(SignatureHeader, "sha256="+Sign(jsonData, w.secret))

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

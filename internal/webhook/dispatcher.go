package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
)

const (
	EventConversionSucceeded = "conversion.succeeded"
	EventConversionFailed    = "conversion.failed"
)

// Dispatcher posts signed JSON callbacks. With an empty secret the signature
// header is omitted.
type Dispatcher struct {
	secret     string
	httpClient *http.Client
}

func NewDispatcher(secret string) *Dispatcher {
	return &Dispatcher{
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyConversion sends the terminal result of a conversion to url.
func (d *Dispatcher) NotifyConversion(ctx context.Context, url string, res pipeline.ConversionResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	event := EventConversionFailed
	if res.Success {
		event = EventConversionSucceeded
	}
	return d.Deliver(ctx, url, event, res.RequestID, payload)
}

func (d *Dispatcher) Deliver(ctx context.Context, url, event, deliveryID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Webhook-Event", event)
	httpReq.Header.Set("X-Webhook-ID", deliveryID)
	if d.secret != "" {
		httpReq.Header.Set("X-Webhook-Signature", Sign(payload, d.secret))
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook %s returned status %d", event, resp.StatusCode)
	}
	slog.Debug("webhook delivered", "event", event, "delivery_id", deliveryID, "status", resp.StatusCode)
	return nil
}

// Sign returns the X-Webhook-Signature value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

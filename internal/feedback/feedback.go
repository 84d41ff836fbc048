// Package feedback relays user feedback to a chat webhook.
package feedback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/johbar/ocr-language-service/internal/geoip"
)

// ErrDisabled is returned when no webhook is configured
var ErrDisabled = errors.New("feedback webhook not configured")

const unknown = "unknown"

// Format renders the webhook message. Location details are hidden behind spoiler marks.
func Format(text string, d *geoip.Details) string {
	var ip, flag, country, city, region string
	if d == nil {
		ip, flag, country, city, region = unknown, "🏳️", unknown, unknown, unknown
	} else {
		ip, flag, country, city, region = d.IP, d.Flag, d.Country, d.City, d.Region
	}
	return fmt.Sprintf(`
User Details:
  👤 IP Address: %s

  %s Country: %s
  🏙️ City: ||%s||
  🗺️ Region: ||%s||

Submitted Text: `+"```%s```", maskIP(ip), flag, country, city, region, text)
}

// maskIP keeps the first octet visible and hides the rest, e.g. `203||.0.113.7||`.
func maskIP(ip string) string {
	first, rest, found := strings.Cut(ip, ".")
	if !found {
		return ip
	}
	return first + "||." + rest + "||"
}

type message struct {
	Content string `json:"content"`
}

// Relay posts messages to a Discord compatible webhook.
type Relay struct {
	webhookUrl string
	httpClient *http.Client
	maxRetries uint64
	log        *slog.Logger
}

func NewRelay(webhookUrl string, httpClient *http.Client, logger *slog.Logger) *Relay {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Relay{webhookUrl: webhookUrl, httpClient: httpClient, maxRetries: 3, log: logger}
}

func (r *Relay) Enabled() bool {
	return r.webhookUrl != ""
}

// Send posts content. Server errors, rate limiting and network errors are retried with backoff.
func (r *Relay) Send(ctx context.Context, content string) error {
	if !r.Enabled() {
		return ErrDisabled
	}
	payload, err := json.Marshal(message{Content: content})
	if err != nil {
		return err
	}
	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookUrl, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.httpClient.Do(req)
		if err != nil {
			r.log.Warn("Sending webhook failed", "attempt", attempt, "err", err)
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			r.log.Warn("Webhook temporarily unavailable", "attempt", attempt, "status", resp.Status)
			return fmt.Errorf("webhook responded %s", resp.Status)
		}
		return backoff.Permanent(fmt.Errorf("webhook responded %s", resp.Status))
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx))
}

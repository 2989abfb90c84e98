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

	"github.com/use-agent/scrapedeck/models"
)

// Event types.
const (
	EventEntityChanged = "entity.changed"
	EventEntityFailed  = "entity.failed"
)

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Scrapedeck-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string             `json:"type"`
	EntityID  string             `json:"entity_id"`
	Timestamp int64              `json:"timestamp"`
	Data      models.FetchReport `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Scrapedeck-Webhook/"+models.Version)
	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notifier turns fetch reports into webhook events.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
	now    func() time.Time
}

// NewNotifier creates a Notifier. It retries failed deliveries after 1s, 5s
// and 30s.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		now:    time.Now,
	}
}

// Events builds one event per changed or failed report. Reports that are
// neither produce nothing.
func (n *Notifier) Events(reports []models.FetchReport) []*Event {
	var events []*Event
	for _, r := range reports {
		typ := ""
		switch {
		case r.Error != nil:
			typ = EventEntityFailed
		case r.Changed:
			typ = EventEntityChanged
		default:
			continue
		}
		events = append(events, &Event{
			Type:      typ,
			EntityID:  r.ID,
			Timestamp: n.now().Unix(),
			Data:      r,
		})
	}
	return events
}

// Notify delivers the events for reports synchronously, one attempt each, and
// returns the first delivery error.
func (n *Notifier) Notify(ctx context.Context, reports []models.FetchReport) error {
	var first error
	for _, ev := range n.Events(reports) {
		if err := Deliver(ctx, n.client, n.url, n.secret, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NotifyAsync delivers the events for reports in the background with retries.
func (n *Notifier) NotifyAsync(reports []models.FetchReport) {
	for _, ev := range n.Events(reports) {
		n.deliverAsync(ev)
	}
}

func (n *Notifier) deliverAsync(event *Event) {
	go func() {
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, n.client, n.url, n.secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"event", event.Type,
					"entity_id", event.EntityID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"entity_id", event.EntityID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"entity_id", event.EntityID,
		)
	}()
}

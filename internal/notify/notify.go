// Package notify delivers fire-and-forget event notifications to an external
// webhook. Delivery failures are logged and counted, never returned.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Event string

const (
	EventEmailReceipt     Event = "email_receipt"
	EventCustomerFeedback Event = "customer_feedback"
)

type Notifier interface {
	Notify(ctx context.Context, event Event, payload any)
}

// Recorder receives one outcome per notification: sent, failed or dropped.
type Recorder interface {
	Notification(event string, outcome string)
}

type Noop struct{}

func (Noop) Notify(context.Context, Event, any) {}

type envelope struct {
	Event Event `json:"event"`
	Data  any   `json:"data"`
}

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Workers int
	Queue   int
}

type Webhook struct {
	url      string
	timeout  time.Duration
	client   *http.Client
	pool     *pool
	log      *slog.Logger
	recorder Recorder
}

// New returns Noop when cfg.URL is empty.
func New(cfg WebhookConfig, log *slog.Logger, recorder Recorder) Notifier {
	if cfg.URL == "" {
		return Noop{}
	}
	return NewWebhook(cfg, log, recorder)
}

func NewWebhook(cfg WebhookConfig, log *slog.Logger, recorder Recorder) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.Queue < 1 {
		cfg.Queue = cfg.Workers * 64
	}
	if log == nil {
		log = slog.Default()
	}

	return &Webhook{
		url:      cfg.URL,
		timeout:  cfg.Timeout,
		client:   &http.Client{Timeout: cfg.Timeout},
		pool:     newPool(cfg.Workers, cfg.Queue),
		log:      log,
		recorder: recorder,
	}
}

// Notify serializes payload immediately and queues delivery. It returns
// without waiting for the webhook; the request context is not reused for
// delivery, so a finished HTTP request does not cancel its notifications.
func (w *Webhook) Notify(_ context.Context, event Event, payload any) {
	body, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		w.log.Warn("notification payload not serializable", "event", event, "error", err)
		w.record(event, "failed")
		return
	}

	err = w.pool.submit(func() { w.deliver(event, body) })
	if err != nil {
		w.log.Warn("notification dropped", "event", event, "error", err)
		w.record(event, "dropped")
	}
}

// Close waits for queued deliveries to finish.
func (w *Webhook) Close() error {
	w.pool.shutdown()
	return nil
}

func (w *Webhook) deliver(event Event, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.post(ctx, body); err != nil {
		w.log.Warn("notification delivery failed", "event", event, "error", err)
		w.record(event, "failed")
		return
	}
	w.record(event, "sent")
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) record(event Event, outcome string) {
	if w.recorder != nil {
		w.recorder.Notification(string(event), outcome)
	}
}

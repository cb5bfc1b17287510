package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) Notification(event string, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, event+":"+outcome)
}

func (o *outcomes) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seen...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWithoutURLIsNoop(t *testing.T) {
	n := New(WebhookConfig{}, quietLogger(), nil)
	_, ok := n.(Noop)
	assert.True(t, ok)
	n.Notify(context.Background(), EventEmailReceipt, map[string]string{"x": "y"})
}

func TestWebhookDeliversEnvelope(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	rec := &outcomes{}
	hook := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: time.Second, Workers: 1}, quietLogger(), rec)

	hook.Notify(context.Background(), EventCustomerFeedback, map[string]any{"rating": 5})

	select {
	case body := <-received:
		assert.Equal(t, "customer_feedback", body["event"])
		assert.Equal(t, map[string]any{"rating": float64(5)}, body["data"])
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was not called")
	}

	require.NoError(t, hook.Close())
	assert.Equal(t, []string{"customer_feedback:sent"}, rec.all())
}

func TestWebhookFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &outcomes{}
	hook := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: time.Second, Workers: 1}, quietLogger(), rec)
	hook.Notify(context.Background(), EventEmailReceipt, struct{}{})
	require.NoError(t, hook.Close())

	assert.Equal(t, []string{"email_receipt:failed"}, rec.all())
}

func TestWebhookTimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	rec := &outcomes{}
	hook := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: 50 * time.Millisecond, Workers: 1}, quietLogger(), rec)

	start := time.Now()
	hook.Notify(context.Background(), EventEmailReceipt, struct{}{})
	assert.Less(t, time.Since(start), 50*time.Millisecond, "Notify must not wait for delivery")

	require.NoError(t, hook.Close())
	assert.Equal(t, []string{"email_receipt:failed"}, rec.all())
}

func TestWebhookUnreachableEndpoint(t *testing.T) {
	rec := &outcomes{}
	hook := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:1/hook", Timeout: 200 * time.Millisecond, Workers: 1}, quietLogger(), rec)
	hook.Notify(context.Background(), EventEmailReceipt, struct{}{})
	require.NoError(t, hook.Close())
	assert.Equal(t, []string{"email_receipt:failed"}, rec.all())
}

func TestPoolRejectsWhenFullAndAfterShutdown(t *testing.T) {
	p := newPool(1, 1)

	blocker := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.submit(func() {
		close(started)
		<-blocker
	}))
	<-started

	require.NoError(t, p.submit(func() {}))
	assert.ErrorIs(t, p.submit(func() {}), errPoolFull)

	close(blocker)
	p.shutdown()
	assert.ErrorIs(t, p.submit(func() {}), errPoolClosed)
	p.shutdown()
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	p := newPool(1, 4)
	done := make(chan struct{})
	require.NoError(t, p.submit(func() { panic("boom") }))
	require.NoError(t, p.submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
	p.shutdown()
}

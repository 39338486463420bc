package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"
)

func downEvent() AlertEvent {
	return AlertEvent{
		MonitorID:           "m1",
		Name:                "api",
		URL:                 "http://api.example.com",
		Timestamp:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WasUp:               true,
		Status:              503,
		Error:               "HTTP 503 Service Unavailable",
		ConsecutiveFailures: 1,
	}
}

func TestAlertEventText(t *testing.T) {
	ev := downEvent()
	assert.Equal(t, "down", ev.Kind())
	assert.Equal(t, "[upwatch] api is DOWN", ev.Subject())
	assert.Contains(t, ev.Describe(), "HTTP 503 Service Unavailable")
	assert.Contains(t, ev.Describe(), "2026-03-01T12:00:00Z")

	ev.NowUp, ev.WasUp, ev.Status, ev.Error, ev.LatencyMs = true, false, 200, "", 42
	assert.Equal(t, "recovered", ev.Kind())
	assert.Equal(t, "[upwatch] api is UP", ev.Subject())
	assert.Contains(t, ev.Describe(), "status 200")
	assert.Contains(t, ev.Describe(), "latency 42ms")
}

func TestWebhookSinkPostsEvent(t *testing.T) {
	var (
		mu   sync.Mutex
		got  map[string]json.RawMessage
		hits int
	)
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		defer mu.Unlock()
		hits++
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	sink := NewWebhookSink([]string{failing.URL, ok.URL})
	err := sink.Notify(context.Background(), downEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 502")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
	assert.JSONEq(t, `"down"`, string(got["type"]))
	var ev AlertEvent
	require.NoError(t, json.Unmarshal(got["event"], &ev))
	assert.Equal(t, "m1", ev.MonitorID)
	assert.Equal(t, 503, ev.Status)
}

func TestEmailSink(t *testing.T) {
	cfg := SMTPConfig{Host: "smtp.example.com", Port: 587, From: "upwatch@example.com", To: []string{"ops@example.com", "dev@example.com"}}
	require.True(t, cfg.Enabled())

	var sent *mail.Message
	sink := NewEmailSink(cfg)
	sink.send = func(m *mail.Message) error {
		sent = m
		return nil
	}
	require.NoError(t, sink.Notify(context.Background(), downEvent()))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"[upwatch] api is DOWN"}, sent.GetHeader("Subject"))
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, sent.GetHeader("To"))

	var buf bytes.Buffer
	_, err := sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "text/html"))

	sink.send = func(*mail.Message) error { return errors.New("relay denied") }
	assert.ErrorContains(t, sink.Notify(context.Background(), downEvent()), "relay denied")

	block := make(chan struct{})
	defer close(block)
	sink.send = func(*mail.Message) error { <-block; return nil }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sink.Notify(ctx, downEvent()), context.DeadlineExceeded)
}

func TestBroadcastSinkPublishesAlert(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()
	client := b.subscribe("test")
	defer b.unsubscribe(client.id)

	require.NoError(t, NewBroadcastSink(b).Notify(context.Background(), downEvent()))

	select {
	case msg := <-client.send:
		var decoded struct {
			Type string     `json:"type"`
			Data AlertEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &decoded))
		assert.Equal(t, "alert", decoded.Type)
		assert.Equal(t, "m1", decoded.Data.MonitorID)
	case <-time.After(time.Second):
		t.Fatal("no alert broadcast")
	}
}

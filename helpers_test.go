package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestProber() *Prober {
	p := NewProber(testLogger())
	p.retryDelay = 10 * time.Millisecond
	return p
}

// statusServer answers every request with the current value of status and
// counts the requests it served.
type statusServer struct {
	*httptest.Server
	status atomic.Int32
	hits   atomic.Int32
	delay  time.Duration
}

func newStatusServer(t *testing.T, status int) *statusServer {
	t.Helper()
	return newSlowServer(t, status, 0)
}

func newSlowServer(t *testing.T, status int, delay time.Duration) *statusServer {
	t.Helper()
	s := &statusServer{delay: delay}
	s.status.Store(int32(status))
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		w.WriteHeader(int(s.status.Load()))
	}))
	t.Cleanup(s.Close)
	return s
}

// closedURL returns a URL nothing listens on.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

type countingSaver struct {
	n atomic.Int32
}

func (c *countingSaver) RequestSave() {
	c.n.Add(1)
}

type recordingReconciler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingReconciler) Reconcile(id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func (r *recordingReconciler) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []AlertEvent
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Notify(_ context.Context, event AlertEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) all() []AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AlertEvent(nil), s.events...)
}

type testEngine struct {
	registry *Registry
	checker  *Checker
	sink     *recordingSink
	saver    *countingSaver
}

func newTestEngine() *testEngine {
	saver := &countingSaver{}
	registry := NewRegistry(testLogger(), saver)
	sink := &recordingSink{}
	dispatcher := NewDispatcher(testLogger(), sink)
	checker := NewChecker(registry, newTestProber(), dispatcher, saver, nil, testLogger())
	return &testEngine{registry: registry, checker: checker, sink: sink, saver: saver}
}

func boolPtr(b bool) *bool       { return &b }
func int64Ptr(n int64) *int64    { return &n }
func stringPtr(s string) *string { return &s }

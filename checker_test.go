package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAlertsOnlyOnStateChange(t *testing.T) {
	e := newTestEngine()
	srv := newStatusServer(t, http.StatusOK)
	m, err := e.registry.Create(CreateMonitorRequest{Name: "site", URL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	// never checked counts as down, so the first up result is a change
	_, err = e.checker.Check(ctx, m.ID, false)
	require.NoError(t, err)
	require.Len(t, e.sink.all(), 1)
	assert.True(t, e.sink.all()[0].NowUp)
	assert.False(t, e.sink.all()[0].WasUp)

	_, err = e.checker.Check(ctx, m.ID, false)
	require.NoError(t, err)
	assert.Len(t, e.sink.all(), 1)

	srv.status.Store(http.StatusInternalServerError)
	for i := 0; i < 2; i++ {
		_, err = e.checker.Check(ctx, m.ID, false)
		require.NoError(t, err)
	}
	events := e.sink.all()
	require.Len(t, events, 2)
	down := events[1]
	assert.True(t, down.WasUp)
	assert.False(t, down.NowUp)
	assert.Equal(t, "site", down.Name)
	assert.Equal(t, http.StatusInternalServerError, down.Status)
	assert.Equal(t, "down", down.Kind())

	got, err := e.registry.Get(m.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ConsecutiveFailures)
	assert.Zero(t, got.RetryCount)

	srv.status.Store(http.StatusOK)
	_, err = e.checker.Check(ctx, m.ID, true)
	require.NoError(t, err)
	events = e.sink.all()
	require.Len(t, events, 3)
	assert.Equal(t, "recovered", events[2].Kind())
	assert.True(t, events[2].Forced)

	got, err = e.registry.Get(m.ID, -1)
	require.NoError(t, err)
	assert.Zero(t, got.ConsecutiveFailures)
	assert.Equal(t, http.StatusOK, got.LastStatus)
	assert.Empty(t, got.LastError)
	assert.Len(t, got.History, 5)
	assert.Equal(t, int32(5), e.saver.n.Load()-1)
}

func TestCheckTransportFailure(t *testing.T) {
	e := newTestEngine()
	m, err := e.registry.Create(CreateMonitorRequest{URL: closedURL(t)})
	require.NoError(t, err)

	point, err := e.checker.Check(context.Background(), m.ID, false)
	require.NoError(t, err)
	assert.Equal(t, MaxRetries, point.Attempt)

	got, err := e.registry.Get(m.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LastStatus)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, 1, got.ConsecutiveFailures)
	assert.NotEmpty(t, got.LastError)
	assert.True(t, got.Checked())
	require.Len(t, got.History, 1)
	assert.NotEmpty(t, got.History[0].Error)
	assert.False(t, got.History[0].Up)

	// still down: no alert for a monitor that was never up
	assert.Empty(t, e.sink.all())
}

func TestCheckSingleFlight(t *testing.T) {
	e := newTestEngine()
	srv := newSlowServer(t, http.StatusOK, 300*time.Millisecond)
	m, err := e.registry.Create(CreateMonitorRequest{URL: srv.URL})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := e.checker.Check(context.Background(), m.ID, false)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return e.registry.InFlight(m.ID) }, 2*time.Second, 5*time.Millisecond)
	for i := 0; i < 4; i++ {
		_, err := e.checker.Check(context.Background(), m.ID, true)
		assert.True(t, errors.Is(err, ErrCheckInFlight))
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.hits.Load())
	assert.False(t, e.registry.InFlight(m.ID))
	got, err := e.registry.Get(m.ID, -1)
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
}

func TestCheckKeepsHistoryBounded(t *testing.T) {
	e := newTestEngine()
	srv := newStatusServer(t, http.StatusOK)

	history := make([]HistoryRecord, HistoryLimit)
	base := time.Now().Add(-time.Hour)
	for i := range history {
		history[i] = HistoryRecord{Timestamp: base.Add(time.Duration(i) * time.Second).UnixMilli(), Up: true, Status: 200, Attempt: 1}
	}
	e.registry.Restore([]MonitorRecord{{ID: "m", URL: srv.URL, IntervalMs: 2000, Enabled: true, History: history}})

	for i := 0; i < 3; i++ {
		_, err := e.checker.Check(context.Background(), "m", false)
		require.NoError(t, err)
	}

	got, err := e.registry.Get("m", -1)
	require.NoError(t, err)
	require.Len(t, got.History, HistoryLimit)
	assert.Equal(t, history[3].Timestamp, got.History[0].Timestamp.UnixMilli())
}

func TestCheckUnknownMonitor(t *testing.T) {
	e := newTestEngine()
	_, err := e.checker.Check(context.Background(), "missing", false)
	assert.True(t, IsType(err, NotFoundError))
}

func TestCheckCancelledRecordsNothing(t *testing.T) {
	e := newTestEngine()
	srv := newStatusServer(t, http.StatusOK)
	m, err := e.registry.Create(CreateMonitorRequest{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.checker.Check(ctx, m.ID, false)
	require.ErrorIs(t, err, context.Canceled)

	got, err := e.registry.Get(m.ID, -1)
	require.NoError(t, err)
	assert.Empty(t, got.History)
	assert.False(t, got.Checked())
	assert.False(t, e.registry.InFlight(m.ID))
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panics" }

func (panickingSink) Notify(context.Context, AlertEvent) error { panic("boom") }

type failingSink struct{}

func (failingSink) Name() string { return "fails" }

func (failingSink) Notify(context.Context, AlertEvent) error { return errors.New("unreachable") }

func TestDispatcherIsolatesSinks(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(testLogger(), panickingSink{}, failingSink{})
	d.Register(sink)

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), AlertEvent{MonitorID: "m", NowUp: true})
	})
	require.Len(t, sink.all(), 1)
	assert.Equal(t, "m", sink.all()[0].MonitorID)
	assert.Equal(t, []string{"panics", "fails", "recording"}, d.Sinks())
}

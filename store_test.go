package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(n int) []MonitorRecord {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	history := make([]HistoryRecord, n)
	for i := range history {
		history[i] = HistoryRecord{Timestamp: base + int64(i)*1000, Up: i%3 != 0, Status: 200, Latency: int64(10 + i), Attempt: 1}
	}
	history[0].Status = 0
	history[0].Error = "connection refused"
	history[0].Attempt = 3
	history[0].Forced = true

	return []MonitorRecord{
		{
			ID:                  "a",
			Name:                "api",
			URL:                 "http://api.example.com",
			IntervalMs:          5000,
			History:             history,
			LastStatus:          200,
			LastLatency:         12,
			LastChecked:         base + int64(n-1)*1000,
			Enabled:             true,
			RetryCount:          1,
			ConsecutiveFailures: 0,
		},
		{
			ID:         "b",
			URL:        "https://b.example.com",
			IntervalMs: 60000,
			History:    []HistoryRecord{},
			LastError:  "HTTP 503 Service Unavailable",
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "monitors.json")
	s := NewFileStore(path)
	ctx := context.Background()

	records, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, records)

	want := sampleRecords(5)
	require.NoError(t, s.Save(ctx, want))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Save(ctx, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "data", "upwatch.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	records, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	want := sampleRecords(10)
	require.NoError(t, s.Save(ctx, want))
	// saving the same snapshot again must not duplicate points
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0], got[0])
	assert.Equal(t, "b", got[1].ID)
	assert.Empty(t, got[1].History)
	assert.Equal(t, want[1].LastError, got[1].LastError)
}

func TestSQLiteStoreTrimsAndRemoves(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	records := sampleRecords(10)
	require.NoError(t, s.Save(ctx, records))

	// the ledger evicted its four oldest points and gained two new ones
	a := records[0]
	last := a.History[len(a.History)-1].Timestamp
	a.History = append(append([]HistoryRecord{}, a.History[4:]...),
		HistoryRecord{Timestamp: last + 1000, Up: true, Status: 200, Attempt: 1},
		HistoryRecord{Timestamp: last + 2000, Up: false, Status: 500, Attempt: 3, Error: "HTTP 500 Internal Server Error"},
	)
	require.NoError(t, s.Save(ctx, []MonitorRecord{a}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.History, got[0].History)

	// a reset ledger clears stored history
	a.History = nil
	require.NoError(t, s.Save(ctx, []MonitorRecord{a}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].History)

	require.NoError(t, s.Save(ctx, nil))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStoreLoadCapsHistory(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	records := sampleRecords(HistoryLimit + 30)
	require.NoError(t, s.Save(ctx, records[:1]))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].History, HistoryLimit)
	assert.Equal(t, records[0].History[30:], got[0].History)
}

func TestSQLiteStoreMaintain(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleRecords(3)))

	orphan := historyRow{MonitorID: "gone", Timestamp: 1, Attempt: 1}
	require.NoError(t, s.db.Create(&orphan).Error)

	deleted, err := s.Maintain(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got[0].History, 3)

	m, ok := maintainerOf(NewFallbackStore(s, NewFileStore(filepath.Join(t.TempDir(), "m.json")), testLogger()))
	assert.True(t, ok)
	assert.Same(t, s, m)
	_, ok = maintainerOf(NewFileStore("x.json"))
	assert.False(t, ok)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context) ([]MonitorRecord, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Save(context.Context, []MonitorRecord) error {
	return errors.New("disk on fire")
}

func TestFallbackStore(t *testing.T) {
	ctx := context.Background()
	secondary := NewFileStore(filepath.Join(t.TempDir(), "monitors.json"))
	s := NewFallbackStore(brokenStore{}, secondary, testLogger())

	want := sampleRecords(2)
	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	both := NewFallbackStore(brokenStore{}, brokenStore{}, testLogger())
	_, err = both.Load(ctx)
	assert.ErrorContains(t, err, "fallback")
	assert.Error(t, both.Save(ctx, want))
}

type countingStore struct {
	mu    sync.Mutex
	saves atomic.Int32
	last  []MonitorRecord
}

func (s *countingStore) Load(context.Context) ([]MonitorRecord, error) { return nil, nil }

func (s *countingStore) Save(_ context.Context, records []MonitorRecord) error {
	s.mu.Lock()
	s.last = records
	s.mu.Unlock()
	s.saves.Add(1)
	return nil
}

func (s *countingStore) lastSaved() []MonitorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func TestPersisterSavesOnRequest(t *testing.T) {
	store := &countingStore{}
	p := NewPersister(store, testLogger())
	r := NewRegistry(testLogger(), p)
	p.Attach(r)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	_, err := r.Create(CreateMonitorRequest{URL: "example.com"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(store.lastSaved()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	p.Wait()

	before := store.saves.Load()
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, before+1, store.saves.Load())
}

func TestPersisterCollapsesRequests(t *testing.T) {
	store := &countingStore{}
	p := NewPersister(store, testLogger())
	p.Attach(NewRegistry(testLogger(), nil))

	for i := 0; i < 10; i++ {
		p.RequestSave()
	}
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	require.Eventually(t, func() bool { return store.saves.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	p.Wait()
	assert.Equal(t, int32(1), store.saves.Load())
}

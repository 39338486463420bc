package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store persists the full set of monitor records.
type Store interface {
	Load(ctx context.Context) ([]MonitorRecord, error)
	Save(ctx context.Context, records []MonitorRecord) error
}

// FallbackStore reads and writes Primary, switching to Secondary when the
// primary fails.
type FallbackStore struct {
	Primary   Store
	Secondary Store
	log       zerolog.Logger
}

func NewFallbackStore(primary, secondary Store, log zerolog.Logger) *FallbackStore {
	return &FallbackStore{Primary: primary, Secondary: secondary, log: log}
}

func (s *FallbackStore) Load(ctx context.Context) ([]MonitorRecord, error) {
	records, err := s.Primary.Load(ctx)
	if err == nil {
		return records, nil
	}
	s.log.Warn().Err(err).Msg("[Store] Primary load failed, reading fallback")

	records, fbErr := s.Secondary.Load(ctx)
	if fbErr != nil {
		return nil, fmt.Errorf("primary: %v; fallback: %w", err, fbErr)
	}
	return records, nil
}

func (s *FallbackStore) Save(ctx context.Context, records []MonitorRecord) error {
	err := s.Primary.Save(ctx, records)
	if err == nil {
		return nil
	}
	s.log.Error().Err(err).Int("monitors", len(records)).Msg("[Store] Primary save failed, writing fallback")

	if fbErr := s.Secondary.Save(ctx, records); fbErr != nil {
		return fmt.Errorf("primary: %v; fallback: %w", err, fbErr)
	}
	return nil
}

// RecordSource produces the records to persist.
type RecordSource interface {
	Records() []MonitorRecord
}

// Persister writes registry snapshots in the background. Requests made while
// a save is pending collapse into one.
type Persister struct {
	store   Store
	source  RecordSource
	pending chan struct{}
	saveMu  sync.Mutex
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
	log     zerolog.Logger
}

func NewPersister(store Store, log zerolog.Logger) *Persister {
	return &Persister{
		store:   store,
		pending: make(chan struct{}, 1),
		timeout: 30 * time.Second,
		done:    make(chan struct{}),
		log:     log,
	}
}

// Attach sets the record source. It must be called before Run.
func (p *Persister) Attach(source RecordSource) {
	p.source = source
}

// RequestSave schedules a save and never blocks.
func (p *Persister) RequestSave() {
	select {
	case p.pending <- struct{}{}:
	default:
	}
}

// Run saves on request until ctx is done.
func (p *Persister) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.pending:
			if err := p.save(ctx); err != nil {
				p.log.Error().Err(err).Msg("[Store] Background save failed")
			}
		}
	}
}

// Flush saves synchronously and waits for the write to finish.
func (p *Persister) Flush(ctx context.Context) error {
	return p.save(ctx)
}

// Wait blocks until Run has returned.
func (p *Persister) Wait() {
	<-p.done
}

func (p *Persister) save(ctx context.Context) error {
	if p.source == nil {
		return nil
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	records := p.source.Records()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.store.Save(saveCtx, records); err != nil {
		return fmt.Errorf("failed to save %d monitors: %w", len(records), err)
	}
	p.log.Debug().Int("monitors", len(records)).Dur("took", time.Since(start)).Msg("[Store] Saved")
	return nil
}

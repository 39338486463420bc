package main

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reconciler is told about every monitor whose schedule may need to change.
type Reconciler interface {
	Reconcile(id string)
}

// SaveRequester accepts asynchronous persistence requests.
type SaveRequester interface {
	RequestSave()
}

// monitorEntry is the live state of one monitor. mu guards monitor and
// ledger; inFlight is the single-flight flag for checks.
type monitorEntry struct {
	mu       sync.RWMutex
	monitor  Monitor
	ledger   *Ledger
	inFlight atomic.Bool
}

func newMonitorEntry(m Monitor) *monitorEntry {
	e := &monitorEntry{ledger: NewLedger(HistoryLimit)}
	for _, p := range m.History {
		e.ledger.Append(p)
	}
	m.History = nil
	e.monitor = m
	return e
}

// snapshot copies the monitor with up to historyN of its newest points.
// historyN < 0 copies the whole ledger, 0 copies none.
func (e *monitorEntry) snapshot(historyN int) Monitor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m := e.monitor
	switch {
	case historyN < 0:
		m.History = e.ledger.Points()
	case historyN > 0:
		m.History = e.ledger.Last(historyN)
	}
	return m
}

func (e *monitorEntry) summary() MonitorSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m := e.monitor
	up, total := e.ledger.Counts()
	return MonitorSummary{
		ID:                  m.ID,
		Name:                m.Name,
		URL:                 m.URL,
		IntervalMs:          m.IntervalMs,
		Enabled:             m.Enabled,
		LastStatus:          m.LastStatus,
		LastLatency:         m.LastLatency,
		LastChecked:         m.LastChecked,
		LastError:           m.LastError,
		ConsecutiveFailures: m.ConsecutiveFailures,
		RetryCount:          m.RetryCount,
		HistoryLength:       total,
		UptimePct:           ratioPct(up, total),
		Health:              healthStatus(m),
	}
}

func (e *monitorEntry) detail(historyN int) MonitorDetail {
	summary := e.summary()
	e.mu.RLock()
	history := e.ledger.Last(historyN)
	e.mu.RUnlock()
	return MonitorDetail{MonitorSummary: summary, History: history}
}

func (e *monitorEntry) release() {
	e.inFlight.Store(false)
}

// Registry owns every monitor. The map lock is only held for map access;
// per-monitor state has its own lock so list and get never wait on a check.
type Registry struct {
	mu                sync.RWMutex
	entries           map[string]*monitorEntry
	order             []string
	reconciler        Reconciler
	saver             SaveRequester
	defaultIntervalMs int64
	log               zerolog.Logger
}

// NewRegistry creates an empty registry. saver may be nil.
func NewRegistry(log zerolog.Logger, saver SaveRequester) *Registry {
	return &Registry{
		entries:           make(map[string]*monitorEntry),
		saver:             saver,
		defaultIntervalMs: DefaultIntervalMs,
		log:               log,
	}
}

// SetReconciler wires the scheduler in once it exists.
func (r *Registry) SetReconciler(rc Reconciler) {
	r.mu.Lock()
	r.reconciler = rc
	r.mu.Unlock()
}

// SetDefaultInterval sets the interval used when a create request has none.
func (r *Registry) SetDefaultInterval(ms int64) {
	r.mu.Lock()
	r.defaultIntervalMs = clampInterval(ms)
	r.mu.Unlock()
}

// Create validates req and registers a new enabled-by-default monitor.
func (r *Registry) Create(req CreateMonitorRequest) (Monitor, error) {
	created, err := r.CreateMany([]CreateMonitorRequest{req})
	if err != nil {
		return Monitor{}, err
	}
	return created[0], nil
}

// CreateMany validates every request before storing any of them.
func (r *Registry) CreateMany(reqs []CreateMonitorRequest) ([]Monitor, error) {
	if len(reqs) == 0 {
		return nil, NewValidationError("at least one monitor is required", nil)
	}

	r.mu.RLock()
	defaultInterval := r.defaultIntervalMs
	r.mu.RUnlock()

	monitors := make([]Monitor, 0, len(reqs))
	for i, req := range reqs {
		m, err := buildMonitor(req, defaultInterval)
		if err != nil {
			if len(reqs) > 1 {
				var appErr *AppError
				if errors.As(err, &appErr) {
					if appErr.Details == nil {
						appErr.Details = map[string]any{}
					}
					appErr.Details["index"] = i
				}
			}
			return nil, err
		}
		monitors = append(monitors, m)
	}

	r.mu.Lock()
	for _, m := range monitors {
		r.entries[m.ID] = newMonitorEntry(m)
		r.order = append(r.order, m.ID)
	}
	r.mu.Unlock()

	for _, m := range monitors {
		r.log.Info().Str("id", m.ID).Str("url", m.URL).Int64("interval_ms", m.IntervalMs).
			Msg("[Registry] Created monitor")
		r.reconcile(m.ID)
	}
	r.requestSave()
	return monitors, nil
}

// Update applies patch to the monitor with the given id.
func (r *Registry) Update(id string, patch PatchMonitorRequest) (Monitor, error) {
	if err := validateID(id); err != nil {
		return Monitor{}, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return Monitor{}, monitorNotFound(id)
	}

	var normalizedURL string
	if patch.URL != nil {
		u, err := validateAndNormalizeURL(*patch.URL)
		if err != nil {
			return Monitor{}, err
		}
		normalizedURL = u
	}
	if patch.Name != nil {
		if err := validateName(strings.TrimSpace(*patch.Name)); err != nil {
			return Monitor{}, err
		}
	}

	entry.mu.Lock()
	if patch.Name != nil {
		entry.monitor.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.URL != nil {
		entry.monitor.URL = normalizedURL
	}
	if patch.IntervalMs != nil {
		entry.monitor.IntervalMs = clampInterval(*patch.IntervalMs)
	}
	if patch.Enabled != nil {
		entry.monitor.Enabled = *patch.Enabled
	}
	m := entry.monitor
	entry.mu.Unlock()

	r.log.Info().Str("id", id).Str("url", m.URL).Int64("interval_ms", m.IntervalMs).Bool("enabled", m.Enabled).
		Msg("[Registry] Updated monitor")
	r.reconcile(id)
	r.requestSave()
	return m, nil
}

// Delete removes the monitor and cancels its schedule.
func (r *Registry) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.entries[id]; !ok {
		r.mu.Unlock()
		return monitorNotFound(id)
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.log.Info().Str("id", id).Msg("[Registry] Deleted monitor")
	r.reconcile(id)
	r.requestSave()
	return nil
}

// Reset clears history and statistics but keeps configuration.
func (r *Registry) Reset(id string) (Monitor, error) {
	if err := validateID(id); err != nil {
		return Monitor{}, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return Monitor{}, monitorNotFound(id)
	}

	entry.mu.Lock()
	entry.ledger.Reset()
	entry.monitor = Monitor{
		ID:         entry.monitor.ID,
		Name:       entry.monitor.Name,
		URL:        entry.monitor.URL,
		IntervalMs: entry.monitor.IntervalMs,
		Enabled:    entry.monitor.Enabled,
	}
	m := entry.monitor
	entry.mu.Unlock()

	r.log.Info().Str("id", id).Msg("[Registry] Reset monitor statistics")
	r.requestSave()
	return m, nil
}

// Get returns a copy of the monitor including up to historyN newest points
// (all of them when historyN < 0).
func (r *Registry) Get(id string, historyN int) (Monitor, error) {
	if err := validateID(id); err != nil {
		return Monitor{}, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return Monitor{}, monitorNotFound(id)
	}
	return entry.snapshot(historyN), nil
}

// Summary returns the list view of one monitor.
func (r *Registry) Summary(id string) (MonitorSummary, error) {
	entry, ok := r.lookup(id)
	if !ok {
		return MonitorSummary{}, monitorNotFound(id)
	}
	return entry.summary(), nil
}

// Detail returns the monitor with up to historyN of its newest points.
func (r *Registry) Detail(id string, historyN int) (MonitorDetail, error) {
	if err := validateID(id); err != nil {
		return MonitorDetail{}, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return MonitorDetail{}, monitorNotFound(id)
	}
	return entry.detail(historyN), nil
}

// List returns summaries in creation order.
func (r *Registry) List() []MonitorSummary {
	entries := r.snapshotEntries()
	out := make([]MonitorSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.summary())
	}
	return out
}

// Monitors returns copies of every monitor with their full history.
func (r *Registry) Monitors() []Monitor {
	entries := r.snapshotEntries()
	out := make([]Monitor, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot(-1))
	}
	return out
}

// DownEnabled returns the ids of enabled monitors whose last result was not up.
func (r *Registry) DownEnabled() []string {
	var ids []string
	for _, e := range r.snapshotEntries() {
		e.mu.RLock()
		m := e.monitor
		e.mu.RUnlock()
		if m.Enabled && m.Checked() && !isUpStatus(m.LastStatus) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// IDs returns every monitor id in creation order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of monitors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// HasURL reports whether some monitor already targets the normalized form of rawURL.
func (r *Registry) HasURL(rawURL string) bool {
	target := normalizeURL(rawURL)
	for _, e := range r.snapshotEntries() {
		e.mu.RLock()
		same := strings.EqualFold(e.monitor.URL, target)
		e.mu.RUnlock()
		if same {
			return true
		}
	}
	return false
}

// Restore replaces the registry content with persisted records. It neither
// reconciles nor saves; the caller starts scheduling afterwards.
func (r *Registry) Restore(records []MonitorRecord) {
	entries := make(map[string]*monitorEntry, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" || strings.TrimSpace(rec.URL) == "" {
			r.log.Warn().Str("id", rec.ID).Msg("[Registry] Skipping persisted monitor without id or URL")
			continue
		}
		if _, dup := entries[rec.ID]; dup {
			continue
		}
		m := monitorFromRecord(rec)
		m.URL = normalizeURL(m.URL)
		m.IntervalMs = clampInterval(m.IntervalMs)
		entries[m.ID] = newMonitorEntry(m)
		order = append(order, m.ID)
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()
	r.log.Info().Int("count", len(order)).Msg("[Registry] Restored monitors")
}

// Records snapshots every monitor in its persisted form.
func (r *Registry) Records() []MonitorRecord {
	monitors := r.Monitors()
	records := make([]MonitorRecord, 0, len(monitors))
	for _, m := range monitors {
		records = append(records, recordFromMonitor(m))
	}
	return records
}

// acquire marks the monitor's check as in flight. It fails with
// ErrCheckInFlight when another check already holds the flag.
func (r *Registry) acquire(id string) (*monitorEntry, error) {
	entry, ok := r.lookup(id)
	if !ok {
		return nil, monitorNotFound(id)
	}
	if !entry.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCheckInFlight
	}
	return entry, nil
}

// InFlight reports whether a check for id is currently running.
func (r *Registry) InFlight(id string) bool {
	entry, ok := r.lookup(id)
	return ok && entry.inFlight.Load()
}

func (r *Registry) lookup(id string) (*monitorEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) snapshotEntries() []*monitorEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*monitorEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *Registry) reconcile(id string) {
	r.mu.RLock()
	rc := r.reconciler
	r.mu.RUnlock()
	if rc != nil {
		rc.Reconcile(id)
	}
}

func (r *Registry) requestSave() {
	if r.saver != nil {
		r.saver.RequestSave()
	}
}

func buildMonitor(req CreateMonitorRequest, defaultIntervalMs int64) (Monitor, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return Monitor{}, err
	}
	normalized, err := validateAndNormalizeURL(req.URL)
	if err != nil {
		return Monitor{}, err
	}

	interval := req.IntervalMs
	if interval == 0 {
		interval = defaultIntervalMs
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	return Monitor{
		ID:         uuid.NewString(),
		Name:       name,
		URL:        normalized,
		IntervalMs: clampInterval(interval),
		Enabled:    enabled,
	}, nil
}

// normalizeURL trims raw and prepends http:// when no http(s) scheme is present.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "http://" + raw
}

func clampInterval(ms int64) int64 {
	if ms < MinIntervalMs {
		return MinIntervalMs
	}
	return ms
}

func validateAndNormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	err := validation.Validate(trimmed,
		validation.Required.Error("url is required"),
		validation.By(validateMonitorURL),
	)
	if err != nil {
		return "", NewValidationError(err.Error(), map[string]any{"field": "url", "value": raw})
	}
	return normalizeURL(trimmed), nil
}

func validateMonitorURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if scheme, ok := explicitScheme(raw); ok && scheme != "http" && scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "url must use http or https scheme")
	}

	parsed, err := url.Parse(normalizeURL(raw))
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid url")
	}
	if parsed.Hostname() == "" {
		return validation.NewError("validation_missing_host", "url must have a host")
	}
	return nil
}

// explicitScheme returns the lower-cased scheme when raw starts with one.
// A "://" inside the path, query or fragment of a bare host is not a scheme.
func explicitScheme(raw string) (string, bool) {
	sep := strings.Index(raw, "://")
	if sep <= 0 {
		return "", false
	}
	if rest := strings.IndexAny(raw, "/?#"); rest >= 0 && rest < sep {
		return "", false
	}
	return strings.ToLower(raw[:sep]), true
}

func validateName(name string) error {
	if err := validation.Validate(name, validation.Length(0, 255)); err != nil {
		return NewValidationError("name "+err.Error(), map[string]any{"field": "name"})
	}
	return nil
}

func validateID(id string) error {
	if err := validation.Validate(strings.TrimSpace(id), validation.Required); err != nil {
		return NewValidationError("id is required", map[string]any{"field": "id"})
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
)

const (
	defaultDetailHistory = 50
	maxRequestBody       = 1 << 20
)

// API holds the HTTP handlers.
type API struct {
	ctx         context.Context
	registry    *Registry
	checker     *Checker
	sweeper     *Sweeper
	persister   *Persister
	broadcaster *Broadcaster
	started     time.Time
	log         zerolog.Logger
}

// NewAPI builds the handlers. Checks started from the API run under ctx.
func NewAPI(ctx context.Context, registry *Registry, checker *Checker, sweeper *Sweeper, persister *Persister, broadcaster *Broadcaster, log zerolog.Logger) *API {
	return &API{
		ctx:         ctx,
		registry:    registry,
		checker:     checker,
		sweeper:     sweeper,
		persister:   persister,
		broadcaster: broadcaster,
		started:     time.Now(),
		log:         log,
	}
}

type errorBody struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// apiHandler is an http handler that reports failures by returning them.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

func (a *API) handle(h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			a.writeError(w, r, err)
		}
	}
}

// writeJSON renders data with the given status. Encoding failures are
// answered by render itself.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) error {
	render.Status(r, status)
	render.JSON(w, r, data)
	return nil
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrCheckInFlight) {
		err = NewConflictError("a check for this monitor is already running", err, nil)
	}

	status := http.StatusInternalServerError
	body := errorBody{Type: string(InternalError), Message: "An unexpected error occurred"}

	var appErr *AppError
	if errors.As(err, &appErr) {
		body = errorBody{Type: string(appErr.Type), Message: appErr.Message, Details: appErr.Details}
		switch appErr.Type {
		case ValidationError:
			status = http.StatusBadRequest
		case NotFoundError:
			status = http.StatusNotFound
		case ConflictError:
			status = http.StatusConflict
		}
	}

	ev := a.log.Debug()
	if status >= http.StatusInternalServerError {
		ev = a.log.Error()
	}
	ev.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("[API] Request failed")

	_ = writeJSON(w, r, status, errorResponse{Success: false, Error: body})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(io.LimitReader(r.Body, maxRequestBody), v); err != nil {
		return NewValidationError("invalid request body", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError(key+" must be an integer", map[string]interface{}{key: raw})
	}
	return n, nil
}

func (a *API) health(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"monitors": a.registry.Len(),
		"clients":  a.broadcaster.ClientCount(),
		"uptime":   time.Since(a.started).Round(time.Second).String(),
	})
}

func (a *API) listMonitors(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, r, http.StatusOK, a.registry.List())
}

func (a *API) createMonitor(w http.ResponseWriter, r *http.Request) error {
	var req CreateMonitorRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	m, err := a.registry.Create(req)
	if err != nil {
		return err
	}
	summary, err := a.registry.Summary(m.ID)
	if err != nil {
		return err
	}
	a.publish("monitor_added", summary)
	return writeJSON(w, r, http.StatusCreated, summary)
}

func (a *API) bulkCreateMonitors(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Monitors []CreateMonitorRequest `json:"monitors"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	created, err := a.registry.CreateMany(body.Monitors)
	if err != nil {
		return err
	}

	summaries := make([]MonitorSummary, 0, len(created))
	for _, m := range created {
		if s, err := a.registry.Summary(m.ID); err == nil {
			summaries = append(summaries, s)
			a.publish("monitor_added", s)
		}
	}
	return writeJSON(w, r, http.StatusCreated, summaries)
}

func (a *API) checkDown(w http.ResponseWriter, r *http.Request) error {
	ids := a.sweeper.Sweep(a.ctx)
	return writeJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"dispatched": len(ids),
		"ids":        ids,
	})
}

func (a *API) getMonitor(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	detail, err := a.registry.Detail(chi.URLParam(r, "id"), clampLimit(limit, defaultDetailHistory, HistoryLimit))
	if err != nil {
		return err
	}
	return writeJSON(w, r, http.StatusOK, detail)
}

func (a *API) patchMonitor(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	var patch PatchMonitorRequest
	if err := decodeJSON(r, &patch); err != nil {
		return err
	}
	if _, err := a.registry.Update(id, patch); err != nil {
		return err
	}
	summary, err := a.registry.Summary(id)
	if err != nil {
		return err
	}
	a.publish("monitor_update", summary)
	return writeJSON(w, r, http.StatusOK, summary)
}

func (a *API) deleteMonitor(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if err := a.registry.Delete(id); err != nil {
		return err
	}
	a.broadcaster.MonitorDeleted(id)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) forceCheck(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	point, err := a.checker.Check(a.ctx, id, true)
	if err != nil {
		return err
	}
	summary, err := a.registry.Summary(id)
	if err != nil {
		return err
	}
	return writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"point":   point,
		"monitor": summary,
	})
}

func (a *API) resetMonitor(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if _, err := a.registry.Reset(id); err != nil {
		return err
	}
	summary, err := a.registry.Summary(id)
	if err != nil {
		return err
	}
	a.publish("monitor_update", summary)
	return writeJSON(w, r, http.StatusOK, summary)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, r, http.StatusOK, computeStats(a.registry))
}

func (a *API) events(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	return writeJSON(w, r, http.StatusOK, recentEvents(a.registry, limit))
}

func (a *API) syncNow(w http.ResponseWriter, r *http.Request) error {
	if err := a.persister.Flush(r.Context()); err != nil {
		return NewInternalError("failed to save monitors", err, nil)
	}
	return writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"saved": a.registry.Len(),
	})
}

func (a *API) publish(kind string, summary MonitorSummary) {
	if err := a.broadcaster.Publish(kind, summary); err != nil {
		a.log.Error().Err(err).Str("type", kind).Msg("[API] Failed to publish update")
	}
	a.broadcaster.ScheduleStats()
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter mounts the API and live update endpoints.
func NewRouter(api *API, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", api.handle(api.health))

		r.Route("/monitors", func(r chi.Router) {
			r.Get("/", api.handle(api.listMonitors))
			r.Post("/", api.handle(api.createMonitor))
			r.Post("/bulk", api.handle(api.bulkCreateMonitors))
			r.Post("/check-down", api.handle(api.checkDown))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", api.handle(api.getMonitor))
				r.Patch("/", api.handle(api.patchMonitor))
				r.Delete("/", api.handle(api.deleteMonitor))
				r.Post("/check", api.handle(api.forceCheck))
				r.Post("/reset", api.handle(api.resetMonitor))
			})
		})

		r.Get("/stats", api.handle(api.stats))
		r.Get("/events", api.handle(api.events))
		r.Post("/sync", api.handle(api.syncNow))
		r.Get("/stream", api.broadcaster.ServeSSE)
		r.Get("/ws", api.broadcaster.ServeWS)
	})

	return r
}

// requestLogger logs each request through zerolog once it completes.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("[API] Request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	server *http.Server
}

func NewServer(addr string, handler http.Handler) (*Server, error) {
	if err := validateHostPort(addr); err != nil {
		return nil, err
	}
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits up to 5s for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scorebot/internal/store"
	"scorebot/pkg/logx"
)

// Server is the HTTP surface for the surrounding application: subscription
// lifecycle, the poll entry point, preferences, messages and metrics.
type Server struct {
	store   *store.Store
	feed    Feed
	engine  Engine
	notices Notices
	log     logx.Logger

	http *http.Server
}

func NewServer(addr string, st *store.Store, fd Feed, eng Engine, notices Notices, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{store: st, feed: fd, engine: eng, notices: notices, log: log}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/subscriptions", s.handleTrack)
		r.Get("/subscriptions", s.handleList)
		r.Delete("/subscriptions", s.handleUntrack)
		r.Patch("/subscriptions", s.handleBaselinePatch)

		r.Get("/poll", s.handlePoll)

		r.Get("/preferences", s.handleGetPreference)
		r.Post("/preferences", s.handleSetPreference)

		r.Get("/messages", s.handleMessages)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logx.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

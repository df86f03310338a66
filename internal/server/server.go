// Package server provides the HTTP server for the Signify glove interpreter.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ayusman/signify/internal/app"
	"github.com/ayusman/signify/internal/log"
	"github.com/ayusman/signify/internal/server/api"
	"github.com/ayusman/signify/internal/store"
)

// shutdownTimeout bounds graceful shutdown of open requests.
const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
}

// Server represents the HTTP server for the Signify application.
type Server struct {
	config Config
	router *mux.Router
	hub    *Hub
	start  time.Time
}

// New creates a new Server with the given configuration. When an App is
// configured the event hub is registered as one of its sinks.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		hub:    NewHub(),
		start:  time.Now(),
	}
	if config.App != nil {
		config.App.AddSink(s.hub)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server. API routes are
// registered on the root router with full paths so that a method mismatch
// answers 405.
func (s *Server) setupRoutes() {
	r := s.router

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/api/events", s.hub).Methods(http.MethodGet)

	if s.config.App != nil {
		r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
		r.HandleFunc("/api/enabled", s.handleSetEnabled).Methods(http.MethodPut)
	}

	if s.config.Store != nil {
		var reloader api.Reloader
		if s.config.App != nil {
			reloader = s.config.App
		}
		api.NewGestureHandler(s.config.Store, reloader).Register(r)
	}

	if s.config.StaticDir != "" {
		r.PathPrefix("/").
			Handler(http.FileServer(http.Dir(s.config.StaticDir))).
			Methods(http.MethodGet, http.MethodHead)
	}
}

// Hub returns the WebSocket event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	api.WriteJSON(w, http.StatusOK, response)
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.config.App.Status())
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleSetEnabled handles PUT /api/enabled to pause or resume recognition.
func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		api.WriteError(w, http.StatusBadRequest, "expected {\"enabled\": true|false}")
		return
	}

	s.config.App.SetEnabled(*req.Enabled)
	api.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.App.IsEnabled()})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("HTTP server stopped")
	return nil
}

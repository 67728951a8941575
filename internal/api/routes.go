// Package api provides HTTP handlers and routing for the assistant daemon.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP handlers and dependencies.
type Server struct {
	router   *mux.Router
	handlers *Handlers
}

// NewServer creates a new API server with the given handlers.
func NewServer(h *Handlers) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured router for use with http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// Health and metrics endpoints
	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/ready", s.handlers.Ready).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Task management
	api.HandleFunc("/tasks", s.handlers.CreateTask).Methods("POST")
	api.HandleFunc("/tasks", s.handlers.ListTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}", s.handlers.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{id}/cancel", s.handlers.CancelTask).Methods("POST")

	// Synchronous invocation
	api.HandleFunc("/invoke", s.handlers.Invoke).Methods("POST")

	// Capabilities and registry lifecycle
	api.HandleFunc("/capabilities", s.handlers.Capabilities).Methods("GET")
	api.HandleFunc("/registry/reload", s.handlers.ReloadRegistry).Methods("POST")

	// Apply middleware
	s.router.Use(s.handlers.CORSMiddleware)
	s.router.Use(s.handlers.LoggingMiddleware)
	s.router.Use(s.handlers.RateLimitMiddleware)
	s.router.Use(s.handlers.AuthMiddleware)
	s.router.Use(s.handlers.RecoveryMiddleware)
}

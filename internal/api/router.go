// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves the HTTP and WebSocket interface used by the UI and
// launchpad-ctl.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/launchpad/internal/api/handlers"
	"github.com/wingedpig/launchpad/internal/api/middleware"
	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/notify"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string
	TLSKey  string
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Projects handlers.ProjectService
	Health   handlers.HealthSource
	Perf     handlers.PerfSource
	EventBus events.EventBus
	Notifier notify.Notifier
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(middleware.Version)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Preflight requests are answered by the CORS middleware
	api.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Project handlers
	projectHandler := handlers.NewProjectHandler(deps.Projects)
	api.HandleFunc("/projects", projectHandler.List).Methods("GET")
	api.HandleFunc("/projects/{id}", projectHandler.Get).Methods("GET")
	api.HandleFunc("/projects/{id}/launch", projectHandler.Launch).Methods("POST")
	api.HandleFunc("/projects/{id}/launch/confirm", projectHandler.ConfirmLaunch).Methods("POST")
	api.HandleFunc("/projects/{id}/stop", projectHandler.Stop).Methods("POST")
	api.HandleFunc("/projects/{id}/ports", projectHandler.Ports).Methods("GET")
	api.HandleFunc("/projects/{id}/tasks/{task}/start", projectHandler.StartTask).Methods("POST")
	api.HandleFunc("/projects/{id}/tasks/{task}/stop", projectHandler.StopTask).Methods("POST")
	api.HandleFunc("/projects/{id}/tasks/{task}/restart", projectHandler.RestartTask).Methods("POST")
	api.HandleFunc("/projects/{id}/tasks/{task}/output", projectHandler.Output).Methods("GET")
	api.HandleFunc("/processes/{pid:[0-9]+}/kill", projectHandler.KillProcess).Methods("POST")

	// Health and performance handlers
	monitorHandler := handlers.NewMonitorHandler(deps.Health, deps.Perf)
	api.HandleFunc("/projects/{id}/health", monitorHandler.Health).Methods("GET")
	api.HandleFunc("/projects/{id}/health/history", monitorHandler.HealthHistory).Methods("GET")
	api.HandleFunc("/projects/{id}/health/history", monitorHandler.ClearHealthHistory).Methods("DELETE")
	api.HandleFunc("/projects/{id}/performance", monitorHandler.Performance).Methods("GET")
	api.HandleFunc("/projects/{id}/performance", monitorHandler.ClearPerformance).Methods("DELETE")
	api.HandleFunc("/projects/{id}/performance/history", monitorHandler.PerformanceHistory).Methods("GET")
	api.HandleFunc("/projects/{id}/performance/periods", monitorHandler.PerformancePeriods).Methods("GET")

	api.HandleFunc("/tunnel/detect", handlers.DetectTunnel).Methods("POST")

	// Event handlers
	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	notifyHandler := handlers.NewNotifyHandler(deps.Notifier)
	api.HandleFunc("/notify", notifyHandler.Notify).Methods("POST")

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	closed   bool
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// ServerConfigFrom converts the server config section.
func ServerConfigFrom(cfg config.ServerConfig) ServerConfig {
	return ServerConfig{
		Host:    cfg.Host,
		Port:    cfg.Port,
		TLSCert: cfg.TLSCert,
		TLSKey:  cfg.TLSKey,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Addr returns the bound address once the server is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ListenAndServe binds the configured address and serves until Shutdown.
// If tls_cert and tls_key are set, HTTPS is served.
func (s *Server) ListenAndServe() error {
	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	if tlsEnabled {
		log.Printf("API server listening on https://%s (TLS enabled)", ln.Addr())
		err = srv.ServeTLS(ln, config.ExpandHome(s.cfg.TLSCert), config.ExpandHome(s.cfg.TLSKey))
	} else {
		log.Printf("API server listening on http://%s", ln.Addr())
		err = srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.closed = true
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	return srv.Shutdown(shutdownCtx)
}

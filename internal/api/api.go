// Package api provides HTTP handlers and the main API server logic for MoodPipe.
//
// It exposes RESTful endpoints for processing intervention requests, emotion
// analysis, pipeline introspection, and voice cache management. All responses
// use the envelope defined in models.APIResponse.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/MoodPipe/internal/pipeline"
)

// Server timeouts. The write timeout must stay comfortably above the request
// timeout so a pipeline run nearing its own deadline still gets its response
// written instead of having the connection closed under it.
const (
	DefaultAddr         = ":8080"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 180 * time.Second
	DefaultIdleTimeout  = 120 * time.Second

	// DefaultRequestTimeout bounds one pipeline run end to end.
	DefaultRequestTimeout = 150 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the MoodPipe HTTP API.
type Server struct {
	orchestrator *pipeline.Orchestrator
	addr         string
	httpServer   *http.Server
}

// NewServer creates an API server around the orchestrator.
func NewServer(orchestrator *pipeline.Orchestrator, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{orchestrator: orchestrator, addr: cfg.Addr}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/intervention", s.interventionHandler)
	mux.HandleFunc("/intervention/analyze", s.analyzeHandler)
	mux.HandleFunc("/capabilities", s.capabilitiesHandler)
	mux.HandleFunc("/tools", s.toolsHandler)
	mux.HandleFunc("/cache/status", s.cacheStatusHandler)
	mux.HandleFunc("/cache/clear", s.cacheClearHandler)
	mux.HandleFunc("/traces", s.tracesHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails. Shutdown is graceful.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: MoodPipe API listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

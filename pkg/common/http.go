// Package common provides the shared HTTP server, metrics and logging used
// by memory-hog.
package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server wraps an HTTP server with common functionality.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	metrics *Metrics
	name    string
	log     zerolog.Logger
	ready   func() bool
}

// NewServer creates a new HTTP server with standard endpoints. Metrics are
// registered with reg and served from gatherer; pass nil for both to use the
// Prometheus default registry.
func NewServer(name string, port int, reg prometheus.Registerer, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		name:    name,
		log:     log,
		metrics: NewMetrics(name, reg),
		ready:   func() bool { return true },
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
	router.Use(s.instrument)

	// Register standard endpoints
	s.registerStandardEndpoints(gatherer)

	return s
}

// registerStandardEndpoints adds health, ready, and metrics endpoints.
func (s *Server) registerStandardEndpoints(gatherer prometheus.Gatherer) {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// instrument records request count, latency and server errors.
func (s *Server) instrument(c *gin.Context) {
	start := time.Now()
	c.Next()

	s.metrics.RequestsTotal.WithLabelValues(strconv.Itoa(c.Writer.Status())).Inc()
	s.metrics.RequestLatency.Observe(time.Since(start).Seconds())
	if c.Writer.Status() >= http.StatusInternalServerError {
		s.metrics.ErrorsTotal.Inc()
	}
}

// healthHandler returns basic health status.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, ComponentStatus{
		Name:      s.name,
		Status:    "healthy",
		Ready:     s.ready(),
		Timestamp: time.Now().UTC(),
	})
}

// readyHandler returns readiness status.
func (s *Server) readyHandler(c *gin.Context) {
	ready := s.ready()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, ComponentStatus{
		Name:      s.name,
		Status:    "ready",
		Ready:     ready,
		Timestamp: time.Now().UTC(),
	})
}

// SetReadiness sets the check behind /ready.
func (s *Server) SetReadiness(fn func() bool) {
	s.ready = fn
}

// Router returns the underlying gin router for adding custom routes.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Metrics returns the server's metrics instance.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.metrics.SetReady()
	s.log.Info().Str("addr", s.server.Addr).Msgf("[%s] Starting server", s.name)
	return s.server.ListenAndServe()
}

// StartBackground serves on a separate goroutine. Serve errors are logged;
// they never stop the caller.
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.metrics.SetNotReady()
			s.log.Error().Err(err).Msgf("[%s] Server error", s.name)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.metrics.SetNotReady()
	s.log.Info().Msgf("[%s] Shutting down server", s.name)
	return s.server.Shutdown(ctx)
}

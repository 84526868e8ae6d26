// Package web serves the read-only ops endpoint of a slotengine process:
// engine stats, a health check and Prometheus metrics, on fasthttp.
package web

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/fluxorio/slotengine/pkg/core"
	"github.com/fluxorio/slotengine/pkg/core/failfast"
	"github.com/fluxorio/slotengine/pkg/engine"
	slotprom "github.com/fluxorio/slotengine/pkg/observability/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
)

// StatsSource is what the server reports on. *engine.Engine satisfies it.
type StatsSource interface {
	Stats() engine.Stats
}

// FastHTTPServerConfig configures the ops server
type FastHTTPServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultFastHTTPServerConfig returns the configuration for addr
func DefaultFastHTTPServerConfig(addr string) *FastHTTPServerConfig {
	return &FastHTTPServerConfig{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// ServerOption configures a FastHTTPServer
type ServerOption func(*FastHTTPServer)

// WithLogger sets the server logger
func WithLogger(logger core.Logger) ServerOption {
	failfast.NotNil(logger, "logger")
	return func(s *FastHTTPServer) { s.logger = logger }
}

// WithGatherer exposes g on /metrics
func WithGatherer(g prometheus.Gatherer) ServerOption {
	failfast.NotNil(g, "gatherer")
	return func(s *FastHTTPServer) { s.routes["/metrics"] = slotprom.Handler(g) }
}

// WithHTTPMetrics records every request in m
func WithHTTPMetrics(m *slotprom.HTTPMetrics) ServerOption {
	failfast.NotNil(m, "http metrics")
	return func(s *FastHTTPServer) { s.httpMetrics = m }
}

// FastHTTPServer serves GET /stats, GET /healthz and, with WithGatherer,
// GET /metrics.
type FastHTTPServer struct {
	server      *fasthttp.Server
	addr        string
	stats       StatsSource
	logger      core.Logger
	httpMetrics *slotprom.HTTPMetrics
	routes      map[string]fasthttp.RequestHandler

	totalRequests int64
}

// NewFastHTTPServer creates a server reporting on stats
func NewFastHTTPServer(stats StatsSource, config *FastHTTPServerConfig, opts ...ServerOption) *FastHTTPServer {
	failfast.NotNil(stats, "stats")
	if config == nil {
		config = DefaultFastHTTPServerConfig(":9090")
	}

	s := &FastHTTPServer{
		addr:   config.Addr,
		stats:  stats,
		logger: core.NewDefaultLogger(),
		routes: make(map[string]fasthttp.RequestHandler),
	}
	s.routes["/stats"] = s.handleStats
	s.routes["/healthz"] = s.handleHealth

	for _, opt := range opts {
		opt(s)
	}

	s.server = &fasthttp.Server{
		Handler:               s.Handler(),
		Name:                  "slotengine",
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		NoDefaultServerHeader: true,
		ReduceMemoryUsage:     true,
	}
	return s
}

// Handler returns the full request handler, middleware included
func (s *FastHTTPServer) Handler() fasthttp.RequestHandler {
	h := recovery(s.logger, s.handleRequest)
	if s.httpMetrics != nil {
		h = s.httpMetrics.Middleware(h)
	}
	return h
}

// Start listens on the configured address and blocks until Stop
func (s *FastHTTPServer) Start() error {
	s.logger.Infof("ops server listening on %s", s.addr)
	return s.server.ListenAndServe(s.addr)
}

// Serve serves on ln and blocks until Stop
func (s *FastHTTPServer) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Stop shuts the server down, waiting for open requests until ctx ends
func (s *FastHTTPServer) Stop(ctx context.Context) error {
	if err := s.server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	return nil
}

// TotalRequests returns the number of requests handled so far
func (s *FastHTTPServer) TotalRequests() int64 {
	return atomic.LoadInt64(&s.totalRequests)
}

func (s *FastHTTPServer) handleRequest(ctx *fasthttp.RequestCtx) {
	atomic.AddInt64(&s.totalRequests, 1)

	h, ok := s.routes[string(ctx.Path())]
	if !ok {
		writeError(ctx, fasthttp.StatusNotFound, "not_found")
		return
	}
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Response.Header.Set("Allow", "GET, HEAD")
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	h(ctx)
}

func (s *FastHTTPServer) handleStats(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, s.stats.Stats())
}

func (s *FastHTTPServer) handleHealth(ctx *fasthttp.RequestCtx) {
	if s.stats.Stats().Closed {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, map[string]string{"status": "closed"})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(ctx *fasthttp.RequestCtx, statusCode int, data interface{}) {
	body, err := core.JSONEncode(data)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "encode_failed")
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, statusCode int, code string) {
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(fmt.Sprintf(`{"error":%q}`, code))
}

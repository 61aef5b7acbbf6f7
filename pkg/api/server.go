// Package api exposes the chat core over HTTP, grounded on the teacher's
// gin-based edge (cmd/tarsy/main.go, pkg/api/handlers.go) rather than its
// later echo-based pkg/api/server.go: both exist in the teacher repo, but
// gin is the one already wired as a direct go.mod dependency. The
// health-check shape is carried over from the echo layer's
// server.go/responses.go, translated into gin idiom; dependencies are
// passed in once through Options.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/metrics"
	"github.com/canadianpizza/orderbot-core/pkg/orchestrator"
)

// pinger is satisfied by anything the health check can reach with a
// lightweight liveness probe (pkg/session.Store). The cache is probed
// separately through Hierarchy.PingL1.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP edge to the orchestrator and exposes /health and
// /metrics alongside the chat endpoint (spec §6).
type Server struct {
	engine           *gin.Engine
	orchestrator     *orchestrator.Orchestrator
	db               pinger
	cache            *cache.Hierarchy
	llmConfigured    bool
	vectorConfigured bool
	metrics          *metrics.Registry
	logger           *slog.Logger
}

// Options configures a Server's dependencies and health-check wiring.
type Options struct {
	Orchestrator     *orchestrator.Orchestrator
	DB               pinger
	Cache            *cache.Hierarchy
	LLMConfigured    bool
	VectorConfigured bool
	Metrics          *metrics.Registry
	Logger           *slog.Logger
}

// NewServer builds a Server and registers its routes, mirroring
// cmd/tarsy/main.go's gin.Default() + route registration sequence. The
// caller sets gin's mode (gin.SetMode) before calling NewServer.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(opts.Logger), securityHeaders())

	s := &Server{
		engine:           engine,
		orchestrator:     opts.Orchestrator,
		db:               opts.DB,
		cache:            opts.Cache,
		llmConfigured:    opts.LLMConfigured,
		vectorConfigured: opts.VectorConfigured,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.POST("/api/chatbot", s.handleChat)
	s.engine.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// Engine exposes the underlying gin.Engine, for tests and for
// cmd/orderbot's http.Server wiring.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP listener on addr, blocking until it returns an
// error (mirrors the teacher's router.Run(addr) call in cmd/tarsy).
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// securityHeaders mirrors the teacher's pkg/api/middleware.go
// securityHeaders() echo middleware, translated to gin.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func jsonError(c *gin.Context, status int, kind, msg string) {
	c.JSON(status, errorResponse{Success: false, Error: msg, Kind: kind})
}

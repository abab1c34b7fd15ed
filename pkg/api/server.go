// Package api provides the HTTP surface for conductor: the trigger &
// dispatch plane (webhook receiver, API execute endpoint, rate-limit
// status) plus the A2A protocol endpoints, grounded on the teacher's
// gin-based pkg/api/handlers.go (its echo-based server.go was a later
// rewrite of the same package; this module returns to gin since that is
// the framework the rest of the example pack converges on).
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conductorhq/conductor/pkg/a2a"
	"github.com/conductorhq/conductor/pkg/config"
	"github.com/conductorhq/conductor/pkg/credentials"
	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/events"
	"github.com/conductorhq/conductor/pkg/queue"
	"github.com/conductorhq/conductor/pkg/ratelimit"
)

// Server is the HTTP API server.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	cfg        *config.Config
	db         *database.Client
	credStore  *credentials.Store
	limiter    ratelimit.Limiter
	workerPool *queue.WorkerPool
	a2aServer  *a2a.Server
	events     *events.ConnectionManager // optional; nil disables GET /api/v1/ws
	log        *slog.Logger
}

// NewServer wires a Server and registers every route. connManager may be
// nil, in which case the WebSocket endpoint responds 503.
func NewServer(
	cfg *config.Config,
	db *database.Client,
	credStore *credentials.Store,
	limiter ratelimit.Limiter,
	workerPool *queue.WorkerPool,
	a2aServer *a2a.Server,
	connManager *events.ConnectionManager,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:     gin.New(),
		cfg:        cfg,
		db:         db,
		credStore:  credStore,
		limiter:    limiter,
		workerPool: workerPool,
		a2aServer:  a2aServer,
		events:     connManager,
		log:        log,
	}

	s.engine.Use(gin.Recovery(), requestLogger(log), securityHeaders())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/api/v1/healthz", s.healthHandler)

	s.engine.POST("/execute/:workflow_id", s.apiKeyAuth(), s.executeWorkflowHandler)
	s.engine.GET("/api-trigger/rate-limit", s.apiKeyAuth(), s.rateLimitStatusHandler)
	s.engine.GET("/api/v1/rate-limit/status", s.apiKeyAuth(), s.rateLimitStatusHandler)
	s.engine.GET("/api/v1/ws", s.websocketHandler)

	// path may contain slashes; gin's *param captures the remainder
	// including the leading slash.
	s.engine.POST("/webhooks/*path", s.webhookHandler)

	a2aGroup := s.engine.Group("/a2a/agents/:agent_id")
	a2aGroup.GET("/.well-known/agent.json", s.a2aCardHandler)
	a2aGroup.POST("/tasks", s.a2aSubmitTaskHandler)
	a2aGroup.GET("/tasks/:task_id", s.a2aGetTaskHandler)
	a2aGroup.POST("/tasks/:task_id/cancel", s.a2aCancelTaskHandler)
}

// ServeHTTP lets Server stand in directly for its underlying engine, e.g.
// in tests driven via httptest without a real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// requestLogger logs each request at Info level once it completes,
// mirroring the teacher's slog.With(request-scoped fields) idiom.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

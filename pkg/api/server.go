// Package api exposes the HTTP surface: trigger ingress, maze
// management, experiment inspection, and health. Handlers stay thin;
// validation happens here, semantics live in the store and queue.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mazebench/mazebench/pkg/config"
	"github.com/mazebench/mazebench/pkg/queue"
	"github.com/mazebench/mazebench/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	workerPool *queue.WorkerPool

	engine *gin.Engine
	http   *http.Server
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg *config.Config, st *store.Store, pool *queue.WorkerPool) *Server {
	s := &Server{
		cfg:        cfg,
		store:      st,
		workerPool: pool,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), securityHeaders())

	// Health is unauthenticated so orchestrators can probe it.
	engine.GET("/api/v1/health", s.healthHandler)

	v1 := engine.Group("/api/v1", apiKeyAuth(cfg.API.APIKey()))
	v1.POST("/triggers", s.submitTriggerHandler)
	v1.POST("/mazes", s.createMazeHandler)
	v1.GET("/mazes/:id", s.getMazeHandler)
	v1.GET("/experiments", s.listExperimentsHandler)
	v1.GET("/experiments/:id", s.getExperimentHandler)
	v1.GET("/experiments/:id/actions", s.listActionsHandler)
	v1.GET("/experiments/:id/position", s.getPositionHandler)

	s.engine = engine
	return s
}

// Start runs the HTTP server on addr, blocking until Shutdown or a
// listener error.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// StartWithListener serves on an existing listener. Tests bind
// 127.0.0.1:0 themselves so they can learn the assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.Serve(ln)
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// requestLogger logs one line per request after it completes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// Package server serves activity graph sessions over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/internal/contract"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Server holds the graph sessions of one history source.
type Server struct {
	cfg      *contract.Config
	src      *core.Source
	store    contract.HistoryStore
	sessions *sessionManager
	metrics  *Metrics
	registry *prometheus.Registry
	logger   *slog.Logger
	router   *gin.Engine
}

// New creates a server over src. Session defaults such as precision and the
// custom metric cap come from cfg.
func New(cfg *contract.Config, src *core.Source, store contract.HistoryStore) *Server {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	s := &Server{
		cfg:      cfg,
		src:      src,
		store:    store,
		sessions: newSessionManager(cfg, core.NewLoader(src.Fetcher, cfg.MaxCustomMetrics), metrics),
		metrics:  metrics,
		registry: registry,
		logger:   slog.Default().With("component", "server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), s.metrics.middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "source": s.src.Kind})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/graphs", s.handleGraphs())

		sessions := api.Group("/sessions")
		sessions.GET("", s.handleListSessions())
		sessions.POST("", s.handleCreateSession())
		sessions.GET("/:id", s.handleGetSession())
		sessions.DELETE("/:id", s.handleDeleteSession())
		sessions.PUT("/:id/spec", s.handleSetSpec())
		sessions.POST("/:id/metrics", s.handleAddMetric())
		sessions.DELETE("/:id/metrics/:metric", s.handleRemoveMetric())
		sessions.PUT("/:id/window", s.handleSetWindow())
		sessions.DELETE("/:id/window", s.handleClearWindow())
		sessions.POST("/:id/zoom", s.handleZoom())
		sessions.POST("/:id/pointer", s.handlePointer())
		sessions.POST("/:id/select", s.handleSelectDate())
		sessions.GET("/:id/tooltip", s.handleGetTooltip())
		sessions.DELETE("/:id/tooltip", s.handleClearTooltip())
		sessions.POST("/:id/reload", s.handleReload())
		sessions.GET("/:id/stream", s.handleStream())

		api.POST("/events", s.handleCreateEvent())
		api.DELETE("/events/:key", s.handleDeleteEvent())
	}
	return router
}

// requestLogger logs every request with its status and latency.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ReloadAll invalidates and reloads every session, e.g. after the fixture file changed.
func (s *Server) ReloadAll(ctx context.Context) {
	for _, sess := range s.sessions.all() {
		if err := s.sessions.reload(ctx, sess); err != nil {
			s.logger.Warn("Failed to reload session", "session", sess.id, "project", sess.key.String(), "error", err)
		}
	}
}

// Run serves the configured source on cfg.ListenAddr until ctx is done.
func Run(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	src, err := core.OpenSource(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	var store contract.HistoryStore
	if mgr != nil {
		store = mgr.GetHistoryStore()
	}
	s := New(cfg, src, store)

	if cfg.WatchFixture && src.Fixture != nil {
		err := src.Fixture.Watch(ctx, func(err error) {
			if err != nil {
				s.logger.Warn("Failed to reload fixture", "path", src.Fixture.Path(), "error", err)
				return
			}
			s.logger.Info("Fixture reloaded", "path", src.Fixture.Path())
			s.ReloadAll(ctx)
		})
		if err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving activity graphs", "addr", cfg.ListenAddr, "source", cfg.Source)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

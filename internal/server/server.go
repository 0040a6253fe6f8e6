package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/varezhka/mailwarden/internal/worker"
	"github.com/varezhka/mailwarden/pkg/models"
)

// Worker is the lifecycle surface the HTTP API drives.
type Worker interface {
	Start() bool
	Stop() bool
	State() worker.State
	Running() bool
}

// SummaryStore reads back processed-summary records.
type SummaryStore interface {
	ListRecentSummaries(ctx context.Context, limit int) ([]models.SummaryRecord, error)
}

// Server exposes the control API: health, worker start/stop and the summary
// log. It never exposes raw message bodies, only stored (redacted) summaries.
type Server struct {
	worker    Worker
	summaries SummaryStore
	logger    *slog.Logger
	engine    *gin.Engine
}

// New builds the server and registers all routes.
func New(w Worker, s SummaryStore, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	srv := &Server{
		worker:    w,
		summaries: s,
		logger:    logger.With("component", "server"),
		engine:    gin.New(),
	}
	srv.engine.Use(gin.Recovery())
	srv.routes()
	return srv
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
	api.GET("/summaries", s.handleSummaries)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running": s.worker.Running(),
		"state":   s.worker.State(),
	})
}

func (s *Server) handleStart(c *gin.Context) {
	if !s.worker.Start() {
		c.JSON(http.StatusOK, gin.H{"status": "already running"})
		return
	}
	s.logger.Info("worker started via API")
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleStop(c *gin.Context) {
	if !s.worker.Stop() {
		c.JSON(http.StatusOK, gin.H{"status": "not running"})
		return
	}
	s.logger.Info("worker stopped via API")
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handleSummaries(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.summaries.ListRecentSummaries(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list summaries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summaries"})
		return
	}
	if records == nil {
		records = []models.SummaryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(records),
		"summaries": records,
	})
}

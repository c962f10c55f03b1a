package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/pipeline"
	"github.com/couchcryptid/citizen-alerts-service/internal/store"
)

// AlertService is the subset of the pipeline the API exposes.
type AlertService interface {
	sharedobs.ReadinessChecker
	Fetch(ctx context.Context, isOngoing *bool) error
	Submit(ctx context.Context, in domain.UserReportInput, existingIncidentID *int64) (domain.Alert, error)
	Query(f store.Filter, key store.SortKey) []domain.Alert
	Get(id uuid.UUID) (domain.Alert, error)
	UpdateAlert(alert domain.Alert) error
	IncrementReportCount(id uuid.UUID) (int, error)
	Remove(id uuid.UUID) error
	Status() pipeline.Status
}

// Server exposes the alerts API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	service    AlertService
	logger     *slog.Logger
}

// NewServer creates an HTTP server routing the alerts API, /healthz, /readyz
// and /metrics.
func NewServer(addr string, service AlertService, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // covers a report submission plus its refetch
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		logger:  logger,
	}

	router.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	router.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(service)))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/chat", s.handleChat)
		api.POST("/reports", s.handleSubmitReport)

		alerts := api.Group("/alerts")
		alerts.GET("", s.handleListAlerts)
		alerts.POST("/fetch", s.handleFetch)
		alerts.GET("/:id", s.handleGetAlert)
		alerts.PUT("/:id", s.handleUpdateAlert)
		alerts.DELETE("/:id", s.handleDeleteAlert)
		alerts.POST("/:id/reports", s.handleIncrementReportCount)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

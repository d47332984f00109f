// Package httpapi exposes the question-answering service over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arbiterlabs/answerd/internal/retriever"
	"github.com/arbiterlabs/answerd/internal/session"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// IndexStatus reports index readiness for the health probe.
type IndexStatus interface {
	Ready() bool
	Records() int
}

// TierReporter reports which session tier is serving.
type TierReporter interface {
	Tier() string
}

// Server wires the service into echo.
type Server struct {
	echo     *echo.Echo
	service  *retriever.Service
	sessions session.Store
	status   IndexStatus
	tier     TierReporter
	metrics  *Metrics
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(service *retriever.Service, sessions session.Store, status IndexStatus, tier TierReporter, reg *prometheus.Registry, logger *zap.Logger, cfg Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("retriever service is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if status == nil {
		return nil, fmt.Errorf("index status is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewMetrics(reg)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		service:  service,
		sessions: sessions,
		status:   status,
		tier:     tier,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes(reg)

	return s, nil
}

func (s *Server) registerRoutes(reg *prometheus.Registry) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ask", s.handleAsk)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.DELETE("/sessions/:id", s.handleDeleteSession)
}

// AskRequest is the request body for POST /api/v1/ask.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	IndexReady  bool   `json:"index_ready"`
	Records     int    `json:"records"`
	SessionTier string `json:"session_tier"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Kind:    KindInvalidInput,
			Message: "invalid request body",
		}})
	}

	answer, err := s.service.Ask(c.Request().Context(), req.Question, req.SessionID)
	if err != nil {
		s.logger.Warn("ask failed", zap.Error(err))
		return writeError(c, err)
	}

	s.metrics.ObserveAnswer(answer.Confidence, len(answer.Sources) == 0)
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.sessions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:     "ok",
		IndexReady: s.status.Ready(),
		Records:    s.status.Records(),
	}
	if s.tier != nil {
		resp.SessionTier = s.tier.Tier()
	}
	if !resp.IndexReady {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.echo }

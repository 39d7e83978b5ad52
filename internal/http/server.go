// Package http serves the advisord REST API with Echo.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/agent"
	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/consult"
	"github.com/fyrsmithlabs/advisord/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service runs consultations and reports on sessions.
type Service interface {
	Consult(ctx context.Context, req consult.Request) (consult.Result, error)
	ActiveSessions() int
	Session(id string) (session.Snapshot, bool)
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	BodyLimit       string
	Environment     string
	FrontendOrigin  string
	ConsultRate     int // requests per minute per client, 0 disables
	HealthRate      int // requests per minute per client, 0 disables
}

// ConfigFrom derives the server configuration from the application config.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		BodyLimit:       cfg.Server.BodyLimit,
		Environment:     cfg.Security.Environment,
		FrontendOrigin:  cfg.Security.FrontendOrigin,
		ConsultRate:     cfg.Security.ConsultRate,
		HealthRate:      cfg.Security.HealthRate,
	}
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) production() bool {
	return c.Environment == config.EnvProduction
}

func (c *Config) development() bool {
	return c.Environment == config.EnvDevelopment
}

// Server provides the HTTP endpoints of advisord.
type Server struct {
	echo     *echo.Echo
	svc      Service
	logger   *zap.Logger
	config   *Config
	metrics  *HTTPMetrics
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithHTTPMetrics records request metrics through m.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// NewServer creates a new HTTP server.
func NewServer(svc Service, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("consult service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = ConfigFrom(config.Default())
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		svc:      svc,
		logger:   logger,
		config:   cfg,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.HTTPErrorHandler = s.handleError
	s.registerMiddleware()
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth, s.rateLimit(s.config.HealthRate))
	api.POST("/consult", s.handleConsult, s.rateLimit(s.config.ConsultRate))

	// Session export leaks conversation content, so it stays out of production.
	if s.config.development() {
		api.GET("/sessions/:id", s.handleSession)
	}

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// handleHealth reports the advisory team and the live session count.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "healthy",
		Agents:         agent.Roles(),
		ActiveSessions: s.svc.ActiveSessions(),
	})
}

// handleConsult runs one consultation.
func (s *Server) handleConsult(c echo.Context) error {
	var req ConsultRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid consult request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody)
	}

	s.logger.Info("consultation request",
		zap.String("client_ip", c.RealIP()),
		zap.Int("query_length", len(req.Query)),
		zap.Bool("resumed", req.Context != nil && req.Context.SessionID != ""),
	)

	res, err := s.svc.Consult(c.Request().Context(), req)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, consult.ErrInvalidQuery):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, consult.ErrAgentFailed):
		return echo.NewHTTPError(http.StatusInternalServerError, msgAgentFailed).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msgUnexpected).SetInternal(err)
	}
}

// handleSession exports a live session.
func (s *Server) handleSession(c echo.Context) error {
	snap, ok := s.svc.Session(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, msgSessionMissing)
	}
	return c.JSON(http.StatusOK, snap)
}

// handleError writes every error as {"detail": message}. Internal causes are
// logged and never sent to the client.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := msgUnexpected

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(code)
		}
		if he.Internal != nil {
			err = he.Internal
		}
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Detail: detail})
	}
	if err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.addr()
	s.logger.Info("starting http server",
		zap.String("addr", addr),
		zap.String("environment", s.config.Environment),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

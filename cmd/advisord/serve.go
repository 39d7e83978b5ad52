package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/advisord/internal/agent"
	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/consult"
	httpserver "github.com/fyrsmithlabs/advisord/internal/http"
	"github.com/fyrsmithlabs/advisord/internal/logging"
	"github.com/fyrsmithlabs/advisord/internal/recommendation"
	"github.com/fyrsmithlabs/advisord/internal/session"
	"github.com/fyrsmithlabs/advisord/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the advisory HTTP server",
		Long: `Start the advisord HTTP server.

Configuration is read from the config file, then overridden by ADVISORD_*
environment variables (ADVISORD_SERVER_HTTP_PORT=9000). GOOGLE_API_KEY,
GEMINI_API_KEY, OPENAI_API_KEY, FRONTEND_ORIGIN and ENVIRONMENT are honored
when the matching setting is not configured otherwise.

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(ctx, cfg)
		},
	}
}

// run starts advisord and blocks until ctx is cancelled.
//
// Initialization order:
//  1. Telemetry and logger
//  2. Prometheus registry with session, agent and parse metrics
//  3. Session store, agent client, parser and consult service
//  4. HTTP server, shut down gracefully on cancellation
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logCfg, err := logging.ConfigFrom(cfg.Logging, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	if health := tel.Health(); health.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Errors("problems", health.Problems))
	}

	logger.Info(ctx, "starting advisord",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("environment", cfg.Security.Environment),
		zap.String("agent_provider", cfg.Agent.Provider),
		zap.String("agent_model", cfg.Agent.Model),
		logging.Secret("agent_api_key", cfg.Agent.APIKey),
		zap.Duration("session_timeout", cfg.Session.Timeout),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := session.NewStore(cfg.Session.Timeout,
		session.WithLogger(logger.Named("session").Underlying()),
		session.WithMetrics(session.NewMetrics(reg)),
	)

	advisor, err := agent.New(ctx, cfg.Agent,
		agent.WithLogger(logger.Named("agent").Underlying()),
		agent.WithMetrics(agent.NewMetrics(reg)),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	parser := recommendation.NewParser(
		recommendation.WithLogger(logger.Named("parser").Underlying()),
		recommendation.WithMetrics(recommendation.NewMetrics(reg)),
	)

	svc := consult.NewService(advisor, store,
		consult.WithLogger(logger.Named("consult")),
		consult.WithParser(parser),
		consult.WithTracer(tel.Tracer("github.com/fyrsmithlabs/advisord/internal/consult")),
	)

	httpLogger := logger.Named("http").Underlying()
	srv, err := httpserver.NewServer(svc, httpLogger, httpserver.ConfigFrom(cfg),
		httpserver.WithGatherer(reg),
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(tel.Meter(httpserver.InstrumentationName), httpLogger)),
	)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	err = srv.Start(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info(context.Background(), "server shutdown complete")
		return nil
	}
	return err
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"email-digest/internal/config"
	"email-digest/internal/handler"
	"email-digest/internal/pipeline"
	"email-digest/internal/router"
	"email-digest/internal/sse"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the mailbox and enrich unread threads until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.Close()

	source, err := newSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	enricher := newEnricher(cfg, newAIClient(cfg, logger), repos, source, logger)
	reporter := pipeline.NewReporter(os.Stdout, logger)
	orchestrator := pipeline.New(pipelineOptions(cfg), source, repos.threads, enricher, reporter, logger)

	if cfg.HTTPAddr != "" {
		sseManager := sse.NewManager(logger)
		defer sseManager.Close()
		reporter.AddPublisher(sseManager)

		e := newServer(cfg, repos, orchestrator, sseManager)
		go func() {
			logger.Info("Starting status API", "addr", cfg.HTTPAddr)
			if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status API stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down status API", "error", err)
			}
		}()
	}

	return orchestrator.Run(ctx)
}

func newServer(cfg *config.Config, repos *repositories, orchestrator *pipeline.Orchestrator, sseManager *sse.Manager) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Env == "development"

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	router.SetupRoutes(e,
		handler.NewThreadHandler(repos.threads, orchestrator, e.Logger),
		handler.NewContactHandler(repos.contacts, e.Logger),
		handler.NewEventHandler(sseManager, e.Logger),
		cfg.HTTPToken,
	)
	return e
}

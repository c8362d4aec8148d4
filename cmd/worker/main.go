// Package main - точка входа для фонового процесса экономики.
//
// Worker отвечает за:
// - Периодическую проверку достижений по всем аккаунтам
// - Ночную сверку кешей балансов с леджером
// - HTTP-интерфейс для health-проверок, метрик и просмотра аккаунтов
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/alem-economy/config"
	"github.com/alem-hub/alem-economy/internal/app"
	"github.com/alem-hub/alem-economy/internal/infrastructure/scheduler"
	httpserver "github.com/alem-hub/alem-economy/internal/interface/http"
	"github.com/alem-hub/alem-economy/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:  os.Stdout,
		Level:   logger.ParseLevel(cfg.Observability.LogLevel),
		Format:  logger.Format(cfg.Observability.LogFormat),
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	slog.SetDefault(log)
	log.Info("starting economy worker",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("driver", cfg.Database.Driver),
		slog.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ, REDIS, КОМАНДЫ
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		log.Info("closing resources...")
		application.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := application.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to configure scheduler: %w", err)
	}
	sched.OnJobError(func(name string, err error) {
		log.Error("job failed", logger.Job(name), logger.Err(err))
	})

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for _, j := range sched.ListJobs() {
			log.Info("job scheduled",
				logger.Job(j.Name),
				slog.String("schedule", j.Schedule),
				slog.Time("next_run", j.NextRun),
			)
		}
	} else {
		log.Warn("scheduler disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.Observability.HTTPHost
	httpCfg.Port = cfg.Observability.HTTPPort
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Summary:      application.Summary,
		History:      application.History,
		Achievements: application.Achievements,
		Health:       application.Health,
		Jobs:         sched,
		Gatherer:     application.Registry,
		Logger:       log.With(logger.Component("http")),
	})
	serverErr := server.StartAsync()

	log.Info("economy worker is running", slog.String("address", httpCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", slog.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Error("scheduler shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed")
	return runErr
}

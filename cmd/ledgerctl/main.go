// Package main - административная утилита для леджера.
//
// Использует ту же конфигурацию и те же обработчики команд, что и worker:
// блокировки аккаунтов, аудит и проверка достижений работают одинаково.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/alem-economy/config"
	"github.com/alem-hub/alem-economy/internal/app"
	"github.com/alem-hub/alem-economy/internal/cli"
	"github.com/alem-hub/alem-economy/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		// Логи идут в stderr, чтобы не мешать выводу команд.
		log := logger.New(logger.Options{
			Output:  os.Stderr,
			Level:   logger.ParseLevel(getenv("LEDGERCTL_LOG_LEVEL", "warn")),
			Format:  logger.FormatText,
			Service: "ledgerctl",
			Version: cfg.App.Version,
		})
		return app.New(ctx, cfg, log)
	}

	if err := cli.Execute(ctx, open, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

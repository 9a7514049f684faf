// Command notifyd accepts notification requests over HTTP and delivers them
// through the email, sms and in-app channels.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/notifykit/pkg/clientip"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("notifyd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	opts := append(logger.FromConfig(cfg.Log), logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()))
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	runErr := app.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, app.Shutdown(shutdownCtx))
}

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/arhyth/tapbank"
)

func main() {
	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := tapbank.LoadConfig(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading config file")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := tapbank.NewRepository(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("error opening storage")
	}
	ledger, err := tapbank.NewLedger(ctx, repo, &logger, tapbank.WithDefaultBalance(cfg.Ledger.DefaultBalance))
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading ledger")
	}

	svc, err := tapbank.NewService(ledger, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting service")
	}
	limits := &tapbank.ServiceLimits{
		Statement:     semaphore.NewWeighted(cfg.Server.StatementLimit),
		StatementWait: cfg.Server.StatementWait,
	}
	wrapped := tapbank.Chain(svc,
		tapbank.NewLoggingMiddleware(&logger),
		tapbank.NewLimitMiddleware(limits),
	)
	hndlr := tapbank.NewHTTPHandler(wrapped, &logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: hndlr,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Err(err).Msg("error shutting down server")
		}
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Msg("tapbank server listening")
	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/arhyth/tapbank"
)

func main() {
	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

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

	console := tapbank.NewConsole(ledger, &logger, os.Stdout, cfg.Console.ResultDelay)
	if err = console.Run(ctx, os.Stdin); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("console stopped")
	}
}

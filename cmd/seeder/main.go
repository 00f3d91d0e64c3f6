package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/arhyth/tapbank"
)

// seeder prepares the postgres tables and resets both cards to the default balance.
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

	ctx := context.Background()
	if cfg.Storage.Backend == tapbank.BackendPostgres {
		lh, err := tapbank.NewLocalHelper(ctx, cfg.Storage.ConnectionString)
		if err != nil {
			logger.Fatal().Err(err).Msg("error starting local helper")
		}
		if _, err = lh.InitDB(ctx); err != nil {
			logger.Fatal().Err(err).Msg("error initializing database")
		}
		lh.Close(ctx)
	}

	repo, err := tapbank.NewRepository(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening storage")
	}
	ledger, err := tapbank.NewLedger(ctx, repo, &logger, tapbank.WithDefaultBalance(cfg.Ledger.DefaultBalance))
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading ledger")
	}
	if err = ledger.ResetAll(ctx); err != nil {
		logger.Fatal().Err(err).Msg("error resetting ledger")
	}
	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Int64("balance", cfg.Ledger.DefaultBalance).
		Msg("ledger reset to defaults")
}

// Command beancounter-cron is the one-shot batch driver named in
// spec.md §6's process bootstrap: it runs the expiry sweep followed by
// the automatic payout sweep, then exits. Grounded on
// original_source/src/bin/beancounter-cron.rs's do_cleanup, extended
// to also run the automatic payout sweep per spec.md §4.5 (the
// original only ran the expiry sweep).
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/umpyre/beancounter/internal/config"
	"github.com/umpyre/beancounter/internal/processor/stripe"
	"github.com/umpyre/beancounter/internal/store/postgres"
	"github.com/umpyre/beancounter/internal/sweep"
)

func main() {
	configFile := flag.String("conf", "", "configuration file path")
	flag.Parse()

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDatabase(&cfg.Database.Writer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct store")
	}
	ctx := context.Background()
	if err := db.Open(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	proc, err := stripe.New(cfg.Processor, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct processor client")
	}
	defer proc.Close()

	expired, err := sweep.ExpireEscrowedPayments(ctx, db, cfg.Sweep.ExpiryAge, logger)
	if err != nil {
		logger.Error().Err(err).Msg("expiry sweep failed")
		os.Exit(1)
	}
	logger.Info().Int("expired", expired).Msg("expiry sweep done")

	paidOut, err := sweep.RunAutomaticPayouts(ctx, db, proc, cfg.Sweep.AutomaticPayoutLookback, logger)
	if err != nil {
		logger.Error().Err(err).Msg("automatic payout sweep failed")
		os.Exit(1)
	}
	logger.Info().Int("paid_out", paidOut).Msg("automatic payout sweep done")
}

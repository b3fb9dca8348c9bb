// Package sweep implements the two background batch operations that
// the cron binary invokes once per run, per spec.md §4.5: the expiry
// sweep (refund escrowed payments older than the expiry age) and the
// automatic payout sweep (push eligible clients' withdrawable balance
// out to their linked external account).
package sweep

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/umpyre/beancounter/internal/connect"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/payment"
	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/store"
)

// AutomaticPayoutConcurrency bounds how many candidate clients are
// paid out concurrently during one automatic payout sweep.
const AutomaticPayoutConcurrency = 8

// ExpireEscrowedPayments refunds every payment older than expiryAge
// inside a single transaction, then re-projects the balance of every
// affected sender in that same transaction; a failure on any one refund
// aborts the entire batch, per spec.md §4.5. Callers typically pass
// core.ExpiryAge, configurable via internal/config's Sweep section for
// testing.
func ExpireEscrowedPayments(ctx context.Context, db store.Database, expiryAge time.Duration, log zerolog.Logger) (int, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: begin expiry sweep: %w", err)
	}

	cutoff := time.Now().Add(-expiryAge)
	expired, err := tx.ListExpiredPayments(ctx, cutoff)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sweep: list expired payments: %w", err)
	}

	senders := make(map[uuid.UUID]struct{})
	for _, p := range expired {
		if err := payment.RefundExpired(ctx, tx, p); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sweep: refund expired payment %d: %w", p.ID, err)
		}
		if err := tx.DeletePayment(ctx, p.ID); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sweep: delete expired payment %d: %w", p.ID, err)
		}
		senders[p.SenderID] = struct{}{}
	}
	for senderID := range senders {
		if _, err := ledger.UpdateBalance(ctx, tx, senderID); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sweep: update balance for sender %s: %w", senderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sweep: commit expiry sweep: %w", err)
	}

	log.Info().Int("count", len(expired)).Msg("expiry sweep complete")
	return len(expired), nil
}

// RunAutomaticPayouts pays out every eligible client's withdrawable
// balance to their linked external account, per spec.md §4.5. Each
// candidate's payout runs in its own transaction; a per-client failure
// is logged and does not abort the sweep for the remaining candidates.
// Candidate payouts run with bounded concurrency via errgroup.
func RunAutomaticPayouts(ctx context.Context, db store.Database, proc processor.Processor, lookback time.Duration, log zerolog.Logger) (int, error) {
	candidates, err := db.ListAutomaticPayoutCandidates(ctx, lookback)
	if err != nil {
		return 0, fmt.Errorf("sweep: list automatic payout candidates: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(AutomaticPayoutConcurrency)

	var succeeded int32
	for _, clientID := range candidates {
		clientID := clientID
		g.Go(func() error {
			ok := payoutOneCandidate(gctx, db, proc, log, clientID)
			if ok {
				atomic.AddInt32(&succeeded, 1)
			}
			return nil
		})
	}
	// errgroup's worker functions never return an error themselves
	// (failures are logged per-client, not fatal to the sweep), so Wait
	// returns nil here; a cancelled ctx shows up only as failed
	// per-client payouts.
	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt32(&succeeded)), err
	}

	count := atomic.LoadInt32(&succeeded)
	log.Info().Int("candidates", len(candidates)).Int32("succeeded", count).Msg("automatic payout sweep complete")
	return int(count), nil
}

func payoutOneCandidate(ctx context.Context, db store.Database, proc processor.Processor, log zerolog.Logger, clientID uuid.UUID) bool {
	account, err := db.GetConnectAccount(ctx, clientID)
	if err != nil {
		log.Warn().Err(err).Str("client_id", clientID.String()).Msg("automatic payout: failed to load connect account")
		return false
	}
	if account == nil || account.ExternalUserID == nil {
		log.Warn().Str("client_id", clientID.String()).Msg("automatic payout: candidate has no linked account")
		return false
	}

	balance, err := db.GetBalance(ctx, clientID)
	if err != nil || balance == nil {
		log.Warn().Err(err).Str("client_id", clientID.String()).Msg("automatic payout: failed to load balance")
		return false
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		log.Warn().Err(err).Str("client_id", clientID.String()).Msg("automatic payout: failed to begin transaction")
		return false
	}

	result, err := connect.Payout(ctx, tx, proc, clientID, *account.ExternalUserID, balance.WithdrawableCents)
	if err != nil {
		_ = tx.Rollback()
		log.Warn().Err(err).Str("client_id", clientID.String()).Msg("automatic payout: payout failed")
		return false
	}
	if !result.Succeeded {
		_ = tx.Rollback()
		log.Warn().Str("client_id", clientID.String()).Msg("automatic payout: insufficient balance at payout time")
		return false
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Str("client_id", clientID.String()).Msg("automatic payout: commit failed")
		return false
	}
	return true
}

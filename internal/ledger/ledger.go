// Package ledger implements the double-entry ledger engine: appending
// transaction pairs and projecting a client's balance from the log,
// per spec.md §4.1.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/store"
)

// AppendTransaction appends one Credit entry for creditClient and one
// Debit entry for debitClient, both of magnitude amountCents and
// tagged reason. amountCents must be non-negative; zero-amount calls
// are permitted and simply write two zero entries. It returns the id
// of the inserted Credit entry.
func AppendTransaction(ctx context.Context, tx store.Transaction, creditClient, debitClient *uuid.UUID, amountCents int32, reason core.TransactionReason) (int64, error) {
	if amountCents < 0 {
		return 0, core.ErrBadArguments
	}
	return tx.InsertTransactionPair(ctx, creditClient, debitClient, amountCents, reason)
}

// UpdateBalance recomputes client's balance projection from the
// transaction log and upserts it, per the algorithm in spec.md §4.1.
func UpdateBalance(ctx context.Context, tx store.Transaction, clientID uuid.UUID) (core.Balance, error) {
	balance, err := Project(ctx, tx, clientID)
	if err != nil {
		return core.Balance{}, err
	}
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return core.Balance{}, err
	}
	return balance, nil
}

// Project computes the balance projection for clientID without
// persisting it, re-deriving it purely from the transaction log. This
// is the function exercised directly by the "balance identity"
// property test (spec.md §8 invariant 2).
func Project(ctx context.Context, tx store.Transaction, clientID uuid.UUID) (core.Balance, error) {
	c, err := tx.SumCredits(ctx, clientID)
	if err != nil {
		return core.Balance{}, err
	}
	p, err := tx.SumPromoCreditAdded(ctx, clientID)
	if err != nil {
		return core.Balance{}, err
	}
	d, err := tx.SumDebits(ctx, clientID)
	if err != nil {
		return core.Balance{}, err
	}

	promoRemaining := p + d // debits consume promo first
	if promoRemaining < 0 {
		promoRemaining = 0
	}
	balanceRemaining := c
	if p+d < 0 {
		balanceRemaining = c + (p + d)
	}

	paidIn, err := tx.SumMessageReadCredits(ctx, clientID)
	if err != nil {
		return core.Balance{}, err
	}
	paidOut, err := tx.SumPayoutDebits(ctx, clientID)
	if err != nil {
		return core.Balance{}, err
	}
	withdrawable := paidIn + paidOut // paidOut already signed negative

	existing, err := tx.GetOrCreateBalance(ctx, clientID)
	if err != nil {
		return core.Balance{}, err
	}

	return core.Balance{
		ClientID:          clientID,
		BalanceCents:      balanceRemaining,
		PromoCents:        promoRemaining,
		WithdrawableCents: withdrawable,
		CreatedAt:         existing.CreatedAt,
	}, nil
}

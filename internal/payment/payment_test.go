package payment_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/payment"
	"github.com/umpyre/beancounter/internal/store/storetest"
)

func seedBalance(t *testing.T, ctx context.Context, db *storetest.Database, client uuid.UUID, cents int32) {
	t.Helper()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, &client, nil, cents, core.ReasonCreditAdded)
	require.NoError(t, err)
	_, err = ledger.UpdateBalance(ctx, tx, client)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

// S3 — Insufficient balance on send.
func TestAddPaymentInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	a, b := uuid.New(), uuid.New()
	seedBalance(t, ctx, db, a, 100)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	result, err := payment.AddPayment(ctx, tx, a, b, 100, []byte("hash"))
	require.NoError(t, err)
	require.Equal(t, payment.AddInsufficientBalance, result.Outcome)
	require.NoError(t, tx.Rollback())

	bal, err := db.GetBalance(ctx, a)
	require.NoError(t, err)
	require.Equal(t, int64(100), bal.BalanceCents)
}

// S4 — Send, then settle; second settle is NotFound.
func TestAddThenSettlePayment(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	a, b := uuid.New(), uuid.New()
	seedBalance(t, ctx, db, a, 115)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	addResult, err := payment.AddPayment(ctx, tx, a, b, 100, []byte("hash"))
	require.NoError(t, err)
	require.Equal(t, payment.AddSuccess, addResult.Outcome)
	require.Equal(t, int64(0), addResult.Balance.BalanceCents)
	require.NoError(t, tx.Commit())

	tx, err = db.Begin(ctx)
	require.NoError(t, err)
	settleResult, err := payment.SettlePayment(ctx, tx, b, []byte("hash"))
	require.NoError(t, err)
	require.Equal(t, int32(15), settleResult.FeeCents)
	require.Equal(t, int64(85), settleResult.Balance.BalanceCents)
	require.Equal(t, int64(85), settleResult.Balance.WithdrawableCents)
	require.NoError(t, tx.Commit())

	tx, err = db.Begin(ctx)
	require.NoError(t, err)
	_, err = payment.SettlePayment(ctx, tx, b, []byte("hash"))
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, tx.Rollback())
}

// Zero-value payments are valid and create only the escrow row, with
// no ledger entries (spec.md §4.2.1).
func TestAddPaymentZeroValue(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	a, b := uuid.New(), uuid.New()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	result, err := payment.AddPayment(ctx, tx, a, b, 0, []byte("hash"))
	require.NoError(t, err)
	require.Equal(t, payment.AddSuccess, result.Outcome)
	require.Equal(t, int32(0), result.PaymentCents)
	require.Equal(t, int32(0), result.FeeCents)
	require.NoError(t, tx.Commit())

	all, err := db.ListTransactions(ctx, a)
	require.NoError(t, err)
	require.Empty(t, all)

	tx, err = db.Begin(ctx)
	require.NoError(t, err)
	settleResult, err := payment.SettlePayment(ctx, tx, b, []byte("hash"))
	require.NoError(t, err)
	require.Equal(t, int32(0), settleResult.PaymentCents)
	require.Equal(t, int32(0), settleResult.FeeCents)
	require.NoError(t, tx.Commit())
}

func TestFeeRoundsHalfToEven(t *testing.T) {
	require.Equal(t, int32(15), payment.Fee(100))
	require.Equal(t, int32(2), payment.Fee(10))
}

func TestMaxPaymentAmountRejected(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	a, b := uuid.New(), uuid.New()
	seedBalance(t, ctx, db, a, core.MaxPaymentAmount)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	result, err := payment.AddPayment(ctx, tx, a, b, core.MaxPaymentAmount, []byte("hash"))
	require.NoError(t, err)
	require.Equal(t, payment.AddInvalidAmount, result.Outcome)
	require.NoError(t, tx.Rollback())
}

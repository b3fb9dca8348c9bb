package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/store/storetest"
)

func TestAppendTransactionSignDiscipline(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	client := uuid.New()
	_, err = ledger.AppendTransaction(ctx, tx, &client, nil, 1000, core.ReasonCreditAdded)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	all, err := db.ListTransactions(ctx, client)
	require.NoError(t, err)
	require.Len(t, all, 1)

	var sum int64
	for _, e := range all {
		sum += int64(e.AmountCents)
	}
	// The platform-side debit is not addressed to `client`, so summing
	// only this client's rows won't be zero; verify sign discipline instead.
	require.Equal(t, int32(1000), all[0].AmountCents)
	require.Equal(t, core.KindCredit, all[0].Kind)
}

func TestProjectBalanceIdentity(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	client := uuid.New()
	_, err = ledger.AppendTransaction(ctx, tx, &client, nil, 1000, core.ReasonCreditAdded)
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, nil, &client, 300, core.ReasonMessageSent)
	require.NoError(t, err)

	balance, err := ledger.UpdateBalance(ctx, tx, client)
	require.NoError(t, err)
	require.Equal(t, int64(700), balance.BalanceCents)
	require.Equal(t, int64(0), balance.PromoCents)
	require.Equal(t, int64(0), balance.WithdrawableCents)

	reprojected, err := ledger.Project(ctx, tx, client)
	require.NoError(t, err)
	require.Equal(t, balance.BalanceCents, reprojected.BalanceCents)
	require.Equal(t, balance.PromoCents, reprojected.PromoCents)
	require.Equal(t, balance.WithdrawableCents, reprojected.WithdrawableCents)
}

func TestWithdrawableBound(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	client := uuid.New()
	_, err = ledger.AppendTransaction(ctx, tx, &client, nil, 85, core.ReasonMessageRead)
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, nil, &client, 50, core.ReasonPayout)
	require.NoError(t, err)

	balance, err := ledger.UpdateBalance(ctx, tx, client)
	require.NoError(t, err)
	require.Equal(t, int64(35), balance.WithdrawableCents)
}

func TestPromoNonNegative(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	client := uuid.New()
	// Debit larger than any promo credit: promo_remaining must clamp to 0, not go negative.
	_, err = ledger.AppendTransaction(ctx, tx, &client, nil, 100, core.ReasonCreditAdded)
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, nil, &client, 100, core.ReasonMessageSent)
	require.NoError(t, err)

	balance, err := ledger.UpdateBalance(ctx, tx, client)
	require.NoError(t, err)
	require.GreaterOrEqual(t, balance.PromoCents, int64(0))
}

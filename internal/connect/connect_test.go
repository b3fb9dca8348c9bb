package connect_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/umpyre/beancounter/internal/connect"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/store/storetest"
)

type fakeProcessor struct {
	transferErr error
}

func (f *fakeProcessor) Charge(ctx context.Context, req processor.ChargeRequest) (processor.ChargeResponse, error) {
	return processor.ChargeResponse{Succeeded: true}, nil
}
func (f *fakeProcessor) Transfer(ctx context.Context, req processor.TransferRequest) (processor.TransferResponse, error) {
	if f.transferErr != nil {
		return processor.TransferResponse{}, f.transferErr
	}
	return processor.TransferResponse{RawResponse: []byte(`{"id":"tr_1"}`)}, nil
}
func (f *fakeProcessor) GetLoginLink(ctx context.Context, externalUserID string) (string, error) {
	return "https://dashboard.stripe.com/login", nil
}
func (f *fakeProcessor) GetAccount(ctx context.Context, externalUserID string) (processor.AccountDetails, error) {
	return processor.AccountDetails{}, nil
}
func (f *fakeProcessor) GetOAuthURL(state string) string { return "https://connect.stripe.com/oauth" }
func (f *fakeProcessor) ExchangeOAuthCode(ctx context.Context, code string) (processor.OAuthCredentials, error) {
	return processor.OAuthCredentials{ExternalUserID: "acct_123"}, nil
}

func seedWithdrawable(t *testing.T, ctx context.Context, db *storetest.Database, client uuid.UUID, cents int32) {
	t.Helper()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, &client, nil, cents, core.ReasonMessageRead)
	require.NoError(t, err)
	_, err = ledger.UpdateBalance(ctx, tx, client)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

// S6 — Payout.
func TestPayoutSuccess(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	client := uuid.New()
	seedWithdrawable(t, ctx, db, client, 15000)

	proc := &fakeProcessor{}

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	result, err := connect.Payout(ctx, tx, proc, client, "acct_123", 15000)
	require.NoError(t, err)
	require.True(t, result.Succeeded)
	require.Equal(t, int64(0), result.Balance.BalanceCents)
	require.Equal(t, int64(0), result.Balance.WithdrawableCents)
	require.NoError(t, tx.Commit())
}

// S7 — Payout with rejecting processor.
func TestPayoutProcessorError(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	client := uuid.New()
	seedWithdrawable(t, ctx, db, client, 15000)

	proc := &fakeProcessor{transferErr: &core.StripeError{Message: "card declined"}}

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = connect.Payout(ctx, tx, proc, client, "acct_123", 15000)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())

	bal, err := db.GetBalance(ctx, client)
	require.NoError(t, err)
	require.Equal(t, int64(15000), bal.WithdrawableCents)
}

func TestUpdatePrefsClampsThreshold(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	client := uuid.New()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = connect.GetOrCreateAccount(ctx, tx, client)
	require.NoError(t, err)
	account, err := connect.UpdatePrefs(ctx, tx, client, true, 500)
	require.NoError(t, err)
	require.Equal(t, int64(core.MinAutomaticPayoutThresholdCents), account.AutomaticPayoutThresholdCents)
	require.NoError(t, tx.Commit())
}

package sweep_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/store/storetest"
	"github.com/umpyre/beancounter/internal/sweep"
)

type noopProcessor struct{}

func (noopProcessor) Charge(ctx context.Context, req processor.ChargeRequest) (processor.ChargeResponse, error) {
	return processor.ChargeResponse{Succeeded: true}, nil
}
func (noopProcessor) Transfer(ctx context.Context, req processor.TransferRequest) (processor.TransferResponse, error) {
	return processor.TransferResponse{RawResponse: []byte(`{}`)}, nil
}
func (noopProcessor) GetLoginLink(ctx context.Context, externalUserID string) (string, error) {
	return "", nil
}
func (noopProcessor) GetAccount(ctx context.Context, externalUserID string) (processor.AccountDetails, error) {
	return processor.AccountDetails{}, nil
}
func (noopProcessor) GetOAuthURL(state string) string { return "" }
func (noopProcessor) ExchangeOAuthCode(ctx context.Context, code string) (processor.OAuthCredentials, error) {
	return processor.OAuthCredentials{}, nil
}

// S5 — expired payment is refunded (payment_cents only, not the send fee).
func TestExpireEscrowedPaymentsRefundsPrincipalOnly(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	sender := uuid.New()
	recipient := uuid.New()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, &sender, nil, 11500, core.ReasonCreditAdded)
	require.NoError(t, err)
	_, err = ledger.UpdateBalance(ctx, tx, sender)
	require.NoError(t, err)

	_, err = tx.InsertPayment(ctx, core.Payment{
		SenderID:       sender,
		RecipientID:    recipient,
		PaymentCents:   10000,
		MessageHashB64: "abc123",
		CreatedAt:      time.Now().Add(-31 * 24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, nil, &sender, 11500, core.ReasonMessageSent)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	count, err := sweep.ExpireEscrowedPayments(ctx, db, core.ExpiryAge, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	bal, err := db.GetBalance(ctx, sender)
	require.NoError(t, err)
	require.Equal(t, int64(10000), bal.BalanceCents)
}

func TestRunAutomaticPayoutsNoCandidates(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	count, err := sweep.RunAutomaticPayouts(ctx, db, noopProcessor{}, core.AutomaticPayoutLookback, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func seedPayoutCandidate(t *testing.T, ctx context.Context, db *storetest.Database, withdrawableCents int64) uuid.UUID {
	t.Helper()
	clientID := uuid.New()
	externalID := "acct_" + clientID.String()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	account, err := tx.GetOrCreateConnectAccount(ctx, clientID)
	require.NoError(t, err)
	account.ExternalUserID = &externalID
	require.NoError(t, tx.UpdateConnectAccountOAuth(ctx, account))
	_, err = tx.UpdateConnectAccountPrefs(ctx, clientID, true, core.MinAutomaticPayoutThresholdCents)
	require.NoError(t, err)
	_, err = ledger.AppendTransaction(ctx, tx, &clientID, nil, int32(withdrawableCents), core.ReasonMessageRead)
	require.NoError(t, err)
	_, err = ledger.UpdateBalance(ctx, tx, clientID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	return clientID
}

// Runs several candidates' payouts concurrently (bounded by
// sweep.AutomaticPayoutConcurrency) and checks the reported success
// count matches exactly — guards against the succeeded counter being
// updated from multiple goroutines without synchronization.
func TestRunAutomaticPayoutsConcurrentCandidates(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()

	const numCandidates = 20
	for i := 0; i < numCandidates; i++ {
		seedPayoutCandidate(t, ctx, db, core.MinAutomaticPayoutThresholdCents)
	}

	count, err := sweep.RunAutomaticPayouts(ctx, db, noopProcessor{}, core.AutomaticPayoutLookback, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, numCandidates, count)
}

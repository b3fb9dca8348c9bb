package topup_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/store/storetest"
	"github.com/umpyre/beancounter/internal/topup"
)

type fakeProcessor struct {
	succeed bool
	message string

	lastReference string
}

func (f *fakeProcessor) Charge(ctx context.Context, req processor.ChargeRequest) (processor.ChargeResponse, error) {
	f.lastReference = req.Reference
	return processor.ChargeResponse{Succeeded: f.succeed, RawResponse: []byte(`{"id":"ch_1"}`), Message: f.message}, nil
}
func (fakeProcessor) Transfer(ctx context.Context, req processor.TransferRequest) (processor.TransferResponse, error) {
	return processor.TransferResponse{}, nil
}
func (fakeProcessor) GetLoginLink(ctx context.Context, externalUserID string) (string, error) {
	return "", nil
}
func (fakeProcessor) GetAccount(ctx context.Context, externalUserID string) (processor.AccountDetails, error) {
	return processor.AccountDetails{}, nil
}
func (fakeProcessor) GetOAuthURL(state string) string { return "" }
func (fakeProcessor) ExchangeOAuthCode(ctx context.Context, code string) (processor.OAuthCredentials, error) {
	return processor.OAuthCredentials{}, nil
}

// S1 — a successful charge credits amount minus the processor fee.
func TestAddCreditsSuccess(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	client := uuid.New()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	result, err := topup.AddCredits(ctx, tx, &fakeProcessor{succeed: true}, client, 1000, "tok_visa", "idem-key-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.True(t, result.Succeeded)
	require.Equal(t, int64(941), result.Balance.BalanceCents)
}

// A declined charge must leave no ledger entry behind.
func TestAddCreditsDeclinedLeavesNoLedgerEntry(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	client := uuid.New()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	result, err := topup.AddCredits(ctx, tx, &fakeProcessor{succeed: false, message: "card declined"}, client, 1000, "tok_chargeDeclined", "idem-key-2")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.False(t, result.Succeeded)
	require.Equal(t, "card declined", result.Message)

	// No balance row was ever created: the declined charge never
	// reached the ledger write, so there is nothing to project.
	_, err = db.GetBalance(ctx, client)
	require.ErrorIs(t, err, core.ErrNotFound)
}

// A caller-supplied idempotency key is passed through to the processor
// verbatim as the charge Reference, so a retried request (same key)
// reaches the processor's own idempotency check instead of minting a
// new reference and double-charging (spec.md §4.3 step 3).
func TestAddCreditsUsesCallerIdempotencyKeyAsReference(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	client := uuid.New()
	proc := &fakeProcessor{succeed: true}

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = topup.AddCredits(ctx, tx, proc, client, 1000, "tok_visa", "client-retry-key-42")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Equal(t, "client-retry-key-42", proc.lastReference)
}

// With no caller-supplied key, AddCredits falls back to minting a fresh
// reference per call rather than leaving it empty.
func TestAddCreditsFallsBackToGeneratedReference(t *testing.T) {
	ctx := context.Background()
	db := storetest.New()
	client := uuid.New()
	proc := &fakeProcessor{succeed: true}

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = topup.AddCredits(ctx, tx, proc, client, 1000, "tok_visa", "")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.NotEmpty(t, proc.lastReference)
}

func TestProcessorFee(t *testing.T) {
	require.Equal(t, int32(59), topup.ProcessorFee(1000))
}

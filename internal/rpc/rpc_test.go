package rpc_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/rpc"
	"github.com/umpyre/beancounter/internal/store/storetest"
)

type noopProcessor struct{}

func (noopProcessor) Charge(ctx context.Context, req processor.ChargeRequest) (processor.ChargeResponse, error) {
	return processor.ChargeResponse{Succeeded: true, RawResponse: []byte(`{}`)}, nil
}
func (noopProcessor) Transfer(ctx context.Context, req processor.TransferRequest) (processor.TransferResponse, error) {
	return processor.TransferResponse{RawResponse: []byte(`{}`)}, nil
}
func (noopProcessor) GetLoginLink(ctx context.Context, externalUserID string) (string, error) {
	return "https://dashboard.stripe.com/login", nil
}
func (noopProcessor) GetAccount(ctx context.Context, externalUserID string) (processor.AccountDetails, error) {
	return processor.AccountDetails{}, nil
}
func (noopProcessor) GetOAuthURL(state string) string { return "https://connect.stripe.com/oauth?state=" + state }
func (noopProcessor) ExchangeOAuthCode(ctx context.Context, code string) (processor.OAuthCredentials, error) {
	return processor.OAuthCredentials{ExternalUserID: "acct_1"}, nil
}

func newTestServer(t *testing.T) (*rpc.Server, *storetest.Database) {
	t.Helper()
	db := storetest.New()
	services := core.NewServices(db, nil, noopProcessor{}, nil, zerolog.Nop())
	srv, err := rpc.NewServer(nil, services)
	require.NoError(t, err)
	return srv, db
}

func TestGetBalanceInvalidUUID(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.GetBalance(context.Background(), &rpc.GetBalanceRequest{ClientID: "not-a-uuid"})
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetBalanceNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.GetBalance(context.Background(), &rpc.GetBalanceRequest{ClientID: uuid.New().String()})
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
}

// S1 — Top-up.
func TestStripeChargeTopUp(t *testing.T) {
	srv, _ := newTestServer(t)
	client := uuid.New()

	resp, err := srv.StripeCharge(context.Background(), &rpc.StripeChargeRequest{
		ClientID:    client.String(),
		AmountCents: 1000,
		Token:       "tok_test",
	})
	require.NoError(t, err)
	require.True(t, resp.Succeeded)
	require.Equal(t, int64(941), resp.Balance.BalanceCents)
}

// S3 — Insufficient balance on send.
func TestAddPaymentInsufficientBalanceRPC(t *testing.T) {
	srv, _ := newTestServer(t)
	sender := uuid.New()
	recipient := uuid.New()

	ctx := context.Background()
	resp, err := srv.AddPayment(ctx, &rpc.AddPaymentRequest{
		SenderID:     sender.String(),
		RecipientID:  recipient.String(),
		PaymentCents: 100,
		MessageHash:  []byte("h"),
	})
	require.NoError(t, err)
	require.Equal(t, "InsufficientBalance", resp.Result)
}

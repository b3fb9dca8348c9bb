// Package processor defines the narrow external card-processor /
// Connect-platform interface named in spec.md §9's re-architecture
// notes: {charge, transfer, get_login_link, get_account,
// exchange_oauth_code}. internal/processor/stripe provides the
// concrete implementation; internal/topup, internal/connect, and
// internal/sweep depend only on this interface.
package processor

import (
	"context"

	"github.com/google/uuid"
)

// ChargeRequest carries a top-up's tokenised card source and amount.
type ChargeRequest struct {
	Token       string
	AmountCents int32
	ClientID    uuid.UUID

	// Reference is an idempotency key and metadata value unique to
	// this charge attempt, mirroring original_source/src/stripe_client.rs's
	// charge(token, amount, client_id, tx_id) metadata pair.
	Reference string
}

// ChargeResponse is the processor's outcome for a charge attempt.
type ChargeResponse struct {
	Succeeded   bool
	RawResponse []byte
	Message     string
}

// TransferRequest carries a payout's destination and amount.
type TransferRequest struct {
	AmountCents    int64
	ExternalUserID string
}

// TransferResponse is the processor's outcome for a payout attempt.
type TransferResponse struct {
	RawResponse []byte
}

// OAuthCredentials is what ExchangeOAuthCode returns on success.
type OAuthCredentials struct {
	ExternalUserID string
	RawCredentials []byte
}

// AccountDetails is what GetAccount returns on success.
type AccountDetails struct {
	RawDetails []byte
}

// Processor is the narrow boundary to the external card-processor and
// Connect platform. A request-level failure (network error, processor
// rejection) is returned as *core.StripeError from each method.
type Processor interface {
	// Charge attempts a top-up charge (spec.md §4.3 step 3).
	Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)

	// Transfer attempts a payout (spec.md §4.4.2 step 3).
	Transfer(ctx context.Context, req TransferRequest) (TransferResponse, error)

	// GetLoginLink returns a one-time dashboard login URL for a linked
	// Connect account (spec.md §6 ConnectAccountInfo, Active state).
	GetLoginLink(ctx context.Context, externalUserID string) (string, error)

	// GetAccount fetches the Connect account's details blob.
	GetAccount(ctx context.Context, externalUserID string) (AccountDetails, error)

	// GetOAuthURL builds the Connect OAuth authorize URL for a fresh
	// account link (spec.md §4.4.1, ConnectAccountInfo Inactive state).
	GetOAuthURL(state string) string

	// ExchangeOAuthCode exchanges an authorization code for
	// credentials and the linked account's external user id
	// (spec.md §4.4.1).
	ExchangeOAuthCode(ctx context.Context, code string) (OAuthCredentials, error)
}

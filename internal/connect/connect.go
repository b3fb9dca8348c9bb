// Package connect implements the Connect account lifecycle (lazy
// creation, OAuth completion, preference updates) and the payout
// operation, per spec.md §4.4.
package connect

import (
	"context"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/store"
)

// GetOrCreateAccount lazily creates the Connect account row on first
// reference, per spec.md §4.4.1.
func GetOrCreateAccount(ctx context.Context, tx store.Transaction, clientID uuid.UUID) (core.ConnectAccount, error) {
	return tx.GetOrCreateConnectAccount(ctx, clientID)
}

// CompleteOAuth verifies the state nonce, exchanges the authorization
// code, fetches account details, and persists them atomically, per
// spec.md §4.4.1.
func CompleteOAuth(ctx context.Context, tx store.Transaction, proc processor.Processor, clientID, oauthState uuid.UUID, authorizationCode string) (core.ConnectAccount, error) {
	account, err := tx.GetOrCreateConnectAccount(ctx, clientID)
	if err != nil {
		return core.ConnectAccount{}, err
	}
	if account.OAuthStateNonce != oauthState {
		return core.ConnectAccount{}, core.ErrBadArguments
	}

	creds, err := proc.ExchangeOAuthCode(ctx, authorizationCode)
	if err != nil {
		return core.ConnectAccount{}, err
	}

	details, err := proc.GetAccount(ctx, creds.ExternalUserID)
	if err != nil {
		return core.ConnectAccount{}, err
	}

	account.ExternalUserID = &creds.ExternalUserID
	account.CredentialsBlob = creds.RawCredentials
	account.AccountDetailsBlob = details.RawDetails
	if err := tx.UpdateConnectAccountOAuth(ctx, account); err != nil {
		return core.ConnectAccount{}, err
	}
	return tx.GetOrCreateConnectAccount(ctx, clientID)
}

// UpdatePrefs clamps automatic_payout_threshold_cents to the spec.md
// §3 minimum and persists the preference change.
func UpdatePrefs(ctx context.Context, tx store.Transaction, clientID uuid.UUID, enableAutomaticPayouts bool, thresholdCents int64) (core.ConnectAccount, error) {
	return tx.UpdateConnectAccountPrefs(ctx, clientID, enableAutomaticPayouts, thresholdCents)
}

// PayoutResult is the typed result of Payout, mirroring the
// {Success, InsufficientBalance} result enum in spec.md §6.
type PayoutResult struct {
	Succeeded bool
	Balance   core.Balance
}

// Payout transfers amountCents from clientID's balance to their linked
// external account, per spec.md §4.4.2. The precondition check (account
// linked) must be performed by the caller outside the write
// transaction, as spec.md §4.4.2 requires; Payout itself only performs
// the steps that run inside the write transaction.
func Payout(ctx context.Context, tx store.Transaction, proc processor.Processor, clientID uuid.UUID, externalUserID string, amountCents int64) (PayoutResult, error) {
	balance, err := ledger.Project(ctx, tx, clientID)
	if err != nil {
		return PayoutResult{}, err
	}
	if balance.BalanceCents < amountCents {
		return PayoutResult{Succeeded: false, Balance: balance}, nil
	}

	transfer, err := proc.Transfer(ctx, processor.TransferRequest{
		AmountCents:    amountCents,
		ExternalUserID: externalUserID,
	})
	if err != nil {
		return PayoutResult{}, err
	}

	if err := tx.InsertConnectTransfer(ctx, core.ConnectTransfer{
		ClientID:       clientID,
		ExternalUserID: externalUserID,
		ResponseBlob:   transfer.RawResponse,
		AmountCents:    amountCents,
	}); err != nil {
		return PayoutResult{}, err
	}

	if _, err := ledger.AppendTransaction(ctx, tx, nil, &clientID, int32(amountCents), core.ReasonPayout); err != nil {
		return PayoutResult{}, err
	}

	newBalance, err := ledger.UpdateBalance(ctx, tx, clientID)
	if err != nil {
		return PayoutResult{}, err
	}
	return PayoutResult{Succeeded: true, Balance: newBalance}, nil
}

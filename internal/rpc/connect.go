package rpc

import (
	"context"

	"github.com/google/uuid"

	"github.com/umpyre/beancounter/internal/connect"
	"github.com/umpyre/beancounter/internal/core"
)

// ConnectAccountInfo mirrors spec.md §6's ConnectAccountInfo: a state
// discriminator plus preferences, and either an OAuth URL (Inactive)
// or a login-link URL (Active).
type ConnectAccountInfo struct {
	State                         string
	EnableAutomaticPayouts        bool
	AutomaticPayoutThresholdCents int64
	OAuthURL                      string
	LoginLinkURL                  string
}

func (s *Server) connectAccountInfo(ctx context.Context, account core.ConnectAccount) (*ConnectAccountInfo, error) {
	info := &ConnectAccountInfo{
		EnableAutomaticPayouts:        account.EnableAutomaticPayouts,
		AutomaticPayoutThresholdCents: account.AutomaticPayoutThresholdCents,
	}
	if account.ExternalUserID == nil {
		info.State = "Inactive"
		info.OAuthURL = s.services.Processor.GetOAuthURL(account.OAuthStateNonce.String())
		return info, nil
	}

	info.State = "Active"
	link, err := s.services.Processor.GetLoginLink(ctx, *account.ExternalUserID)
	if err != nil {
		return nil, err
	}
	info.LoginLinkURL = link
	return info, nil
}

// GetConnectAccountRequest is the request payload for GetConnectAccount.
type GetConnectAccountRequest struct {
	ClientID string
}

// ConnectAccountResponse mirrors the {client_id, ConnectAccountInfo}
// success payload shared by GetConnectAccount, CompleteConnectOauth,
// and UpdateConnectAccountPrefs.
type ConnectAccountResponse struct {
	ClientID string
	Account  *ConnectAccountInfo
}

// GetConnectAccount lazily creates (on first reference) and returns a
// client's Connect account state, per spec.md §4.4.1.
func (s *Server) GetConnectAccount(ctx context.Context, req *GetConnectAccountRequest) (*ConnectAccountResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	account, err := connect.GetOrCreateAccount(ctx, tx, clientID)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}

	info, err := s.connectAccountInfo(ctx, account)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ConnectAccountResponse{ClientID: clientID.String(), Account: info}, nil
}

// CompleteConnectOauthRequest is the request payload for CompleteConnectOauth.
type CompleteConnectOauthRequest struct {
	ClientID          string
	OAuthState        string
	AuthorizationCode string
}

// CompleteConnectOauth verifies the OAuth state nonce, exchanges the
// authorization code, and persists the linked account, per spec.md §4.4.1.
func (s *Server) CompleteConnectOauth(ctx context.Context, req *CompleteConnectOauthRequest) (*ConnectAccountResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}
	oauthState, err := uuid.Parse(req.OAuthState)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	account, err := connect.CompleteOAuth(ctx, tx, s.services.Processor, clientID, oauthState, req.AuthorizationCode)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}

	info, err := s.connectAccountInfo(ctx, account)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ConnectAccountResponse{ClientID: clientID.String(), Account: info}, nil
}

// UpdateConnectAccountPrefsRequest is the request payload for
// UpdateConnectAccountPrefs.
type UpdateConnectAccountPrefsRequest struct {
	ClientID                      string
	EnableAutomaticPayouts        bool
	AutomaticPayoutThresholdCents int64
}

// UpdateConnectAccountPrefs clamps and persists a client's automatic
// payout preferences, per spec.md §4.4.1.
func (s *Server) UpdateConnectAccountPrefs(ctx context.Context, req *UpdateConnectAccountPrefsRequest) (*ConnectAccountResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	account, err := connect.UpdatePrefs(ctx, tx, clientID, req.EnableAutomaticPayouts, req.AutomaticPayoutThresholdCents)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}

	info, err := s.connectAccountInfo(ctx, account)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ConnectAccountResponse{ClientID: clientID.String(), Account: info}, nil
}

// ConnectPayoutRequest is the request payload for ConnectPayout.
type ConnectPayoutRequest struct {
	ClientID    string
	AmountCents int64
}

// ConnectPayoutResponse mirrors the {client_id, result, Balance?}
// success payload of spec.md §6.
type ConnectPayoutResponse struct {
	ClientID string
	Result   string
	Balance  *BalanceResponse
}

// ConnectPayout transfers amount_cents from a client's balance to
// their linked external account, per spec.md §4.4.2. The precondition
// check (account linked) runs outside the write transaction, as the
// spec requires.
func (s *Server) ConnectPayout(ctx context.Context, req *ConnectPayoutRequest) (*ConnectPayoutResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	account, err := s.services.Store.GetConnectAccount(ctx, clientID)
	if err != nil {
		return nil, toStatus(err)
	}
	if account == nil || account.ExternalUserID == nil {
		return nil, toStatus(core.ErrConnectNotLinked)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := connect.Payout(ctx, tx, s.services.Processor, clientID, *account.ExternalUserID, req.AmountCents)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if !result.Succeeded {
		_ = tx.Rollback()
		return &ConnectPayoutResponse{ClientID: clientID.String(), Result: "InsufficientBalance", Balance: balanceResponse(result.Balance)}, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}

	return &ConnectPayoutResponse{
		ClientID: clientID.String(),
		Result:   "Success",
		Balance:  balanceResponse(result.Balance),
	}, nil
}

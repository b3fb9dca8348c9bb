package rpc

import (
	"context"

	"github.com/google/uuid"

	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/topup"
)

// AddCreditsRequest is the request payload for AddCredits (spec.md §6):
// a direct ledger credit with no processor involvement, distinct from
// the card-charge flow behind StripeCharge (spec.md §4.3).
type AddCreditsRequest struct {
	ClientID    string
	AmountCents int32
}

// AddCredits appends a Credit/Debit pair with reason=CreditAdded and
// returns the recomputed balance, with no external processor call.
func (s *Server) AddCredits(ctx context.Context, req *AddCreditsRequest) (*BalanceResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}
	if req.AmountCents <= 0 {
		return nil, toStatus(core.ErrInvalidAmount)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	if _, err := ledger.AppendTransaction(ctx, tx, &clientID, nil, req.AmountCents, core.ReasonCreditAdded); err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	balance, err := ledger.UpdateBalance(ctx, tx, clientID)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}
	return balanceResponse(balance), nil
}

// StripeChargeRequest is the request payload for StripeCharge (spec.md §6).
// IdempotencyKey is passed to the processor as the charge reference
// (spec.md §4.3 step 3): a retried request carrying the same key is
// recognized as a retry instead of charging the card a second time.
// When it is empty, a fresh reference is generated for each call, so
// retries of such a request are not recognized.
type StripeChargeRequest struct {
	ClientID       string
	AmountCents    int32
	Token          string
	IdempotencyKey string
}

// StripeChargeResponse mirrors the {result, api_response, message, Balance?}
// success payload of spec.md §6.
type StripeChargeResponse struct {
	Succeeded   bool
	APIResponse []byte
	Message     string
	Balance     *BalanceResponse
}

// StripeCharge tops up a client's balance via the external processor,
// per spec.md §4.3. The charge attempt and the ledger write run inside
// one store transaction; a declined charge commits its charge row for
// audit purposes but never reaches the ledger write, so no credit
// entry is left unpaired. Only an unexpected error rolls the
// transaction back.
func (s *Server) StripeCharge(ctx context.Context, req *StripeChargeRequest) (*StripeChargeResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := topup.AddCredits(ctx, tx, s.services.Processor, clientID, req.AmountCents, req.Token, req.IdempotencyKey)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}

	resp := &StripeChargeResponse{
		Succeeded:   result.Succeeded,
		APIResponse: result.Response,
		Message:     result.Message,
	}
	if result.Succeeded {
		resp.Balance = balanceResponse(result.Balance)
	}
	return resp, nil
}

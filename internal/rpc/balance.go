package rpc

import (
	"context"

	"github.com/google/uuid"

	"github.com/umpyre/beancounter/internal/core"
)

// GetBalanceRequest is the request payload for GetBalance (spec.md §6).
type GetBalanceRequest struct {
	ClientID string
}

// BalanceResponse mirrors the Balance success payload of spec.md §6.
type BalanceResponse struct {
	ClientID          string
	BalanceCents      int64
	PromoCents        int64
	WithdrawableCents int64
}

func balanceResponse(b core.Balance) *BalanceResponse {
	return &BalanceResponse{
		ClientID:          b.ClientID.String(),
		BalanceCents:      b.BalanceCents,
		PromoCents:        b.PromoCents,
		WithdrawableCents: b.WithdrawableCents,
	}
}

// GetBalance returns the client's current balance projection.
func (s *Server) GetBalance(ctx context.Context, req *GetBalanceRequest) (*BalanceResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	balance, err := s.services.Reader.GetBalance(ctx, clientID)
	if err != nil {
		return nil, toStatus(err)
	}
	if balance == nil {
		return nil, toStatus(core.ErrNotFound)
	}
	return balanceResponse(*balance), nil
}

// GetTransactionsRequest is the request payload for GetTransactions.
type GetTransactionsRequest struct {
	ClientID string
}

// TransactionResponse mirrors one Transaction entry of spec.md §6.
type TransactionResponse struct {
	ClientID    string
	CreatedAt   int64
	AmountCents int32
	Kind        string
	Reason      string
}

// GetTransactionsResponse wraps the client's transaction history.
type GetTransactionsResponse struct {
	Transactions []TransactionResponse
}

// GetTransactions returns a client's full transaction history.
func (s *Server) GetTransactions(ctx context.Context, req *GetTransactionsRequest) (*GetTransactionsResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	txs, err := s.services.Reader.ListTransactions(ctx, clientID)
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		id := ""
		if tx.ClientID != nil {
			id = tx.ClientID.String()
		}
		out = append(out, TransactionResponse{
			ClientID:    id,
			CreatedAt:   tx.CreatedAt.Unix(),
			AmountCents: tx.AmountCents,
			Kind:        string(tx.Kind),
			Reason:      string(tx.Reason),
		})
	}
	return &GetTransactionsResponse{Transactions: out}, nil
}

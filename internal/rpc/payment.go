package rpc

import (
	"context"

	"github.com/google/uuid"

	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/payment"
)

// AddPaymentRequest is the request payload for AddPayment (spec.md §6).
type AddPaymentRequest struct {
	SenderID     string
	RecipientID  string
	PaymentCents int32
	MessageHash  []byte
}

// AddPaymentResponse mirrors the {result, payment_cents, fee_cents, Balance?}
// success payload of spec.md §6.
type AddPaymentResponse struct {
	Result       string
	PaymentCents int32
	FeeCents     int32
	Balance      *BalanceResponse
}

var addOutcomeNames = map[payment.AddOutcome]string{
	payment.AddSuccess:             "Success",
	payment.AddInsufficientBalance: "InsufficientBalance",
	payment.AddInvalidAmount:       "InvalidAmount",
}

// AddPayment escrows payment_cents from sender to recipient, per
// spec.md §4.2.1. InsufficientBalance and InvalidAmount are domain
// results carried in the response, not RPC errors (spec.md §7).
func (s *Server) AddPayment(ctx context.Context, req *AddPaymentRequest) (*AddPaymentResponse, error) {
	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := payment.AddPayment(ctx, tx, senderID, recipientID, req.PaymentCents, req.MessageHash)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if result.Outcome != payment.AddSuccess {
		_ = tx.Rollback()
		resp := &AddPaymentResponse{Result: addOutcomeNames[result.Outcome]}
		if result.Outcome == payment.AddInsufficientBalance {
			resp.Balance = balanceResponse(result.Balance)
		}
		return resp, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}

	if s.services.Metrics != nil {
		s.services.Metrics.PaymentAddedAmount.Observe(float64(result.PaymentCents))
		s.services.Metrics.PaymentAddedFeeAmount.Observe(float64(result.FeeCents))
	}

	return &AddPaymentResponse{
		Result:       addOutcomeNames[result.Outcome],
		PaymentCents: result.PaymentCents,
		FeeCents:     result.FeeCents,
		Balance:      balanceResponse(result.Balance),
	}, nil
}

// SettlePaymentRequest is the request payload for SettlePayment (spec.md §6).
type SettlePaymentRequest struct {
	RecipientID string
	MessageHash []byte
}

// SettlePaymentResponse mirrors the {payment_cents, fee_cents, Balance}
// success payload of spec.md §6.
type SettlePaymentResponse struct {
	PaymentCents int32
	FeeCents     int32
	Balance      *BalanceResponse
}

// SettlePayment releases an escrowed payment to its recipient on
// message read, per spec.md §4.2.2. A missing escrow row surfaces as
// NotFound (spec.md §7).
func (s *Server) SettlePayment(ctx context.Context, req *SettlePaymentRequest) (*SettlePaymentResponse, error) {
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return nil, toStatus(core.ErrInvalidUUID)
	}

	tx, err := s.services.Store.Begin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := payment.SettlePayment(ctx, tx, recipientID, req.MessageHash)
	if err != nil {
		_ = tx.Rollback()
		return nil, toStatus(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toStatus(err)
	}

	if s.services.Metrics != nil {
		s.services.Metrics.PaymentSettledAmount.Observe(float64(result.PaymentCents))
		s.services.Metrics.PaymentSettledFeeAmount.Observe(float64(result.FeeCents))
	}

	return &SettlePaymentResponse{
		PaymentCents: result.PaymentCents,
		FeeCents:     result.FeeCents,
		Balance:      balanceResponse(result.Balance),
	}, nil
}

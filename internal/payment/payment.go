// Package payment implements the escrowed message-payment state
// machine: add (escrow on send), settle (release on read), and the
// expiry refund applied by the background sweeper, per spec.md §4.2.
package payment

import (
	"context"
	"encoding/base64"
	"math"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/store"
)

// FeeRate is the message-payment fee, 15% of payment_cents, charged
// independently at send and at settle (spec.md GLOSSARY).
const FeeRate = 0.15

// roundHalfEven rounds f to the nearest integer, ties to even, per
// spec.md §4.2.3's "round half-to-even" tie-break rule.
func roundHalfEven(f float64) int64 {
	floor := math.Floor(f)
	diff := f - floor
	switch {
	case diff < 0.5:
		return int64(floor)
	case diff > 0.5:
		return int64(floor) + 1
	default:
		if int64(floor)%2 == 0 {
			return int64(floor)
		}
		return int64(floor) + 1
	}
}

// Fee computes the 15% message-payment fee on paymentCents, rounded
// half-to-even.
func Fee(paymentCents int32) int32 {
	return int32(roundHalfEven(float64(paymentCents) * FeeRate))
}

// AddResult is the typed result of AddPayment, mirroring the
// {Success, InsufficientBalance, InvalidAmount} result enum in
// spec.md §6 — these are domain results, not errors (spec.md §7, §9).
type AddResult struct {
	Outcome      AddOutcome
	Balance      core.Balance
	PaymentCents int32
	FeeCents     int32
}

type AddOutcome int

const (
	AddSuccess AddOutcome = iota
	AddInsufficientBalance
	AddInvalidAmount
)

// messageHashB64 base64-no-pad-encodes a message fingerprint, per
// spec.md §3's "base64-encoded message fingerprint" and §4.2.1 step 4.
func messageHashB64(messageHash []byte) string {
	return base64.RawStdEncoding.EncodeToString(messageHash)
}

// AddPayment escrows payment_cents from sender for recipient, per
// spec.md §4.2.1.
func AddPayment(ctx context.Context, tx store.Transaction, senderID, recipientID uuid.UUID, paymentCents int32, messageHash []byte) (AddResult, error) {
	// Zero-value payments are valid: they create only the escrow row
	// (no ledger entries), per spec.md §4.2.1.
	if paymentCents < 0 {
		return AddResult{Outcome: AddInvalidAmount}, nil
	}

	feeCents := Fee(paymentCents)
	total := int64(paymentCents) + int64(feeCents)
	if total >= core.MaxPaymentAmount {
		return AddResult{Outcome: AddInvalidAmount}, nil
	}

	senderBalance, err := ledger.Project(ctx, tx, senderID)
	if err != nil {
		return AddResult{}, err
	}
	if senderBalance.BalanceCents+senderBalance.PromoCents < total {
		return AddResult{Outcome: AddInsufficientBalance, Balance: senderBalance}, nil
	}

	if total > 0 {
		if _, err := ledger.AppendTransaction(ctx, tx, nil, &senderID, paymentCents, core.ReasonMessageSent); err != nil {
			return AddResult{}, err
		}
		if _, err := ledger.AppendTransaction(ctx, tx, nil, &senderID, feeCents, core.ReasonMessageSent); err != nil {
			return AddResult{}, err
		}
	}

	if _, err := tx.InsertPayment(ctx, core.Payment{
		SenderID:       senderID,
		RecipientID:    recipientID,
		PaymentCents:   paymentCents,
		MessageHashB64: messageHashB64(messageHash),
	}); err != nil {
		return AddResult{}, err
	}

	newBalance, err := ledger.UpdateBalance(ctx, tx, senderID)
	if err != nil {
		return AddResult{}, err
	}

	return AddResult{Outcome: AddSuccess, Balance: newBalance, PaymentCents: paymentCents, FeeCents: feeCents}, nil
}

// SettleResult is the outcome of SettlePayment. PaymentCents is the net
// amount credited to the recipient (payment_cents minus FeeCents).
type SettleResult struct {
	PaymentCents int32
	FeeCents     int32
	Balance      core.Balance
}

// SettlePayment releases an escrowed payment to its recipient on
// message read, per spec.md §4.2.2.
func SettlePayment(ctx context.Context, tx store.Transaction, recipientID uuid.UUID, messageHash []byte) (SettleResult, error) {
	hash := messageHashB64(messageHash)
	p, err := tx.GetPayment(ctx, recipientID, hash)
	if err != nil {
		return SettleResult{}, err
	}

	fee := Fee(p.PaymentCents)
	net := p.PaymentCents - fee

	if _, err := ledger.AppendTransaction(ctx, tx, &recipientID, nil, net, core.ReasonMessageRead); err != nil {
		return SettleResult{}, err
	}
	if err := tx.DeletePayment(ctx, p.ID); err != nil {
		return SettleResult{}, err
	}

	balance, err := ledger.UpdateBalance(ctx, tx, recipientID)
	if err != nil {
		return SettleResult{}, err
	}

	return SettleResult{PaymentCents: net, FeeCents: fee, Balance: balance}, nil
}

// RefundExpired credits payment.PaymentCents back to the sender with
// reason=MessageUnread and deletes the escrow row, per spec.md §4.2.3.
// It does not refund the send fee (SPEC_FULL.md §13 OQ2 — preserved as
// specified).
func RefundExpired(ctx context.Context, tx store.Transaction, p core.Payment) error {
	if _, err := ledger.AppendTransaction(ctx, tx, &p.SenderID, nil, p.PaymentCents, core.ReasonMessageUnread); err != nil {
		return err
	}
	return tx.DeletePayment(ctx, p.ID)
}

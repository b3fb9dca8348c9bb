// Package topup implements the card-charge (top-up) flow that bridges
// a ledger write to the external processor's outcome atomically, per
// spec.md §4.3.
package topup

import (
	"context"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/ledger"
	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/store"
)

// ProcessorFee returns floor(amount*0.029)+30, per spec.md §4.3 step 1.
func ProcessorFee(amountCents int32) int32 {
	return int32((int64(amountCents)*29)/1000) + 30
}

// Result is the outcome of AddCredits.
type Result struct {
	Succeeded bool
	Balance   core.Balance
	Response  []byte
	Message   string
}

// AddCredits tops up clientID by amountCents, charging the external
// processor for the full amount inside the same store transaction so
// a failed charge cannot leak credits into the ledger (spec.md §4.3).
// idempotencyKey must be stable across retries of the same logical
// top-up attempt (e.g. a client-supplied key threaded through
// rpc.StripeChargeRequest) so a handler retry after a transport
// timeout hits the processor's own idempotency check instead of
// double-charging it; AddCredits mints a fresh key only as a fallback
// for callers that don't supply one. The caller (internal/rpc) is
// responsible for committing tx on success and rolling it back on
// failure.
func AddCredits(ctx context.Context, tx store.Transaction, proc processor.Processor, clientID uuid.UUID, amountCents int32, token, idempotencyKey string) (Result, error) {
	if amountCents <= 0 {
		return Result{}, core.ErrInvalidAmount
	}

	fee := ProcessorFee(amountCents)
	credit := amountCents - fee

	reference := idempotencyKey
	if reference == "" {
		reference = uuid.New().String()
	}

	// The charge is attempted before any ledger entry is written: a
	// declined charge must leave no credit/debit pair behind, so the
	// ledger write only happens once the processor has confirmed the
	// charge succeeded.
	charge, err := proc.Charge(ctx, processor.ChargeRequest{
		Token:       token,
		AmountCents: amountCents,
		ClientID:    clientID,
		Reference:   reference,
	})
	if err != nil {
		return Result{}, err
	}

	if !charge.Succeeded {
		if err := tx.InsertStripeCharge(ctx, core.StripeCharge{ClientID: clientID, ResponseBlob: charge.RawResponse}); err != nil {
			return Result{}, err
		}
		return Result{Succeeded: false, Response: charge.RawResponse, Message: charge.Message}, nil
	}

	entryID, err := ledger.AppendTransaction(ctx, tx, &clientID, nil, credit, core.ReasonCreditAdded)
	if err != nil {
		return Result{}, err
	}

	if err := tx.InsertStripeCharge(ctx, core.StripeCharge{ClientID: clientID, ResponseBlob: charge.RawResponse, LedgerEntryID: entryID}); err != nil {
		return Result{}, err
	}

	balance, err := ledger.UpdateBalance(ctx, tx, clientID)
	if err != nil {
		return Result{}, err
	}

	return Result{Succeeded: true, Balance: balance, Response: charge.RawResponse}, nil
}

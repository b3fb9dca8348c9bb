// Package store defines the persistence boundary for BeanCounter: a
// Database/Transaction pair mirroring the teacher's
// internal/storage/relationaldb split between a connection-pool-owning
// Database and a single in-flight Transaction, generalized from ledger
// repositories to BeanCounter's accounting tables.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
)

// Database owns a single connection pool and opens Transactions. The
// reader and writer pools are two separate Database values
// (core.Services.Reader and core.Services.Store). A balance row is
// created lazily only inside a write Transaction (GetOrCreateBalance);
// Database.GetBalance returns core.ErrNotFound for a client with no row.
type Database interface {
	Open(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Begin opens a new write transaction.
	Begin(ctx context.Context) (Transaction, error)

	// GetConnectAccount is a read-only lookup used for the payout
	// precondition check performed outside the write transaction
	// (spec.md §4.4.2).
	GetConnectAccount(ctx context.Context, clientID uuid.UUID) (*core.ConnectAccount, error)

	// GetBalance is a read-only balance lookup for GetBalance RPCs.
	GetBalance(ctx context.Context, clientID uuid.UUID) (*core.Balance, error)

	// ListAutomaticPayoutCandidates returns clients eligible for the
	// automatic payout sweep per spec.md §4.5: withdrawable_cents >=
	// threshold, enable_automatic_payouts = true, and no
	// Connect-transfer within the lookback window.
	ListAutomaticPayoutCandidates(ctx context.Context, lookback time.Duration) ([]uuid.UUID, error)

	// ListTransactions returns a client's transaction history.
	ListTransactions(ctx context.Context, clientID uuid.UUID) ([]core.Transaction, error)
}

// Transaction is a single open store transaction. Every core
// operation in internal/ledger, internal/payment, internal/topup, and
// internal/connect runs against one Transaction; the caller that opened
// it (internal/rpc, internal/sweep) calls either Commit or Rollback.
type Transaction interface {
	Commit() error
	Rollback() error

	// InsertTransactionPair appends one Credit entry for creditClient
	// and one Debit entry for debitClient, both tagged reason, per
	// spec.md §4.1 append_transaction. Either client may be nil (the
	// platform/cash side). It returns the id of the inserted Credit
	// entry, so callers (e.g. internal/topup) can record which ledger
	// entry a processor charge corresponds to.
	InsertTransactionPair(ctx context.Context, creditClient, debitClient *uuid.UUID, amountCents int32, reason core.TransactionReason) (int64, error)

	// Aggregate sums feeding the balance projection algorithm (spec.md §4.1).
	SumCredits(ctx context.Context, clientID uuid.UUID) (int64, error)
	SumPromoCreditAdded(ctx context.Context, clientID uuid.UUID) (int64, error)
	SumDebits(ctx context.Context, clientID uuid.UUID) (int64, error)
	SumMessageReadCredits(ctx context.Context, clientID uuid.UUID) (int64, error)
	SumPayoutDebits(ctx context.Context, clientID uuid.UUID) (int64, error)

	// GetOrCreateBalance returns the client's balance row, creating a
	// zero row on first reference (spec.md §3 Lifecycles).
	GetOrCreateBalance(ctx context.Context, clientID uuid.UUID) (core.Balance, error)

	// UpsertBalance persists a recomputed projection.
	UpsertBalance(ctx context.Context, balance core.Balance) error

	// Payments (escrow).
	InsertPayment(ctx context.Context, payment core.Payment) (int64, error)
	GetPayment(ctx context.Context, recipientID uuid.UUID, messageHashB64 string) (*core.Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	ListExpiredPayments(ctx context.Context, before time.Time) ([]core.Payment, error)

	// Connect accounts.
	GetOrCreateConnectAccount(ctx context.Context, clientID uuid.UUID) (core.ConnectAccount, error)
	UpdateConnectAccountOAuth(ctx context.Context, account core.ConnectAccount) error
	UpdateConnectAccountPrefs(ctx context.Context, clientID uuid.UUID, enable bool, thresholdCents int64) (core.ConnectAccount, error)

	// Connect transfers and card charges.
	InsertConnectTransfer(ctx context.Context, transfer core.ConnectTransfer) error
	HasRecentConnectTransfer(ctx context.Context, clientID uuid.UUID, since time.Time) (bool, error)
	InsertStripeCharge(ctx context.Context, charge core.StripeCharge) error
}

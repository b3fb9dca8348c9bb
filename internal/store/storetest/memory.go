// Package storetest provides an in-memory store.Database/Transaction
// pair for exercising internal/ledger, internal/payment,
// internal/topup, internal/connect, and internal/sweep without a
// Postgres instance. It implements the same interfaces as
// internal/store/postgres so core packages are tested against their
// real dependency surface, just backed by memory instead of SQL.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/store"
)

type Database struct {
	mu           sync.Mutex
	transactions []core.Transaction
	balances     map[uuid.UUID]core.Balance
	payments     map[int64]core.Payment
	connect      map[uuid.UUID]core.ConnectAccount
	transfers    []core.ConnectTransfer
	charges      []core.StripeCharge
	nextTxID     int64
	nextPayID    int64
}

func New() *Database {
	return &Database{
		balances: make(map[uuid.UUID]core.Balance),
		payments: make(map[int64]core.Payment),
		connect:  make(map[uuid.UUID]core.ConnectAccount),
	}
}

func (d *Database) Open(ctx context.Context) error  { return nil }
func (d *Database) Close() error                     { return nil }
func (d *Database) Ping(ctx context.Context) error   { return nil }

func (d *Database) Begin(ctx context.Context) (store.Transaction, error) {
	return &transaction{db: d}, nil
}

func (d *Database) GetConnectAccount(ctx context.Context, clientID uuid.UUID) (*core.ConnectAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.connect[clientID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (d *Database) GetBalance(ctx context.Context, clientID uuid.UUID) (*core.Balance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.balances[clientID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := b
	return &cp, nil
}

func (d *Database) ListAutomaticPayoutCandidates(ctx context.Context, lookback time.Duration) ([]uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-lookback)
	recentTransfer := make(map[uuid.UUID]bool)
	for _, t := range d.transfers {
		if t.CreatedAt.After(cutoff) {
			recentTransfer[t.ClientID] = true
		}
	}

	var out []uuid.UUID
	for clientID, account := range d.connect {
		if !account.EnableAutomaticPayouts || account.ExternalUserID == nil {
			continue
		}
		b, ok := d.balances[clientID]
		if !ok || b.WithdrawableCents < account.AutomaticPayoutThresholdCents {
			continue
		}
		if recentTransfer[clientID] {
			continue
		}
		out = append(out, clientID)
	}
	return out, nil
}

func (d *Database) ListTransactions(ctx context.Context, clientID uuid.UUID) ([]core.Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []core.Transaction
	for _, t := range d.transactions {
		if t.ClientID != nil && *t.ClientID == clientID {
			out = append(out, t)
		}
	}
	return out, nil
}

// transaction is the in-memory Transaction: it stages nothing, since
// Database's maps are mutated directly. Its first write takes a
// snapshot of the whole Database, and Rollback restores that snapshot,
// which also discards writes made meanwhile by other transactions; this
// is sufficient for the deterministic unit tests in this repository.
type transaction struct {
	db       *Database
	snapshot *Database
	done     bool
}

func (t *transaction) snapshotOnce() {
	if t.snapshot != nil {
		return
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	snap := &Database{
		transactions: append([]core.Transaction(nil), t.db.transactions...),
		balances:     make(map[uuid.UUID]core.Balance, len(t.db.balances)),
		payments:     make(map[int64]core.Payment, len(t.db.payments)),
		connect:      make(map[uuid.UUID]core.ConnectAccount, len(t.db.connect)),
		transfers:    append([]core.ConnectTransfer(nil), t.db.transfers...),
		charges:      append([]core.StripeCharge(nil), t.db.charges...),
		nextTxID:     t.db.nextTxID,
		nextPayID:    t.db.nextPayID,
	}
	for k, v := range t.db.balances {
		snap.balances[k] = v
	}
	for k, v := range t.db.payments {
		snap.payments[k] = v
	}
	for k, v := range t.db.connect {
		snap.connect[k] = v
	}
	t.snapshot = snap
}

func (t *transaction) Commit() error {
	t.done = true
	return nil
}

func (t *transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.snapshot == nil {
		return nil
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.transactions = t.snapshot.transactions
	t.db.balances = t.snapshot.balances
	t.db.payments = t.snapshot.payments
	t.db.connect = t.snapshot.connect
	t.db.transfers = t.snapshot.transfers
	t.db.charges = t.snapshot.charges
	t.db.nextTxID = t.snapshot.nextTxID
	t.db.nextPayID = t.snapshot.nextPayID
	return nil
}

func (t *transaction) InsertTransactionPair(ctx context.Context, creditClient, debitClient *uuid.UUID, amountCents int32, reason core.TransactionReason) (int64, error) {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	now := time.Now().UTC()
	t.db.nextTxID++
	creditID := t.db.nextTxID
	t.db.transactions = append(t.db.transactions, core.Transaction{
		ID: creditID, CreatedAt: now, ClientID: copyUUID(creditClient),
		Kind: core.KindCredit, Reason: reason, AmountCents: amountCents,
	})
	t.db.nextTxID++
	t.db.transactions = append(t.db.transactions, core.Transaction{
		ID: t.db.nextTxID, CreatedAt: now, ClientID: copyUUID(debitClient),
		Kind: core.KindDebit, Reason: reason, AmountCents: -amountCents,
	})
	return creditID, nil
}

func (t *transaction) sumWhere(clientID uuid.UUID, pred func(core.Transaction) bool) int64 {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	var sum int64
	for _, tx := range t.db.transactions {
		if tx.ClientID == nil || *tx.ClientID != clientID {
			continue
		}
		if pred(tx) {
			sum += int64(tx.AmountCents)
		}
	}
	return sum
}

func (t *transaction) SumCredits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sumWhere(clientID, func(tx core.Transaction) bool { return tx.Kind == core.KindCredit }), nil
}

func (t *transaction) SumPromoCreditAdded(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sumWhere(clientID, func(tx core.Transaction) bool {
		return tx.Kind == core.KindPromoCredit && tx.Reason == core.ReasonCreditAdded
	}), nil
}

func (t *transaction) SumDebits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sumWhere(clientID, func(tx core.Transaction) bool { return tx.Kind == core.KindDebit }), nil
}

func (t *transaction) SumMessageReadCredits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sumWhere(clientID, func(tx core.Transaction) bool {
		return tx.Kind == core.KindCredit && tx.Reason == core.ReasonMessageRead
	}), nil
}

func (t *transaction) SumPayoutDebits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sumWhere(clientID, func(tx core.Transaction) bool {
		return tx.Kind == core.KindDebit && tx.Reason == core.ReasonPayout
	}), nil
}

func (t *transaction) GetOrCreateBalance(ctx context.Context, clientID uuid.UUID) (core.Balance, error) {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if b, ok := t.db.balances[clientID]; ok {
		return b, nil
	}
	now := time.Now().UTC()
	b := core.Balance{ClientID: clientID, CreatedAt: now, UpdatedAt: now}
	t.db.balances[clientID] = b
	return b, nil
}

func (t *transaction) UpsertBalance(ctx context.Context, balance core.Balance) error {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	existing, ok := t.db.balances[balance.ClientID]
	if ok {
		balance.CreatedAt = existing.CreatedAt
	} else {
		balance.CreatedAt = time.Now().UTC()
	}
	balance.UpdatedAt = time.Now().UTC()
	t.db.balances[balance.ClientID] = balance
	return nil
}

func (t *transaction) InsertPayment(ctx context.Context, payment core.Payment) (int64, error) {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for _, p := range t.db.payments {
		if p.RecipientID == payment.RecipientID && p.MessageHashB64 == payment.MessageHashB64 {
			return 0, core.ErrDuplicatePayment
		}
	}
	t.db.nextPayID++
	payment.ID = t.db.nextPayID
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	t.db.payments[payment.ID] = payment
	return payment.ID, nil
}

func (t *transaction) GetPayment(ctx context.Context, recipientID uuid.UUID, messageHashB64 string) (*core.Payment, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for _, p := range t.db.payments {
		if p.RecipientID == recipientID && p.MessageHashB64 == messageHashB64 {
			cp := p
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (t *transaction) DeletePayment(ctx context.Context, id int64) error {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	delete(t.db.payments, id)
	return nil
}

func (t *transaction) ListExpiredPayments(ctx context.Context, before time.Time) ([]core.Payment, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	var out []core.Payment
	for _, p := range t.db.payments {
		if p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *transaction) GetOrCreateConnectAccount(ctx context.Context, clientID uuid.UUID) (core.ConnectAccount, error) {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if a, ok := t.db.connect[clientID]; ok {
		return a, nil
	}
	now := time.Now().UTC()
	a := core.ConnectAccount{
		ClientID:                      clientID,
		OAuthStateNonce:               uuid.New(),
		AutomaticPayoutThresholdCents: core.MinAutomaticPayoutThresholdCents,
		CreatedAt:                     now,
		UpdatedAt:                     now,
	}
	t.db.connect[clientID] = a
	return a, nil
}

func (t *transaction) UpdateConnectAccountOAuth(ctx context.Context, account core.ConnectAccount) error {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	existing, ok := t.db.connect[account.ClientID]
	if !ok {
		return core.ErrNotFound
	}
	existing.ExternalUserID = account.ExternalUserID
	existing.CredentialsBlob = account.CredentialsBlob
	existing.AccountDetailsBlob = account.AccountDetailsBlob
	existing.UpdatedAt = time.Now().UTC()
	t.db.connect[account.ClientID] = existing
	return nil
}

func (t *transaction) UpdateConnectAccountPrefs(ctx context.Context, clientID uuid.UUID, enable bool, thresholdCents int64) (core.ConnectAccount, error) {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	existing, ok := t.db.connect[clientID]
	if !ok {
		return core.ConnectAccount{}, core.ErrNotFound
	}
	if thresholdCents < core.MinAutomaticPayoutThresholdCents {
		thresholdCents = core.MinAutomaticPayoutThresholdCents
	}
	existing.EnableAutomaticPayouts = enable
	existing.AutomaticPayoutThresholdCents = thresholdCents
	existing.UpdatedAt = time.Now().UTC()
	t.db.connect[clientID] = existing
	return existing, nil
}

func (t *transaction) InsertConnectTransfer(ctx context.Context, transfer core.ConnectTransfer) error {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	transfer.CreatedAt = time.Now().UTC()
	t.db.transfers = append(t.db.transfers, transfer)
	return nil
}

func (t *transaction) HasRecentConnectTransfer(ctx context.Context, clientID uuid.UUID, since time.Time) (bool, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for _, tr := range t.db.transfers {
		if tr.ClientID == clientID && !tr.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (t *transaction) InsertStripeCharge(ctx context.Context, charge core.StripeCharge) error {
	t.snapshotOnce()
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	charge.CreatedAt = time.Now().UTC()
	t.db.charges = append(t.db.charges, charge)
	return nil
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

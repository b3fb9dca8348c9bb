package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
)

// Transaction is the Postgres-backed implementation of store.Transaction.
type Transaction struct {
	tx *sql.Tx
}

func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return core.NewTransactionError("Commit", "commit failed", err)
	}
	return nil
}

func (t *Transaction) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return core.NewTransactionError("Rollback", "rollback failed", err)
	}
	return nil
}

func (t *Transaction) InsertTransactionPair(ctx context.Context, creditClient, debitClient *uuid.UUID, amountCents int32, reason core.TransactionReason) (int64, error) {
	var creditID int64
	if err := t.tx.QueryRowContext(ctx, `
		INSERT INTO transactions (client_id, kind, reason, amount_cents) VALUES ($1, $2, $3, $4) RETURNING id`,
		nullableUUID(creditClient), core.KindCredit, reason, amountCents).Scan(&creditID); err != nil {
		return 0, core.NewQueryError("InsertTransactionPair", "failed to insert credit entry", err)
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (client_id, kind, reason, amount_cents) VALUES ($1, $2, $3, $4)`,
		nullableUUID(debitClient), core.KindDebit, reason, -amountCents); err != nil {
		return 0, core.NewQueryError("InsertTransactionPair", "failed to insert debit entry", err)
	}
	return creditID, nil
}

func (t *Transaction) sum(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var sum sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, core.NewQueryError("sum", "aggregate query failed", err)
	}
	return sum.Int64, nil
}

func (t *Transaction) SumCredits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sum(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE client_id = $1 AND kind = $2`,
		clientID, core.KindCredit)
}

func (t *Transaction) SumPromoCreditAdded(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sum(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE client_id = $1 AND kind = $2 AND reason = $3`,
		clientID, core.KindPromoCredit, core.ReasonCreditAdded)
}

func (t *Transaction) SumDebits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sum(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE client_id = $1 AND kind = $2`,
		clientID, core.KindDebit)
}

func (t *Transaction) SumMessageReadCredits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sum(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE client_id = $1 AND kind = $2 AND reason = $3`,
		clientID, core.KindCredit, core.ReasonMessageRead)
}

func (t *Transaction) SumPayoutDebits(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return t.sum(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE client_id = $1 AND kind = $2 AND reason = $3`,
		clientID, core.KindDebit, core.ReasonPayout)
}

func (t *Transaction) GetOrCreateBalance(ctx context.Context, clientID uuid.UUID) (core.Balance, error) {
	var b core.Balance
	err := t.tx.QueryRowContext(ctx, `
		SELECT client_id, balance_cents, promo_cents, withdrawable_cents, created_at, updated_at
		FROM balances WHERE client_id = $1`, clientID).
		Scan(&b.ClientID, &b.BalanceCents, &b.PromoCents, &b.WithdrawableCents, &b.CreatedAt, &b.UpdatedAt)
	if err == nil {
		return b, nil
	}
	if err != sql.ErrNoRows {
		return core.Balance{}, core.NewQueryError("GetOrCreateBalance", "scan failed", err)
	}

	now := time.Now().UTC()
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances (client_id, balance_cents, promo_cents, withdrawable_cents, created_at, updated_at)
		VALUES ($1, 0, 0, 0, $2, $2)
		ON CONFLICT (client_id) DO NOTHING`, clientID, now); err != nil {
		return core.Balance{}, core.NewQueryError("GetOrCreateBalance", "insert failed", err)
	}
	return core.Balance{ClientID: clientID, CreatedAt: now, UpdatedAt: now}, nil
}

func (t *Transaction) UpsertBalance(ctx context.Context, balance core.Balance) error {
	now := time.Now().UTC()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances (client_id, balance_cents, promo_cents, withdrawable_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (client_id) DO UPDATE SET
			balance_cents = EXCLUDED.balance_cents,
			promo_cents = EXCLUDED.promo_cents,
			withdrawable_cents = EXCLUDED.withdrawable_cents,
			updated_at = EXCLUDED.updated_at`,
		balance.ClientID, balance.BalanceCents, balance.PromoCents, balance.WithdrawableCents, now)
	if err != nil {
		return core.NewQueryError("UpsertBalance", "upsert failed", err)
	}
	return nil
}

func (t *Transaction) InsertPayment(ctx context.Context, payment core.Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO payments (sender_id, recipient_id, payment_cents, message_hash)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		payment.SenderID, payment.RecipientID, payment.PaymentCents, payment.MessageHashB64).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, core.ErrDuplicatePayment
		}
		return 0, core.NewQueryError("InsertPayment", "insert failed", err)
	}
	return id, nil
}

func (t *Transaction) GetPayment(ctx context.Context, recipientID uuid.UUID, messageHashB64 string) (*core.Payment, error) {
	var p core.Payment
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, sender_id, recipient_id, payment_cents, message_hash, created_at, updated_at
		FROM payments WHERE recipient_id = $1 AND message_hash = $2`, recipientID, messageHashB64).
		Scan(&p.ID, &p.SenderID, &p.RecipientID, &p.PaymentCents, &p.MessageHashB64, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.NewQueryError("GetPayment", "scan failed", err)
	}
	return &p, nil
}

func (t *Transaction) DeletePayment(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
		return core.NewQueryError("DeletePayment", "delete failed", err)
	}
	return nil
}

func (t *Transaction) ListExpiredPayments(ctx context.Context, before time.Time) ([]core.Payment, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, sender_id, recipient_id, payment_cents, message_hash, created_at, updated_at
		FROM payments WHERE created_at < $1 ORDER BY id ASC`, before)
	if err != nil {
		return nil, core.NewQueryError("ListExpiredPayments", "query failed", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var p core.Payment
		if err := rows.Scan(&p.ID, &p.SenderID, &p.RecipientID, &p.PaymentCents, &p.MessageHashB64, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, core.NewQueryError("ListExpiredPayments", "scan failed", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *Transaction) GetOrCreateConnectAccount(ctx context.Context, clientID uuid.UUID) (core.ConnectAccount, error) {
	account, err := scanConnectAccount(ctx, t.tx, clientID)
	if err == nil {
		return *account, nil
	}
	if err != core.ErrNotFound {
		return core.ConnectAccount{}, err
	}

	now := time.Now().UTC()
	nonce := uuid.New()
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO stripe_connect_accounts
			(client_id, oauth_state_nonce, enable_automatic_payouts, automatic_payout_threshold_cents, created_at, updated_at)
		VALUES ($1, $2, false, $3, $4, $4)
		ON CONFLICT (client_id) DO NOTHING`,
		clientID, nonce, core.MinAutomaticPayoutThresholdCents, now); err != nil {
		return core.ConnectAccount{}, core.NewQueryError("GetOrCreateConnectAccount", "insert failed", err)
	}

	created, err := scanConnectAccount(ctx, t.tx, clientID)
	if err != nil {
		return core.ConnectAccount{}, err
	}
	return *created, nil
}

func (t *Transaction) UpdateConnectAccountOAuth(ctx context.Context, account core.ConnectAccount) error {
	credentials, err := encodeBlob(account.CredentialsBlob)
	if err != nil {
		return core.NewQueryError("UpdateConnectAccountOAuth", "failed to encode credentials blob", err)
	}
	accountDetails, err := encodeBlob(account.AccountDetailsBlob)
	if err != nil {
		return core.NewQueryError("UpdateConnectAccountOAuth", "failed to encode account details blob", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE stripe_connect_accounts SET
			external_user_id = $2,
			credentials_blob = $3,
			account_details_blob = $4,
			updated_at = now()
		WHERE client_id = $1`,
		account.ClientID, account.ExternalUserID, credentials, accountDetails)
	if err != nil {
		return core.NewQueryError("UpdateConnectAccountOAuth", "update failed", err)
	}
	return nil
}

func (t *Transaction) UpdateConnectAccountPrefs(ctx context.Context, clientID uuid.UUID, enable bool, thresholdCents int64) (core.ConnectAccount, error) {
	if thresholdCents < core.MinAutomaticPayoutThresholdCents {
		thresholdCents = core.MinAutomaticPayoutThresholdCents
	}
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE stripe_connect_accounts SET
			enable_automatic_payouts = $2,
			automatic_payout_threshold_cents = $3,
			updated_at = now()
		WHERE client_id = $1`, clientID, enable, thresholdCents); err != nil {
		return core.ConnectAccount{}, core.NewQueryError("UpdateConnectAccountPrefs", "update failed", err)
	}
	account, err := scanConnectAccount(ctx, t.tx, clientID)
	if err != nil {
		return core.ConnectAccount{}, err
	}
	return *account, nil
}

func (t *Transaction) InsertConnectTransfer(ctx context.Context, transfer core.ConnectTransfer) error {
	blob, err := encodeBlob(transfer.ResponseBlob)
	if err != nil {
		return core.NewQueryError("InsertConnectTransfer", "failed to encode response blob", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO stripe_connect_transfers (client_id, external_user_id, response_blob, amount_cents)
		VALUES ($1, $2, $3, $4)`,
		transfer.ClientID, transfer.ExternalUserID, blob, transfer.AmountCents)
	if err != nil {
		return core.NewQueryError("InsertConnectTransfer", "insert failed", err)
	}
	return nil
}

func (t *Transaction) HasRecentConnectTransfer(ctx context.Context, clientID uuid.UUID, since time.Time) (bool, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM stripe_connect_transfers WHERE client_id = $1 AND created_at >= $2`,
		clientID, since).Scan(&count)
	if err != nil {
		return false, core.NewQueryError("HasRecentConnectTransfer", "query failed", err)
	}
	return count > 0, nil
}

func (t *Transaction) InsertStripeCharge(ctx context.Context, charge core.StripeCharge) error {
	blob, err := encodeBlob(charge.ResponseBlob)
	if err != nil {
		return core.NewQueryError("InsertStripeCharge", "failed to encode response blob", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO stripe_charges (client_id, response_blob, ledger_entry_id) VALUES ($1, $2, $3)`,
		charge.ClientID, blob, nullableID(charge.LedgerEntryID))
	if err != nil {
		return core.NewQueryError("InsertStripeCharge", "insert failed", err)
	}
	return nil
}

func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// nullableID maps the zero sentinel (no ledger entry, e.g. a declined
// charge) to SQL NULL; ids are otherwise always positive (BIGSERIAL).
func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

func isUniqueViolation(err error) bool {
	return err != nil && (contains(err.Error(), "unique") || contains(err.Error(), "duplicate"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

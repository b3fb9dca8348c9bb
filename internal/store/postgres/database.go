// Package postgres implements internal/store's Database/Transaction
// interfaces against PostgreSQL, adapted from the teacher's
// internal/storage/relationaldb/postgres package (same Open/initSchema/
// Begin shape, generalized from ledger tables to BeanCounter's
// accounting tables).
package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	client_id UUID NULL,
	kind TEXT NOT NULL,
	reason TEXT NOT NULL,
	amount_cents INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_client_id ON transactions (client_id);
CREATE INDEX IF NOT EXISTS idx_transactions_client_kind_reason ON transactions (client_id, kind, reason);

CREATE TABLE IF NOT EXISTS balances (
	client_id UUID PRIMARY KEY,
	balance_cents BIGINT NOT NULL DEFAULT 0,
	promo_cents BIGINT NOT NULL DEFAULT 0,
	withdrawable_cents BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS payments (
	id BIGSERIAL PRIMARY KEY,
	sender_id UUID NOT NULL,
	recipient_id UUID NOT NULL,
	payment_cents INTEGER NOT NULL,
	message_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (recipient_id, message_hash)
);
CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments (created_at);

CREATE TABLE IF NOT EXISTS stripe_connect_accounts (
	client_id UUID PRIMARY KEY,
	oauth_state_nonce UUID NOT NULL,
	external_user_id TEXT NULL,
	credentials_blob BYTEA NULL,
	account_details_blob BYTEA NULL,
	enable_automatic_payouts BOOLEAN NOT NULL DEFAULT false,
	automatic_payout_threshold_cents BIGINT NOT NULL DEFAULT 10000,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stripe_connect_transfers (
	id BIGSERIAL PRIMARY KEY,
	client_id UUID NOT NULL,
	external_user_id TEXT NOT NULL,
	response_blob BYTEA NULL,
	amount_cents BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_connect_transfers_client_created ON stripe_connect_transfers (client_id, created_at);

CREATE TABLE IF NOT EXISTS stripe_charges (
	id BIGSERIAL PRIMARY KEY,
	client_id UUID NOT NULL,
	response_blob BYTEA NULL,
	ledger_entry_id BIGINT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Database is the Postgres-backed implementation of store.Database.
type Database struct {
	db     *sql.DB
	config *store.Config
}

// NewDatabase validates config and returns an unopened Database.
func NewDatabase(config *store.Config) (store.Database, error) {
	if config == nil {
		return nil, core.NewConnectionError("NewDatabase", "config is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, core.NewConnectionError("NewDatabase", "invalid config", err)
	}
	return &Database{config: config}, nil
}

func (d *Database) Open(ctx context.Context) error {
	connStr, err := d.config.BuildConnectionString()
	if err != nil {
		return core.NewConnectionError("Open", "failed to build connection string", err)
	}

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return core.NewConnectionError("Open", "failed to open connection", err)
	}

	sqlDB.SetMaxOpenConns(d.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(d.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(d.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(d.config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, d.config.DefaultTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return core.NewConnectionError("Open", "failed to ping database", err)
	}

	d.db = sqlDB
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return core.NewSchemaError("Open", "failed to initialize schema", err)
	}
	return nil
}

func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	if d.db == nil {
		return core.NewConnectionError("Ping", "database is closed", nil)
	}
	return d.db.PingContext(ctx)
}

func (d *Database) Begin(ctx context.Context) (store.Transaction, error) {
	if d.db == nil {
		return nil, core.NewConnectionError("Begin", "database is closed", nil)
	}
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, core.NewTransactionError("Begin", "failed to start transaction", err)
	}
	return &Transaction{tx: tx}, nil
}

func (d *Database) GetConnectAccount(ctx context.Context, clientID uuid.UUID) (*core.ConnectAccount, error) {
	if d.db == nil {
		return nil, core.NewConnectionError("GetConnectAccount", "database is closed", nil)
	}
	return scanConnectAccount(ctx, d.db, clientID)
}

func (d *Database) GetBalance(ctx context.Context, clientID uuid.UUID) (*core.Balance, error) {
	if d.db == nil {
		return nil, core.NewConnectionError("GetBalance", "database is closed", nil)
	}
	row := d.db.QueryRowContext(ctx, `
		SELECT client_id, balance_cents, promo_cents, withdrawable_cents, created_at, updated_at
		FROM balances WHERE client_id = $1`, clientID)

	var b core.Balance
	err := row.Scan(&b.ClientID, &b.BalanceCents, &b.PromoCents, &b.WithdrawableCents, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.NewQueryError("GetBalance", "failed to scan balance", err)
	}
	return &b, nil
}

func (d *Database) ListAutomaticPayoutCandidates(ctx context.Context, lookback time.Duration) ([]uuid.UUID, error) {
	if d.db == nil {
		return nil, core.NewConnectionError("ListAutomaticPayoutCandidates", "database is closed", nil)
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT b.client_id
		FROM balances b
		JOIN stripe_connect_accounts a ON a.client_id = b.client_id
		WHERE b.withdrawable_cents >= a.automatic_payout_threshold_cents
		  AND a.enable_automatic_payouts = true
		  AND a.external_user_id IS NOT NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM stripe_connect_transfers t
		      WHERE t.client_id = b.client_id AND t.created_at >= $1
		  )`, time.Now().Add(-lookback))
	if err != nil {
		return nil, core.NewQueryError("ListAutomaticPayoutCandidates", "query failed", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, core.NewQueryError("ListAutomaticPayoutCandidates", "scan failed", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (d *Database) ListTransactions(ctx context.Context, clientID uuid.UUID) ([]core.Transaction, error) {
	if d.db == nil {
		return nil, core.NewConnectionError("ListTransactions", "database is closed", nil)
	}
	return listTransactions(ctx, d.db, clientID)
}

// querier is the subset of *sql.DB / *sql.Tx used by shared read helpers.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func listTransactions(ctx context.Context, q querier, clientID uuid.UUID) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, created_at, client_id, kind, reason, amount_cents
		FROM transactions WHERE client_id = $1 ORDER BY id ASC`, clientID)
	if err != nil {
		return nil, core.NewQueryError("ListTransactions", "query failed", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var clientID sql.NullString
		if err := rows.Scan(&t.ID, &t.CreatedAt, &clientID, &t.Kind, &t.Reason, &t.AmountCents); err != nil {
			return nil, core.NewQueryError("ListTransactions", "scan failed", err)
		}
		if clientID.Valid {
			id, err := uuid.Parse(clientID.String)
			if err != nil {
				return nil, core.NewQueryError("ListTransactions", "invalid stored client id", err)
			}
			t.ClientID = &id
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanConnectAccount(ctx context.Context, q querier, clientID uuid.UUID) (*core.ConnectAccount, error) {
	row := q.QueryRowContext(ctx, `
		SELECT client_id, oauth_state_nonce, external_user_id, credentials_blob, account_details_blob,
		       enable_automatic_payouts, automatic_payout_threshold_cents, created_at, updated_at
		FROM stripe_connect_accounts WHERE client_id = $1`, clientID)

	var a core.ConnectAccount
	var externalUserID sql.NullString
	var credentials, accountDetails []byte
	err := row.Scan(&a.ClientID, &a.OAuthStateNonce, &externalUserID, &credentials, &accountDetails,
		&a.EnableAutomaticPayouts, &a.AutomaticPayoutThresholdCents, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.NewQueryError("GetConnectAccount", "scan failed", err)
	}
	if externalUserID.Valid {
		a.ExternalUserID = &externalUserID.String
	}
	if err := decodeBlob(credentials, &a.CredentialsBlob); err != nil {
		return nil, core.NewQueryError("GetConnectAccount", "failed to decode credentials blob", err)
	}
	if err := decodeBlob(accountDetails, &a.AccountDetailsBlob); err != nil {
		return nil, core.NewQueryError("GetConnectAccount", "failed to decode account details blob", err)
	}
	return &a, nil
}

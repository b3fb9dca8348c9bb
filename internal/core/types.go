// Package core holds the domain types, error taxonomy, and the
// explicit Services value shared across BeanCounter's ledger, payment,
// top-up, connect, and sweep components.
package core

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind is the sign-discipline tag on a ledger entry.
type TransactionKind string

const (
	KindDebit       TransactionKind = "debit"
	KindCredit      TransactionKind = "credit"
	KindPromoCredit TransactionKind = "promo_credit"
)

// TransactionReason identifies why a ledger entry was appended.
type TransactionReason string

const (
	ReasonMessageRead   TransactionReason = "message_read"
	ReasonMessageUnread TransactionReason = "message_unread"
	ReasonMessageSent   TransactionReason = "message_sent"
	ReasonCreditAdded   TransactionReason = "credit_added"
	ReasonPayout        TransactionReason = "payout"
)

// Transaction is an immutable double-entry ledger row. ClientID is nil
// for the platform (cash) side of a pair.
type Transaction struct {
	ID          int64
	CreatedAt   time.Time
	ClientID    *uuid.UUID
	Kind        TransactionKind
	Reason      TransactionReason
	AmountCents int32
}

// Balance is the projected per-client balance state, derived from the
// transaction log per the algorithm in internal/ledger.
type Balance struct {
	ClientID          uuid.UUID
	BalanceCents      int64
	PromoCents        int64
	WithdrawableCents int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Payment is an outstanding escrowed message payment.
type Payment struct {
	ID             int64
	SenderID       uuid.UUID
	RecipientID    uuid.UUID
	PaymentCents   int32
	MessageHashB64 string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConnectAccount is a client's link to the external payout platform.
type ConnectAccount struct {
	ClientID                      uuid.UUID
	OAuthStateNonce               uuid.UUID
	ExternalUserID                *string
	CredentialsBlob               []byte
	AccountDetailsBlob            []byte
	EnableAutomaticPayouts        bool
	AutomaticPayoutThresholdCents int64
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
}

// MinAutomaticPayoutThresholdCents is the floor preferences are clamped to.
const MinAutomaticPayoutThresholdCents = 10_000

// ConnectTransfer records a single payout attempt's processor response.
type ConnectTransfer struct {
	ID             int64
	ClientID       uuid.UUID
	ExternalUserID string
	ResponseBlob   []byte
	AmountCents    int64
	CreatedAt      time.Time
}

// StripeCharge records a single top-up attempt's processor response.
// LedgerEntryID is the id of the Credit ledger entry the charge
// produced, recorded as audit metadata per spec.md §4.3 step 3; it is
// zero for a declined charge, which never reaches the ledger write.
type StripeCharge struct {
	ID            int64
	ClientID      uuid.UUID
	ResponseBlob  []byte
	LedgerEntryID int64
	CreatedAt     time.Time
}

// MaxPaymentAmount is the processor-specific charge ceiling applied to
// AddPayment's payment_cents+fee_cents total only (see SPEC_FULL.md §13 OQ3).
const MaxPaymentAmount = 96_246_360

// ExpiryAge is the age after which an outstanding payment is refunded
// by the expiry sweep.
const ExpiryAge = 30 * 24 * time.Hour

// AutomaticPayoutLookback is the window within which a prior
// Connect-transfer suppresses a new automatic payout for a client.
const AutomaticPayoutLookback = 24 * time.Hour

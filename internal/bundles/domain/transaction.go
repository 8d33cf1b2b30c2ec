package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a payment attempt.
type TransactionStatus string

const (
	// StatusPending: row created, push request not yet submitted.
	StatusPending TransactionStatus = "pending"
	// StatusAwaitingConfirmation: push accepted by the provider, waiting for
	// the asynchronous callback.
	StatusAwaitingConfirmation TransactionStatus = "awaiting_confirmation"
	// StatusPendingVerification: manual payment recorded, waiting for a human
	// to verify the quoted provider code.
	StatusPendingVerification TransactionStatus = "pending_verification"
	// StatusCompleted and StatusFailed are terminal.
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transitions may leave the status.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine permits moving from s to
// the given status.
func (s TransactionStatus) CanTransitionTo(to TransactionStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusAwaitingConfirmation || to == StatusFailed
	case StatusAwaitingConfirmation:
		return to == StatusCompleted || to == StatusFailed
	case StatusPendingVerification:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Transaction is one mobile-money payment attempt for a data bundle.
// Amount is copied from the catalog at creation time and never re-read, so a
// later price change cannot alter an in-flight purchase.
type Transaction struct {
	ID                string            `json:"id"`
	PayerPhone        string            `json:"payer_phone"`
	RecipientPhone    string            `json:"recipient_phone"`
	BundleID          int               `json:"package_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            TransactionStatus `json:"status"`
	ProviderReference *string           `json:"provider_reference,omitempty"`
	ReceiptReference  *string           `json:"receipt_reference,omitempty"`
	StatusDetail      string            `json:"status_detail,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// transactionIDPrefix identifies ids issued by this service. The full id is
// the client-visible idempotency key.
const transactionIDPrefix = "BNDL"

// NewTransactionID generates a transaction id of the form
// BNDL-<timestamp>-<random-hex>. Collisions are astronomically rare but the
// store still reports them so callers can regenerate.
func NewTransactionID(now time.Time) string {
	buf := make([]byte, 3)
	// rand.Read on the crypto source only fails if the OS entropy pool is
	// broken, in which case the process has bigger problems.
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%s-%s",
		transactionIDPrefix,
		now.Format("20060102150405"),
		strings.ToUpper(hex.EncodeToString(buf)),
	)
}

// Stats is an aggregate snapshot over all transactions, served by the stats
// endpoint for ops visibility.
type Stats struct {
	TotalTransactions     int64           `json:"total_transactions"`
	TodayTransactions     int64           `json:"today_transactions"`
	CompletedTransactions int64           `json:"completed_transactions"`
	PendingTransactions   int64           `json:"pending_transactions"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
}

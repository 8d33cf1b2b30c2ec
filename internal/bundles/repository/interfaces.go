package repository

import (
	"context"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
)

// TransactionRepository is the single source of truth for payment attempts.
// Terminal writes (Complete*/Fail*) are idempotent: applying the same
// terminal update to an already-terminal row is a no-op that returns the
// existing row with transitioned=false.
type TransactionRepository interface {
	// CreateWithDailyLimit inserts a PENDING (or PENDING_VERIFICATION) row,
	// atomically rejecting with domain.ErrDailyLimitReached if the payer
	// already has a completed purchase today. The check and the insert run
	// inside one serialized unit per payer phone.
	CreateWithDailyLimit(ctx context.Context, txn *domain.Transaction) error

	// SetProviderReference records the gateway's reference for a pending row
	// and advances it to AWAITING_CONFIRMATION.
	SetProviderReference(ctx context.Context, txID, providerRef string) error

	// MarkSubmissionFailed moves a non-terminal row to FAILED with the
	// classified submission failure as detail.
	MarkSubmissionFailed(ctx context.Context, txID, reason string) error

	CompleteByProviderReference(ctx context.Context, providerRef, receipt, detail string) (txn *domain.Transaction, transitioned bool, err error)
	FailByProviderReference(ctx context.Context, providerRef, detail string) (txn *domain.Transaction, transitioned bool, err error)

	// CompleteByID and FailByID are the fallback reconciliation path for
	// callbacks that carry the client-supplied reference instead of the
	// provider's own.
	CompleteByID(ctx context.Context, id, receipt, detail string) (txn *domain.Transaction, transitioned bool, err error)
	FailByID(ctx context.Context, id, detail string) (txn *domain.Transaction, transitioned bool, err error)

	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByProviderReference(ctx context.Context, providerRef string) (*domain.Transaction, error)

	Stats(ctx context.Context) (*domain.Stats, error)
}

// BundleRepository reads the data-bundle catalog.
type BundleRepository interface {
	// ListActive returns active bundles ordered by ascending price.
	ListActive(ctx context.Context) ([]domain.Bundle, error)
	GetByID(ctx context.Context, id int) (*domain.Bundle, error)
}

// AuditRepository appends to the audit log. No reads, updates or deletes.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
}

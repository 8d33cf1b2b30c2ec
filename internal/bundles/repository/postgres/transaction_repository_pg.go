package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
	"github.com/bingwasokoni/bundles/internal/bundles/repository"
)

const transactionColumns = `id, payer_phone, recipient_phone, bundle_id, amount, status,
	provider_reference, receipt_reference, status_detail, created_at, updated_at, completed_at`

type PgTransactionRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgTransactionRepository(db *pgxpool.Pool, logger *slog.Logger) repository.TransactionRepository {
	return &PgTransactionRepository{db: db, logger: logger.With("component", "transaction_repository_pg")}
}

// CreateWithDailyLimit serializes the has-completed-today check and the
// insert per payer phone with a transaction-scoped advisory lock, so two
// concurrent requests from the same line cannot both pass the check.
func (r *PgTransactionRepository) CreateWithDailyLimit(ctx context.Context, txn *domain.Transaction) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, txn.PayerPhone); err != nil {
			return fmt.Errorf("acquiring payer lock: %w", err)
		}

		var completedToday bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM transactions
				WHERE payer_phone = $1
				  AND status = $2
				  AND created_at::date = CURRENT_DATE
			)`, txn.PayerPhone, domain.StatusCompleted,
		).Scan(&completedToday)
		if err != nil {
			return fmt.Errorf("checking daily limit: %w", err)
		}
		if completedToday {
			return domain.ErrDailyLimitReached
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (id, payer_phone, recipient_phone, bundle_id, amount, status,
			                          provider_reference, receipt_reference, status_detail,
			                          created_at, updated_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			txn.ID, txn.PayerPhone, txn.RecipientPhone, txn.BundleID, txn.Amount, txn.Status,
			txn.ProviderReference, txn.ReceiptReference, txn.StatusDetail,
			txn.CreatedAt, txn.UpdatedAt, txn.CompletedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrDuplicateTransactionID
			}
			return fmt.Errorf("inserting transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDailyLimitReached) || errors.Is(err, domain.ErrDuplicateTransactionID) {
			return err
		}
		r.logger.ErrorContext(ctx, "failed to create transaction", "error", err, "transaction_id", txn.ID)
		return err
	}
	return nil
}

func (r *PgTransactionRepository) SetProviderReference(ctx context.Context, txID, providerRef string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET provider_reference = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		txID, providerRef, domain.StatusAwaitingConfirmation, domain.StatusPending,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateProviderReference
		}
		r.logger.ErrorContext(ctx, "failed to set provider reference", "error", err, "transaction_id", txID)
		return fmt.Errorf("setting provider reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *PgTransactionRepository) MarkSubmissionFailed(ctx context.Context, txID, reason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = $2, status_detail = $3, updated_at = now()
		WHERE id = $1 AND status IN ($4, $5)`,
		txID, domain.StatusFailed, reason, domain.StatusPending, domain.StatusAwaitingConfirmation,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to mark submission failed", "error", err, "transaction_id", txID)
		return fmt.Errorf("marking submission failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *PgTransactionRepository) CompleteByProviderReference(ctx context.Context, providerRef, receipt, detail string) (*domain.Transaction, bool, error) {
	return r.complete(ctx, "provider_reference", providerRef, receipt, detail)
}

func (r *PgTransactionRepository) FailByProviderReference(ctx context.Context, providerRef, detail string) (*domain.Transaction, bool, error) {
	return r.fail(ctx, "provider_reference", providerRef, detail)
}

func (r *PgTransactionRepository) CompleteByID(ctx context.Context, id, receipt, detail string) (*domain.Transaction, bool, error) {
	return r.complete(ctx, "id", id, receipt, detail)
}

func (r *PgTransactionRepository) FailByID(ctx context.Context, id, detail string) (*domain.Transaction, bool, error) {
	return r.fail(ctx, "id", id, detail)
}

// complete applies the terminal COMPLETED update. The status guard makes the
// write idempotent: a duplicate callback finds no non-terminal row, and the
// existing final state is returned untouched.
func (r *PgTransactionRepository) complete(ctx context.Context, keyColumn, key, receipt, detail string) (*domain.Transaction, bool, error) {
	query := fmt.Sprintf(`
		UPDATE transactions
		SET status = $2, receipt_reference = $3, status_detail = $4,
		    completed_at = now(), updated_at = now()
		WHERE %s = $1 AND status NOT IN ($5, $6)
		RETURNING %s`, keyColumn, transactionColumns)

	row := r.db.QueryRow(ctx, query, key, domain.StatusCompleted, receipt, detail,
		domain.StatusCompleted, domain.StatusFailed)
	txn, err := scanTransaction(row)
	if err == nil {
		return txn, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.ErrorContext(ctx, "failed to complete transaction", "error", err, keyColumn, key)
		return nil, false, fmt.Errorf("completing transaction: %w", err)
	}
	return r.existingTerminal(ctx, keyColumn, key)
}

func (r *PgTransactionRepository) fail(ctx context.Context, keyColumn, key, detail string) (*domain.Transaction, bool, error) {
	query := fmt.Sprintf(`
		UPDATE transactions
		SET status = $2, status_detail = $3, updated_at = now()
		WHERE %s = $1 AND status NOT IN ($4, $5)
		RETURNING %s`, keyColumn, transactionColumns)

	row := r.db.QueryRow(ctx, query, key, domain.StatusFailed, detail,
		domain.StatusCompleted, domain.StatusFailed)
	txn, err := scanTransaction(row)
	if err == nil {
		return txn, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.ErrorContext(ctx, "failed to fail transaction", "error", err, keyColumn, key)
		return nil, false, fmt.Errorf("failing transaction: %w", err)
	}
	return r.existingTerminal(ctx, keyColumn, key)
}

// existingTerminal resolves the no-rows case of a terminal update: either
// the row is already terminal (benign duplicate) or it does not exist.
func (r *PgTransactionRepository) existingTerminal(ctx context.Context, keyColumn, key string) (*domain.Transaction, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s = $1`, transactionColumns, keyColumn)
	txn, err := scanTransaction(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrTransactionNotFound
		}
		return nil, false, fmt.Errorf("looking up transaction: %w", err)
	}
	return txn, false, nil
}

func (r *PgTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PgTransactionRepository) GetByProviderReference(ctx context.Context, providerRef string) (*domain.Transaction, error) {
	return r.getBy(ctx, "provider_reference", providerRef)
}

func (r *PgTransactionRepository) getBy(ctx context.Context, keyColumn, key string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s = $1`, transactionColumns, keyColumn)
	txn, err := scanTransaction(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		r.logger.ErrorContext(ctx, "failed to get transaction", "error", err, keyColumn, key)
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return txn, nil
}

func (r *PgTransactionRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{}
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COALESCE(SUM(amount) FILTER (WHERE status = $1), 0)
		FROM transactions`,
		domain.StatusCompleted, domain.StatusPending,
	).Scan(
		&stats.TotalTransactions, &stats.TodayTransactions,
		&stats.CompletedTransactions, &stats.PendingTransactions,
		&stats.TotalRevenue,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to compute stats", "error", err)
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	return stats, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var txn domain.Transaction
	var providerRef, receiptRef sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&txn.ID, &txn.PayerPhone, &txn.RecipientPhone, &txn.BundleID, &txn.Amount, &txn.Status,
		&providerRef, &receiptRef, &txn.StatusDetail, &txn.CreatedAt, &txn.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if providerRef.Valid {
		txn.ProviderReference = &providerRef.String
	}
	if receiptRef.Valid {
		txn.ReceiptReference = &receiptRef.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		txn.CompletedAt = &t
	}
	return &txn, nil
}

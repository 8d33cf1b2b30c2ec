package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
	"github.com/bingwasokoni/bundles/internal/bundles/repository"
)

type PgAuditRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgAuditRepository(db *pgxpool.Pool, logger *slog.Logger) repository.AuditRepository {
	return &PgAuditRepository{db: db, logger: logger.With("component", "audit_repository_pg")}
}

func (r *PgAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Action, entry.Details, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to append audit entry", "error", err, "action", entry.Action)
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

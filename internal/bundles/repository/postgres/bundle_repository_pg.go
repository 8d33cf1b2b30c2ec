package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
	"github.com/bingwasokoni/bundles/internal/bundles/repository"
)

type PgBundleRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgBundleRepository(db *pgxpool.Pool, logger *slog.Logger) repository.BundleRepository {
	return &PgBundleRepository{db: db, logger: logger.With("component", "bundle_repository_pg")}
}

func (r *PgBundleRepository) ListActive(ctx context.Context) ([]domain.Bundle, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, size, price, validity, description, is_active, created_at
		FROM bundles
		WHERE is_active
		ORDER BY price ASC`)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list bundles", "error", err)
		return nil, fmt.Errorf("listing active bundles: %w", err)
	}
	defer rows.Close()

	var bundles []domain.Bundle
	for rows.Next() {
		var b domain.Bundle
		if err := rows.Scan(&b.ID, &b.Size, &b.Price, &b.Validity, &b.Description, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *PgBundleRepository) GetByID(ctx context.Context, id int) (*domain.Bundle, error) {
	var b domain.Bundle
	err := r.db.QueryRow(ctx, `
		SELECT id, size, price, validity, description, is_active, created_at
		FROM bundles WHERE id = $1`, id,
	).Scan(&b.ID, &b.Size, &b.Price, &b.Validity, &b.Description, &b.IsActive, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBundleNotFound
		}
		r.logger.ErrorContext(ctx, "failed to get bundle", "error", err, "bundle_id", id)
		return nil, fmt.Errorf("getting bundle: %w", err)
	}
	return &b, nil
}

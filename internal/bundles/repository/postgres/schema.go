package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
)

// schemaStatements create the tables and indexes if they do not exist yet.
// The partial unique index on provider_reference enforces the invariant that
// non-empty references are unique across transactions.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bundles (
		id INT PRIMARY KEY,
		size TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		validity TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		payer_phone TEXT NOT NULL,
		recipient_phone TEXT NOT NULL,
		bundle_id INT NOT NULL REFERENCES bundles(id),
		amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		provider_reference TEXT,
		receipt_reference TEXT,
		status_detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_provider_ref
		ON transactions (provider_reference)
		WHERE provider_reference IS NOT NULL AND provider_reference <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_payer ON transactions (payer_phone)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions (created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id UUID PRIMARY KEY,
		action TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the schema and seeds the bundle catalog. Both are
// idempotent so the service can run them unconditionally at startup.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}

	const seed = `
		INSERT INTO bundles (id, size, price, validity, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	for _, b := range domain.SeedBundles() {
		if _, err := db.Exec(ctx, seed, b.ID, b.Size, b.Price, b.Validity, b.Description); err != nil {
			return fmt.Errorf("seeding bundle %d: %w", b.ID, err)
		}
	}

	logger.InfoContext(ctx, "database schema ensured", "bundles_seeded", len(domain.SeedBundles()))
	return nil
}

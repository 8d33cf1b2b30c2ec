package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bundle is a purchasable data offer. The catalog is seeded at startup and
// read-only afterwards; bundles are deactivated rather than deleted because
// transactions reference them.
type Bundle struct {
	ID          int             `json:"id"`
	Size        string          `json:"size"`
	Price       decimal.Decimal `json:"price"`
	Validity    string          `json:"validity"`
	Description string          `json:"description"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SeedBundles is the default catalog, matching the offers sold at launch.
func SeedBundles() []Bundle {
	return []Bundle{
		{ID: 1, Size: "1.25 GB", Price: decimal.NewFromInt(55), Validity: "midnight", Description: "Valid till midnight"},
		{ID: 2, Size: "250 MB", Price: decimal.NewFromInt(20), Validity: "24hrs", Description: "Valid 24 hours"},
		{ID: 3, Size: "1.5 GB", Price: decimal.NewFromInt(49), Validity: "3hrs", Description: "Valid 3 hours"},
		{ID: 4, Size: "1 GB", Price: decimal.NewFromInt(19), Validity: "1hr", Description: "Valid 1 hour"},
		{ID: 5, Size: "1 GB", Price: decimal.NewFromInt(99), Validity: "24hrs", Description: "Valid 24 hours"},
	}
}

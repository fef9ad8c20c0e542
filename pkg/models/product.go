package models

import (
	"time"

	"github.com/lib/pq"
)

// CanonicalProduct is the catalog entity a listing may attach to.
// IDs are owned by the storage layer; the engine only proposes new products.
type CanonicalProduct struct {
	ID         string         `json:"id" db:"id"`
	Title      string         `json:"title" db:"title"`
	Brand      string         `json:"brand" db:"brand"`
	Model      string         `json:"model" db:"model"`
	CategoryID *string        `json:"category_id,omitempty" db:"category_id"`
	Keywords   pq.StringArray `json:"keywords" db:"keywords"`
	IsActive   bool           `json:"is_active" db:"is_active"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ProductGroup is one canonical product cluster with all its live listings,
// built at query time for price-comparison views. Never cached by the engine.
type ProductGroup struct {
	Product       CanonicalProduct `json:"product"`
	ClusterIDs    []string         `json:"cluster_ids"`
	Listings      []Listing        `json:"listings"`
	MinPrice      *float64         `json:"min_price,omitempty"`
	MaxPrice      *float64         `json:"max_price,omitempty"`
	Sources       []string         `json:"sources"`
	VerifiedCount int              `json:"verified_count"`
}

// GroupFilters narrows the listings included in a product group.
type GroupFilters struct {
	VerifiedOnly bool     `json:"verified_only"`
	Platforms    []string `json:"platforms,omitempty"`
}

// AllowsPlatform reports whether a listing source passes the platform allow-list.
func (f GroupFilters) AllowsPlatform(source string) bool {
	if len(f.Platforms) == 0 {
		return true
	}
	for _, p := range f.Platforms {
		if p == source {
			return true
		}
	}
	return false
}

package models

import (
	"time"
)

// ListingInput is the raw signal from a scrape or import. It is immutable
// input to the matcher and is never mutated by the engine.
type ListingInput struct {
	Title       string   `json:"title" validate:"required,max=500"`
	Description string   `json:"description,omitempty"`
	BrandHint   string   `json:"brand_hint,omitempty"`
	ModelHint   string   `json:"model_hint,omitempty"`
	Source      string   `json:"source" validate:"required"`
	ExternalID  string   `json:"external_id,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
	CategoryID  *string  `json:"category_id,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	SellerName  string   `json:"seller_name,omitempty"`
	Verified    bool     `json:"verified_seller,omitempty"`
}

// Listing is a stored live listing attached to a canonical product.
type Listing struct {
	ID          string     `json:"id" db:"id"`
	ProductID   string     `json:"product_id" db:"product_id"`
	Source      string     `json:"source" db:"source"`
	ExternalID  string     `json:"external_id" db:"external_id"`
	ExternalURL string     `json:"external_url" db:"external_url"`
	Title       string     `json:"title" db:"title"`
	Price       *float64   `json:"price,omitempty" db:"price"`
	SellerName  string     `json:"seller_name" db:"seller_name"`
	Verified    bool       `json:"verified_seller" db:"verified_seller"`
	Fingerprint string     `json:"fingerprint" db:"fingerprint"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// NormalizedSignal is derived from a ListingInput on every match attempt.
// It is ephemeral and never persisted by the engine.
type NormalizedSignal struct {
	Title       string
	Description string
	Brand       string
	Model       string
	CategoryID  *string
	Source      string
	Keywords    []string
}

// HasBrand reports whether brand extraction produced a usable brand token.
func (s *NormalizedSignal) HasBrand() bool {
	return s.Brand != "" && s.Brand != BrandUnknown
}

// BrandUnknown is the marker used when no dictionary brand was found.
const BrandUnknown = "unknown"

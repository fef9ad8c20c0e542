// Package listing persists live marketplace listings.
package listing

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/internal/platform/database"
	"github.com/pricewatch/catalog/internal/platform/tracing"
	"github.com/pricewatch/catalog/pkg/models"
)

var columns = []string{"id", "product_id", "source", "external_id", "external_url", "title", "price", "seller_name", "verified_seller", "fingerprint", "is_active", "created_at", "updated_at", "deleted_at"}

// Repository handles listing persistence. It implements matching.ListingStore.
type Repository struct {
	db     database.DB
	logger *zap.Logger
}

// NewRepository creates a new listing repository
func NewRepository(db database.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetBySourceExternal returns the stored listing sharing (source, externalID)
// or (source, externalURL) with an incoming scrape, or nil when none exists.
// This powers the duplicate short-circuit in the match engine.
func (r *Repository) GetBySourceExternal(ctx context.Context, source, externalID, externalURL string) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.GetBySourceExternal")
	defer span.End()

	if externalID == "" && externalURL == "" {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("listings")

	var identity []string
	if externalID != "" {
		identity = append(identity, sb.Equal("external_id", externalID))
	}
	if externalURL != "" {
		identity = append(identity, sb.Equal("external_url", externalURL))
	}

	sb.Where(
		sb.Equal("source", source),
		sb.Or(identity...),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.Error("failed to look up listing by source/external",
			zap.String("source", source),
			zap.Error(err),
		)
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up listing")
	}

	return &listing, nil
}

// Upsert inserts a listing or updates the stored row when the engine passes
// one back with an id.
func (r *Repository) Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	listing.UpdatedAt = now

	if listing.ID != "" {
		sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		sb.Update("listings")
		sb.Set(
			sb.Assign("product_id", listing.ProductID),
			sb.Assign("title", listing.Title),
			sb.Assign("price", listing.Price),
			sb.Assign("seller_name", listing.SellerName),
			sb.Assign("verified_seller", listing.Verified),
			sb.Assign("fingerprint", listing.Fingerprint),
			sb.Assign("is_active", listing.IsActive),
			sb.Assign("updated_at", listing.UpdatedAt),
		)
		sb.Where(sb.Equal("id", listing.ID))

		query, args := sb.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.Error("failed to update listing", zap.String("listing_id", listing.ID), zap.Error(err))
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update listing")
		}
		return listing, nil
	}

	listing.ID = uuid.New().String()
	listing.CreatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("listings")
	sb.Cols("id", "product_id", "source", "external_id", "external_url", "title", "price", "seller_name", "verified_seller", "fingerprint", "is_active", "created_at", "updated_at")
	sb.Values(listing.ID, listing.ProductID, listing.Source, listing.ExternalID, listing.ExternalURL, listing.Title, listing.Price, listing.SellerName, listing.Verified, listing.Fingerprint, listing.IsActive, listing.CreatedAt, listing.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to insert listing", zap.String("listing_id", listing.ID), zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert listing")
	}

	return listing, nil
}

// ListByProducts returns the active listings for a set of product ids in one
// batch, most recent first.
func (r *Repository) ListByProducts(ctx context.Context, productIDs []string) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListByProducts")
	defer span.End()

	if len(productIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(productIDs))
	for _, id := range productIDs {
		ids = append(ids, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("listings")
	sb.Where(
		sb.In("product_id", ids...),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("updated_at DESC")

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.Error("failed to list listings by products", zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}

	return listings, nil
}

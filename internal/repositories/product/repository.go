// Package product persists canonical catalog products.
package product

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/internal/platform/database"
	"github.com/pricewatch/catalog/internal/platform/tracing"
	"github.com/pricewatch/catalog/pkg/matching"
	"github.com/pricewatch/catalog/pkg/models"
)

var columns = []string{"id", "title", "brand", "model", "category_id", "keywords", "is_active", "created_at", "updated_at", "deleted_at"}

// Repository handles canonical product persistence. It implements
// matching.ProductStore.
type Repository struct {
	db     database.DB
	logger *zap.Logger
}

// NewRepository creates a new product repository
func NewRepository(db database.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create stores a proposed canonical product. The id is assigned here if the
// engine did not set one.
func (r *Repository) Create(ctx context.Context, product *models.CanonicalProduct) (*models.CanonicalProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Create")
	defer span.End()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	product.CreatedAt = time.Now().UTC()
	product.UpdatedAt = product.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("products")
	sb.Cols("id", "title", "brand", "model", "category_id", "keywords", "is_active", "created_at", "updated_at")
	sb.Values(product.ID, product.Title, product.Brand, product.Model, product.CategoryID, pq.Array(product.Keywords), product.IsActive, product.CreatedAt, product.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create product", zap.String("product_id", product.ID), zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create product")
	}

	return product, nil
}

// Get retrieves a product by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.CanonicalProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("products")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var product models.CanonicalProduct
	if err := r.db.GetContext(ctx, &product, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "product "+id+" not found")
		}
		r.logger.Error("failed to get product", zap.String("product_id", id), zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get product")
	}

	return &product, nil
}

// Search runs a keyword search over active products for the grouping read
// path.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]models.CanonicalProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Search")
	defer span.End()

	if limit < 1 || limit > 200 {
		limit = 50
	}

	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("products")
	sb.Where(
		sb.IsNull("deleted_at"),
		sb.Equal("is_active", true),
		sb.Or(
			sb.ILike("title", pattern),
			sb.ILike("brand", pattern),
			sb.ILike("model", pattern),
		),
	)
	sb.OrderBy("updated_at DESC")
	sb.Limit(limit)

	sql, args := sb.Build()
	var products []models.CanonicalProduct
	if err := r.db.SelectContext(ctx, &products, sql, args...); err != nil {
		r.logger.Error("failed to search products", zap.String("query", query), zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search products")
	}

	return products, nil
}

// FindCandidates narrows the catalog to plausible matches for a signal.
// Signals are OR'd on purpose: this filter optimizes recall and leaves
// precision to the aggregate scorer. Products that already carry a listing
// from the signal's source are excluded so a listing never matches its own
// prior scrape. Ordering is recency only, a tie-break the engine re-ranks.
func (r *Repository) FindCandidates(ctx context.Context, filter matching.CandidateFilter) ([]models.CanonicalProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.FindCandidates")
	defer span.End()

	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("products")

	var signals []string
	for _, kw := range filter.Keywords {
		if len(kw) <= 2 {
			continue
		}
		signals = append(signals, sb.ILike("title", "%"+kw+"%"))
	}
	if filter.Brand != "" {
		signals = append(signals, sb.ILike("brand", "%"+filter.Brand+"%"))
	}
	if filter.Model != "" {
		signals = append(signals, sb.ILike("model", "%"+filter.Model+"%"))
	}
	if filter.CategoryID != nil {
		signals = append(signals, sb.Equal("category_id", *filter.CategoryID))
	}

	if len(signals) == 0 {
		// Nothing to search on; an empty candidate set is a normal outcome.
		return nil, nil
	}

	conds := []string{
		sb.IsNull("deleted_at"),
		sb.Equal("is_active", true),
		sb.Or(signals...),
	}

	if filter.ExcludeSource != "" {
		sourceSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sourceSb.Select("product_id")
		sourceSb.From("listings")
		sourceSb.Where(
			sourceSb.Equal("source", filter.ExcludeSource),
			sourceSb.IsNull("deleted_at"),
		)
		conds = append(conds, sb.NotIn("id", sourceSb))
	}

	sb.Where(conds...)
	sb.OrderBy("updated_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var products []models.CanonicalProduct
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		r.logger.Error("failed to find candidates", zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find candidates")
	}

	return products, nil
}

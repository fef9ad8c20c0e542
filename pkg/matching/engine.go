// Package matching implements the product matching and deduplication engine:
// normalization, brand/model extraction, multi-signal similarity scoring, and
// threshold-based classification of incoming marketplace listings.
package matching

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/internal/platform/tracing"
	"github.com/pricewatch/catalog/pkg/brands"
	"github.com/pricewatch/catalog/pkg/fingerprint"
	"github.com/pricewatch/catalog/pkg/models"
	"github.com/pricewatch/catalog/pkg/normalize"
)

// CandidateFilter narrows the catalog to plausible candidates before pairwise
// scoring. Signals are OR'd: the filter optimizes recall, the aggregate
// scorer owns precision.
type CandidateFilter struct {
	Keywords      []string
	Brand         string
	Model         string
	CategoryID    *string
	ExcludeSource string
	Limit         int
}

// ProductStore is the catalog collaborator. Implementations own product ids
// and ordering by recency; the engine re-ranks candidates itself.
type ProductStore interface {
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]models.CanonicalProduct, error)
	Get(ctx context.Context, id string) (*models.CanonicalProduct, error)
	Search(ctx context.Context, query string, limit int) ([]models.CanonicalProduct, error)
	Create(ctx context.Context, product *models.CanonicalProduct) (*models.CanonicalProduct, error)
}

// ListingStore persists live listings and answers the duplicate lookup.
type ListingStore interface {
	// GetBySourceExternal returns the stored listing sharing (source,
	// externalID) or (source, externalURL), or nil when none exists.
	GetBySourceExternal(ctx context.Context, source, externalID, externalURL string) (*models.Listing, error)
	Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	ListByProducts(ctx context.Context, productIDs []string) ([]models.Listing, error)
}

// Config contains the engine's tunables.
type Config struct {
	MatchThreshold   float64 // minimum aggregate score to accept a match (default: 0.82)
	MaxCandidates    int     // candidate retrieval cap (default: 20)
	ClusterExpansion int     // grouping cluster expansion cap (default: 10)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MatchThreshold:   DefaultMatchThreshold,
		MaxCandidates:    20,
		ClusterExpansion: 10,
	}
}

// Engine resolves incoming listings against the catalog. It is stateless per
// call: all configuration is read-only after construction, so one Engine is
// safely shared across worker goroutines.
type Engine struct {
	logger     *zap.Logger
	products   ProductStore
	listings   ListingStore
	normalizer *normalize.Normalizer
	extractor  *brands.Extractor
	aggregator *Aggregator
	classifier *Classifier
	cfg        Config
}

// NewEngine creates an Engine. Configuration errors (bad threshold, invalid
// weight table) are fatal here, at startup, never at match time.
func NewEngine(
	logger *zap.Logger,
	products ProductStore,
	listings ListingStore,
	dict *brands.Store,
	normalizer *normalize.Normalizer,
	weights Weights,
	cfg Config,
) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(cfg.MatchThreshold)
	if err != nil {
		return nil, err
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 20
	}
	if cfg.ClusterExpansion <= 0 {
		cfg.ClusterExpansion = 10
	}
	return &Engine{
		logger:     logger,
		products:   products,
		listings:   listings,
		normalizer: normalizer,
		extractor:  brands.NewExtractor(dict, normalizer),
		aggregator: NewAggregator(dict, weights),
		classifier: classifier,
		cfg:        cfg,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Signal derives the ephemeral normalized signal for a listing input. Pure:
// no I/O, recomputed on every match attempt.
func (e *Engine) Signal(input models.ListingInput) *models.NormalizedSignal {
	brand, model := e.extractor.Extract(input.Title)
	if input.BrandHint != "" {
		brand = strings.ToLower(strings.TrimSpace(input.BrandHint))
	}
	if input.ModelHint != "" {
		model = e.normalizer.Normalize(input.ModelHint)
	}

	return &models.NormalizedSignal{
		Title:       e.normalizer.Normalize(input.Title),
		Description: strings.ToLower(strings.TrimSpace(input.Description)),
		Brand:       brand,
		Model:       model,
		CategoryID:  input.CategoryID,
		Source:      input.Source,
		Keywords:    e.normalizer.Keywords(input.Title),
	}
}

// SignalFromProduct derives a comparable signal from a stored product.
func (e *Engine) SignalFromProduct(p *models.CanonicalProduct) *models.NormalizedSignal {
	return &models.NormalizedSignal{
		Title:      e.normalizer.Normalize(p.Title),
		Brand:      strings.ToLower(p.Brand),
		Model:      e.normalizer.Normalize(p.Model),
		CategoryID: p.CategoryID,
		Keywords:   []string(p.Keywords),
	}
}

// CalculateSimilarity returns the aggregate confidence for two signals.
// Exposed for diagnostics and reused by the grouping pipeline.
func (e *Engine) CalculateSimilarity(a, b *models.NormalizedSignal) float64 {
	return e.aggregator.Score(a, b)
}

// SimilarityWithFields returns the aggregate confidence together with the
// per-field breakdown.
func (e *Engine) SimilarityWithFields(a, b *models.NormalizedSignal) (float64, map[string]float64) {
	return e.aggregator.ScoreWithFields(a, b)
}

// FindCandidates narrows the catalog to at most MaxCandidates plausible
// products for a signal. Zero candidates is a normal outcome, not an error.
func (e *Engine) FindCandidates(ctx context.Context, signal *models.NormalizedSignal) ([]models.CanonicalProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.FindCandidates")
	defer span.End()

	filter := CandidateFilter{
		Keywords:      signal.Keywords,
		Model:         signal.Model,
		CategoryID:    signal.CategoryID,
		ExcludeSource: signal.Source,
		Limit:         e.cfg.MaxCandidates,
	}
	if signal.HasBrand() {
		filter.Brand = signal.Brand
	}

	candidates, err := e.products.FindCandidates(ctx, filter)
	if err != nil {
		return nil, models.StorageError("find candidates", err)
	}
	return candidates, nil
}

// FindOrCreateMatch is the main entry point: it resolves a listing input to
// an existing product, or proposes and stores a new one when nothing in the
// catalog is close enough.
func (e *Engine) FindOrCreateMatch(ctx context.Context, input models.ListingInput) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.FindOrCreateMatch")
	defer span.End()

	log := e.logger.With(
		zap.String("source", input.Source),
		zap.String("external_id", input.ExternalID),
	)

	// Duplicate short-circuit runs before any text comparison. It is cheaper
	// and more reliable than fuzzy matching and must never be skipped.
	if dup, err := e.checkDuplicate(ctx, input, log); err != nil {
		return nil, err
	} else if dup != nil {
		return dup, nil
	}

	signal := e.Signal(input)

	candidates, err := e.FindCandidates(ctx, signal)
	if err != nil {
		return nil, err
	}

	best, bestScore, bestFields := e.rankCandidates(signal, candidates)

	matchType := e.classifier.Classify(bestScore, false)
	if matchType == models.MatchTypeNew {
		return e.createProduct(ctx, input, signal, bestScore, log)
	}

	listing, err := e.storeListing(ctx, input, best.ID)
	if err != nil {
		return nil, err
	}

	log.Debug("matched listing to existing product",
		zap.String("product_id", best.ID),
		zap.Float64("score", bestScore),
		zap.String("match_type", string(matchType)),
	)

	return &models.MatchResult{
		Product:     best,
		Listing:     listing,
		Score:       bestScore,
		MatchType:   matchType,
		FieldScores: bestFields,
	}, nil
}

// checkDuplicate returns a duplicate MatchResult when the (source, external
// id/link) pair is already stored, refreshing price and fingerprint when the
// scraped payload changed.
func (e *Engine) checkDuplicate(ctx context.Context, input models.ListingInput, log *zap.Logger) (*models.MatchResult, error) {
	if input.ExternalID == "" && input.ExternalURL == "" {
		return nil, nil
	}

	existing, err := e.listings.GetBySourceExternal(ctx, input.Source, input.ExternalID, input.ExternalURL)
	if err != nil {
		return nil, models.StorageError("duplicate lookup", err)
	}
	if existing == nil {
		return nil, nil
	}

	product, err := e.products.Get(ctx, existing.ProductID)
	if err != nil {
		return nil, models.StorageError("load product for duplicate", err)
	}

	refreshed := false
	fp := listingFingerprint(input)
	if fingerprint.HasChanged(existing.Fingerprint, fp) {
		existing.Title = input.Title
		existing.Price = input.Price
		existing.Fingerprint = fp
		existing.Verified = input.Verified
		if existing, err = e.listings.Upsert(ctx, existing); err != nil {
			return nil, models.StorageError("refresh duplicate listing", err)
		}
		refreshed = true
		log.Debug("refreshed duplicate listing", zap.String("listing_id", existing.ID))
	}

	return &models.MatchResult{
		Product:   product,
		Listing:   existing,
		Score:     1.0,
		MatchType: models.MatchTypeDuplicate,
		Refreshed: refreshed,
	}, nil
}

// rankCandidates scores every candidate and returns the best. The filter's
// ordering is never trusted; ranking is always re-derived here.
func (e *Engine) rankCandidates(signal *models.NormalizedSignal, candidates []models.CanonicalProduct) (*models.CanonicalProduct, float64, map[string]float64) {
	var (
		best       *models.CanonicalProduct
		bestScore  float64
		bestFields map[string]float64
	)
	for i := range candidates {
		candidate := &candidates[i]
		score, fields := e.aggregator.ScoreWithFields(signal, e.SignalFromProduct(candidate))
		if best == nil || score > bestScore {
			best = candidate
			bestScore = score
			bestFields = fields
		}
	}
	return best, bestScore, bestFields
}

// createProduct proposes a new canonical product from a signal and persists
// it together with its first listing.
func (e *Engine) createProduct(ctx context.Context, input models.ListingInput, signal *models.NormalizedSignal, bestScore float64, log *zap.Logger) (*models.MatchResult, error) {
	proposed := &models.CanonicalProduct{
		ID:         uuid.New().String(),
		Title:      input.Title,
		Brand:      signal.Brand,
		Model:      signal.Model,
		CategoryID: signal.CategoryID,
		Keywords:   signal.Keywords,
		IsActive:   true,
	}

	created, err := e.products.Create(ctx, proposed)
	if err != nil {
		return nil, models.StorageError("create product", err)
	}

	listing, err := e.storeListing(ctx, input, created.ID)
	if err != nil {
		return nil, err
	}

	log.Debug("created new product for listing",
		zap.String("product_id", created.ID),
		zap.Float64("best_score", bestScore),
	)

	return &models.MatchResult{
		Product:   created,
		Listing:   listing,
		Score:     bestScore,
		MatchType: models.MatchTypeNew,
		Created:   true,
	}, nil
}

// storeListing persists the incoming listing under a product.
func (e *Engine) storeListing(ctx context.Context, input models.ListingInput, productID string) (*models.Listing, error) {
	listing := &models.Listing{
		ProductID:   productID,
		Source:      input.Source,
		ExternalID:  input.ExternalID,
		ExternalURL: input.ExternalURL,
		Title:       input.Title,
		Price:       input.Price,
		SellerName:  input.SellerName,
		Verified:    input.Verified,
		Fingerprint: listingFingerprint(input),
		IsActive:    true,
	}
	stored, err := e.listings.Upsert(ctx, listing)
	if err != nil {
		return nil, models.StorageError("store listing", err)
	}
	return stored, nil
}

// listingFingerprint hashes the scrape payload so byte-identical re-scrapes
// can be skipped without touching storage twice.
func listingFingerprint(input models.ListingInput) string {
	data := map[string]any{
		"title":        input.Title,
		"description":  input.Description,
		"source":       input.Source,
		"external_id":  input.ExternalID,
		"external_url": input.ExternalURL,
		"seller_name":  input.SellerName,
		"verified":     input.Verified,
	}
	if input.Price != nil {
		data["price"] = *input.Price
	}
	return fingerprint.Generate(data)
}

package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/pkg/brands"
	"github.com/pricewatch/catalog/pkg/models"
	"github.com/pricewatch/catalog/pkg/normalize"
)

type fakeProductStore struct {
	candidates []models.CanonicalProduct
	products   map[string]*models.CanonicalProduct
	created    []*models.CanonicalProduct
	lastFilter CandidateFilter
	findCalls  int
	findErr    error
	createErr  error
}

func (f *fakeProductStore) FindCandidates(_ context.Context, filter CandidateFilter) ([]models.CanonicalProduct, error) {
	f.findCalls++
	f.lastFilter = filter
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.candidates, nil
}

func (f *fakeProductStore) Get(_ context.Context, id string) (*models.CanonicalProduct, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s not found", id)
	}
	return p, nil
}

func (f *fakeProductStore) Search(_ context.Context, _ string, _ int) ([]models.CanonicalProduct, error) {
	return f.candidates, nil
}

func (f *fakeProductStore) Create(_ context.Context, product *models.CanonicalProduct) (*models.CanonicalProduct, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, product)
	if f.products == nil {
		f.products = map[string]*models.CanonicalProduct{}
	}
	f.products[product.ID] = product
	return product, nil
}

type fakeListingStore struct {
	existing  *models.Listing
	upserted  []*models.Listing
	lookupErr error
	upsertErr error
}

func (f *fakeListingStore) GetBySourceExternal(_ context.Context, source, externalID, externalURL string) (*models.Listing, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.existing == nil || f.existing.Source != source {
		return nil, nil
	}
	if externalID != "" && f.existing.ExternalID == externalID {
		return f.existing, nil
	}
	if externalURL != "" && f.existing.ExternalURL == externalURL {
		return f.existing, nil
	}
	return nil, nil
}

func (f *fakeListingStore) Upsert(_ context.Context, listing *models.Listing) (*models.Listing, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if listing.ID == "" {
		listing.ID = fmt.Sprintf("listing-%d", len(f.upserted)+1)
	}
	f.upserted = append(f.upserted, listing)
	return listing, nil
}

func (f *fakeListingStore) ListByProducts(_ context.Context, _ []string) ([]models.Listing, error) {
	return nil, nil
}

func newTestEngine(t *testing.T, products *fakeProductStore, listings *fakeListingStore) *Engine {
	t.Helper()
	dict := brands.NewStore(brands.NewDictionary(brands.DefaultEntries()))
	e, err := NewEngine(zap.NewNop(), products, listings, dict, normalize.New(), DefaultWeights(), DefaultConfig())
	require.NoError(t, err)
	return e
}

func floatPtr(v float64) *float64 { return &v }

func TestNewEngine_Validation(t *testing.T) {
	dict := brands.NewStore(brands.NewDictionary(brands.DefaultEntries()))

	t.Run("rejects invalid threshold", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MatchThreshold = 1.5
		_, err := NewEngine(zap.NewNop(), &fakeProductStore{}, &fakeListingStore{}, dict, normalize.New(), DefaultWeights(), cfg)
		assert.Error(t, err)
	})

	t.Run("rejects invalid weights", func(t *testing.T) {
		w := DefaultWeights()
		w.Title = 0.80
		_, err := NewEngine(zap.NewNop(), &fakeProductStore{}, &fakeListingStore{}, dict, normalize.New(), w, DefaultConfig())
		assert.Error(t, err)
	})
}

func TestEngine_Signal(t *testing.T) {
	e := newTestEngine(t, &fakeProductStore{}, &fakeListingStore{})

	t.Run("derives brand and model from the title", func(t *testing.T) {
		s := e.Signal(models.ListingInput{Title: "Apple iPhone 13 Pro 256GB", Source: "amazon"})
		assert.Equal(t, "apple iphone 13 pro 256gb", s.Title)
		assert.Equal(t, "apple", s.Brand)
		assert.Equal(t, "iphone 13 pro", s.Model)
		assert.Equal(t, "amazon", s.Source)
		assert.NotEmpty(t, s.Keywords)
	})

	t.Run("hints override extraction", func(t *testing.T) {
		s := e.Signal(models.ListingInput{
			Title:     "Apple iPhone 13 Pro 256GB",
			BrandHint: " Acme ",
			ModelHint: "Widget X2",
		})
		assert.Equal(t, "acme", s.Brand)
		assert.Equal(t, "widget x2", s.Model)
	})

	t.Run("unknown brand uses the marker", func(t *testing.T) {
		s := e.Signal(models.ListingInput{Title: "Generic Wireless Earbuds"})
		assert.Equal(t, models.BrandUnknown, s.Brand)
	})
}

func TestEngine_FindOrCreateMatch_NewProduct(t *testing.T) {
	products := &fakeProductStore{}
	listings := &fakeListingStore{}
	e := newTestEngine(t, products, listings)

	input := models.ListingInput{
		Title:      "Apple iPhone 13 Pro 256GB",
		Source:     "amazon",
		ExternalID: "B0123",
		Price:      floatPtr(999.0),
	}

	result, err := e.FindOrCreateMatch(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeNew, result.MatchType)
	assert.True(t, result.Created)
	require.Len(t, products.created, 1)
	assert.NotEmpty(t, result.Product.ID)
	assert.Equal(t, "apple", result.Product.Brand)
	assert.Equal(t, "iphone 13 pro", result.Product.Model)
	assert.True(t, result.Product.IsActive)

	require.Len(t, listings.upserted, 1)
	assert.Equal(t, result.Product.ID, result.Listing.ProductID)
	assert.NotEmpty(t, result.Listing.Fingerprint)
	assert.True(t, result.Listing.IsActive)
}

func TestEngine_FindOrCreateMatch_ExistingProduct(t *testing.T) {
	products := &fakeProductStore{
		candidates: []models.CanonicalProduct{
			{ID: "prod-unrelated", Title: "Lenovo ThinkPad X1", Brand: "lenovo", Model: "thinkpad x1"},
			{ID: "prod-iphone", Title: "Apple iPhone 13 Pro 256GB", Brand: "apple", Model: "iphone 13 pro"},
		},
	}
	listings := &fakeListingStore{}
	e := newTestEngine(t, products, listings)

	input := models.ListingInput{
		Title:      "Apple iPhone 13 Pro 256GB",
		Source:     "ebay",
		ExternalID: "e-77",
	}

	result, err := e.FindOrCreateMatch(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeExact, result.MatchType)
	assert.Equal(t, "prod-iphone", result.Product.ID)
	assert.Equal(t, 1.0, result.Score)
	assert.False(t, result.Created)
	assert.Empty(t, products.created)

	require.Len(t, listings.upserted, 1)
	assert.Equal(t, "prod-iphone", result.Listing.ProductID)
}

func TestEngine_FindOrCreateMatch_Duplicate(t *testing.T) {
	input := models.ListingInput{
		Title:      "Totally Different Title Than Before",
		Source:     "amazon",
		ExternalID: "B0123",
		Price:      floatPtr(899.0),
	}

	t.Run("unchanged payload short-circuits without refresh", func(t *testing.T) {
		existing := &models.Listing{
			ID:          "listing-1",
			ProductID:   "prod-1",
			Source:      "amazon",
			ExternalID:  "B0123",
			Title:       input.Title,
			Fingerprint: listingFingerprint(input),
		}
		products := &fakeProductStore{products: map[string]*models.CanonicalProduct{
			"prod-1": {ID: "prod-1", Title: "Some Product"},
		}}
		listings := &fakeListingStore{existing: existing}
		e := newTestEngine(t, products, listings)

		result, err := e.FindOrCreateMatch(context.Background(), input)
		require.NoError(t, err)

		assert.Equal(t, models.MatchTypeDuplicate, result.MatchType)
		assert.Equal(t, 1.0, result.Score)
		assert.False(t, result.Refreshed)
		assert.Equal(t, "prod-1", result.Product.ID)
		assert.Empty(t, listings.upserted)
		assert.Zero(t, products.findCalls, "duplicate lookup must run before candidate retrieval")
	})

	t.Run("changed payload refreshes the stored listing", func(t *testing.T) {
		existing := &models.Listing{
			ID:          "listing-1",
			ProductID:   "prod-1",
			Source:      "amazon",
			ExternalID:  "B0123",
			Title:       "Old Title",
			Price:       floatPtr(999.0),
			Fingerprint: "stale",
		}
		products := &fakeProductStore{products: map[string]*models.CanonicalProduct{
			"prod-1": {ID: "prod-1", Title: "Some Product"},
		}}
		listings := &fakeListingStore{existing: existing}
		e := newTestEngine(t, products, listings)

		result, err := e.FindOrCreateMatch(context.Background(), input)
		require.NoError(t, err)

		assert.Equal(t, models.MatchTypeDuplicate, result.MatchType)
		assert.True(t, result.Refreshed)
		require.Len(t, listings.upserted, 1)
		assert.Equal(t, input.Title, result.Listing.Title)
		assert.Equal(t, input.Price, result.Listing.Price)
		assert.Equal(t, listingFingerprint(input), result.Listing.Fingerprint)
	})

	t.Run("matches by external url as well", func(t *testing.T) {
		byURL := models.ListingInput{
			Title:       "Apple iPhone 13",
			Source:      "shop",
			ExternalURL: "https://shop.example/p/1",
		}
		existing := &models.Listing{
			ID:          "listing-9",
			ProductID:   "prod-1",
			Source:      "shop",
			ExternalURL: "https://shop.example/p/1",
			Fingerprint: listingFingerprint(byURL),
		}
		products := &fakeProductStore{products: map[string]*models.CanonicalProduct{
			"prod-1": {ID: "prod-1", Title: "Apple iPhone 13"},
		}}
		e := newTestEngine(t, products, &fakeListingStore{existing: existing})

		result, err := e.FindOrCreateMatch(context.Background(), byURL)
		require.NoError(t, err)
		assert.Equal(t, models.MatchTypeDuplicate, result.MatchType)
	})
}

func TestEngine_FindOrCreateMatch_StorageErrors(t *testing.T) {
	input := models.ListingInput{Title: "Apple iPhone 13", Source: "amazon", ExternalID: "B1"}

	t.Run("duplicate lookup failure", func(t *testing.T) {
		listings := &fakeListingStore{lookupErr: errors.New("connection refused")}
		e := newTestEngine(t, &fakeProductStore{}, listings)

		_, err := e.FindOrCreateMatch(context.Background(), input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrStorage))
	})

	t.Run("candidate retrieval failure", func(t *testing.T) {
		products := &fakeProductStore{findErr: errors.New("connection refused")}
		e := newTestEngine(t, products, &fakeListingStore{})

		_, err := e.FindOrCreateMatch(context.Background(), input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrStorage))
	})

	t.Run("product create failure", func(t *testing.T) {
		products := &fakeProductStore{createErr: errors.New("constraint violation")}
		e := newTestEngine(t, products, &fakeListingStore{})

		_, err := e.FindOrCreateMatch(context.Background(), input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrStorage))
	})
}

func TestEngine_FindCandidates_Filter(t *testing.T) {
	products := &fakeProductStore{}
	e := newTestEngine(t, products, &fakeListingStore{})

	t.Run("carries signal fields and excludes the source", func(t *testing.T) {
		signal := e.Signal(models.ListingInput{Title: "Samsung Galaxy S21 128GB", Source: "ebay"})
		_, err := e.FindCandidates(context.Background(), signal)
		require.NoError(t, err)

		assert.Equal(t, "samsung", products.lastFilter.Brand)
		assert.Equal(t, "ebay", products.lastFilter.ExcludeSource)
		assert.Equal(t, e.Config().MaxCandidates, products.lastFilter.Limit)
		assert.NotEmpty(t, products.lastFilter.Keywords)
	})

	t.Run("unknown brand is not used for filtering", func(t *testing.T) {
		signal := e.Signal(models.ListingInput{Title: "Generic Wireless Earbuds", Source: "ebay"})
		_, err := e.FindCandidates(context.Background(), signal)
		require.NoError(t, err)

		assert.Empty(t, products.lastFilter.Brand)
	})
}

func TestEngine_RankCandidates(t *testing.T) {
	e := newTestEngine(t, &fakeProductStore{}, &fakeListingStore{})

	signal := e.Signal(models.ListingInput{Title: "Apple iPhone 13 Pro 256GB", Source: "amazon"})
	candidates := []models.CanonicalProduct{
		{ID: "far", Title: "Nintendo Switch Console", Brand: "nintendo", Model: "switch console"},
		{ID: "near", Title: "Apple iPhone 13 Pro", Brand: "apple", Model: "iphone 13 pro"},
	}

	best, score, fields := e.rankCandidates(signal, candidates)
	require.NotNil(t, best)
	assert.Equal(t, "near", best.ID)
	assert.Greater(t, score, 0.82)
	assert.Contains(t, fields, "title")

	t.Run("no candidates", func(t *testing.T) {
		best, score, _ := e.rankCandidates(signal, nil)
		assert.Nil(t, best)
		assert.Equal(t, 0.0, score)
	})
}

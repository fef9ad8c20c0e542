package grouping

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/pkg/brands"
	"github.com/pricewatch/catalog/pkg/matching"
	"github.com/pricewatch/catalog/pkg/models"
	"github.com/pricewatch/catalog/pkg/normalize"
)

type fakeProductStore struct {
	hits      []models.CanonicalProduct
	searchErr error
}

func (f *fakeProductStore) Search(_ context.Context, _ string, _ int) ([]models.CanonicalProduct, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeProductStore) FindCandidates(_ context.Context, _ matching.CandidateFilter) ([]models.CanonicalProduct, error) {
	return f.hits, nil
}

func (f *fakeProductStore) Get(_ context.Context, id string) (*models.CanonicalProduct, error) {
	for i := range f.hits {
		if f.hits[i].ID == id {
			return &f.hits[i], nil
		}
	}
	return nil, fmt.Errorf("product %s not found", id)
}

func (f *fakeProductStore) Create(_ context.Context, product *models.CanonicalProduct) (*models.CanonicalProduct, error) {
	return product, nil
}

type fakeListingStore struct {
	byProduct map[string][]models.Listing
	listErr   error
}

func (f *fakeListingStore) ListByProducts(_ context.Context, productIDs []string) ([]models.Listing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Listing
	for _, id := range productIDs {
		out = append(out, f.byProduct[id]...)
	}
	return out, nil
}

func (f *fakeListingStore) GetBySourceExternal(_ context.Context, _, _, _ string) (*models.Listing, error) {
	return nil, nil
}

func (f *fakeListingStore) Upsert(_ context.Context, listing *models.Listing) (*models.Listing, error) {
	return listing, nil
}

func floatPtr(v float64) *float64 { return &v }

func listing(product, source string, price float64, verified bool) models.Listing {
	return models.Listing{
		ID:        fmt.Sprintf("%s-%s", product, source),
		ProductID: product,
		Source:    source,
		Price:     floatPtr(price),
		Verified:  verified,
		IsActive:  true,
	}
}

func newTestPipeline(t *testing.T, products *fakeProductStore, listings *fakeListingStore) *Pipeline {
	t.Helper()
	dict := brands.NewStore(brands.NewDictionary(brands.DefaultEntries()))
	engine, err := matching.NewEngine(zap.NewNop(), products, listings, dict, normalize.New(), matching.DefaultWeights(), matching.DefaultConfig())
	require.NoError(t, err)
	return New(zap.NewNop(), engine, products, listings)
}

func TestPipeline_GroupForQuery(t *testing.T) {
	products := &fakeProductStore{hits: []models.CanonicalProduct{
		{ID: "iphone-a", Title: "Apple iPhone 13 Pro", Brand: "apple", Model: "iphone 13 pro"},
		{ID: "iphone-b", Title: "Apple iPhone 13 Pro 256GB", Brand: "apple", Model: "iphone 13 pro"},
		{ID: "galaxy", Title: "Samsung Galaxy S21", Brand: "samsung", Model: "galaxy s21"},
	}}
	listings := &fakeListingStore{byProduct: map[string][]models.Listing{
		"iphone-a": {listing("iphone-a", "amazon", 999, true)},
		"iphone-b": {listing("iphone-b", "ebay", 949, false)},
		"galaxy":   {listing("galaxy", "amazon", 799, true)},
	}}
	p := newTestPipeline(t, products, listings)

	groups, err := p.GroupForQuery(context.Background(), "phone", models.GroupFilters{})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	t.Run("near-identical products share a cluster", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"iphone-a", "iphone-b"}, groups[0].ClusterIDs)
		assert.Len(t, groups[0].Listings, 2)
	})

	t.Run("groups partition the search hits", func(t *testing.T) {
		seen := map[string]int{}
		for _, g := range groups {
			for _, id := range g.ClusterIDs {
				seen[id]++
			}
		}
		for id, count := range seen {
			assert.Equal(t, 1, count, "product %s appears in more than one group", id)
		}
		assert.Len(t, seen, 3)
	})

	t.Run("price range spans the cluster", func(t *testing.T) {
		g := groups[0]
		require.NotNil(t, g.MinPrice)
		require.NotNil(t, g.MaxPrice)
		assert.Equal(t, 949.0, *g.MinPrice)
		assert.Equal(t, 999.0, *g.MaxPrice)
		assert.LessOrEqual(t, *g.MinPrice, *g.MaxPrice)
	})

	t.Run("sources are collected and sorted", func(t *testing.T) {
		assert.Equal(t, []string{"amazon", "ebay"}, groups[0].Sources)
		assert.Equal(t, 1, groups[0].VerifiedCount)
	})

	t.Run("most-listed group sorts first", func(t *testing.T) {
		assert.Greater(t, len(groups[0].Listings), len(groups[1].Listings))
	})
}

func TestPipeline_GroupForQuery_Filters(t *testing.T) {
	products := &fakeProductStore{hits: []models.CanonicalProduct{
		{ID: "iphone-a", Title: "Apple iPhone 13 Pro", Brand: "apple", Model: "iphone 13 pro"},
	}}
	listings := &fakeListingStore{byProduct: map[string][]models.Listing{
		"iphone-a": {
			listing("iphone-a", "amazon", 999, true),
			listing("iphone-a", "ebay", 949, false),
			listing("iphone-a", "shop", 929, true),
		},
	}}
	p := newTestPipeline(t, products, listings)

	t.Run("verified only", func(t *testing.T) {
		groups, err := p.GroupForQuery(context.Background(), "iphone", models.GroupFilters{VerifiedOnly: true})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Len(t, groups[0].Listings, 2)
		for _, l := range groups[0].Listings {
			assert.True(t, l.Verified)
		}
	})

	t.Run("platform allow-list", func(t *testing.T) {
		groups, err := p.GroupForQuery(context.Background(), "iphone", models.GroupFilters{Platforms: []string{"ebay"}})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		require.Len(t, groups[0].Listings, 1)
		assert.Equal(t, "ebay", groups[0].Listings[0].Source)
	})

	t.Run("inactive listings are excluded", func(t *testing.T) {
		inactive := listing("iphone-a", "walmart", 899, true)
		inactive.IsActive = false
		listings.byProduct["iphone-a"] = append(listings.byProduct["iphone-a"], inactive)

		groups, err := p.GroupForQuery(context.Background(), "iphone", models.GroupFilters{})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		for _, l := range groups[0].Listings {
			assert.NotEqual(t, "walmart", l.Source)
		}
	})
}

func TestPipeline_GroupForQuery_ClusterCap(t *testing.T) {
	var hits []models.CanonicalProduct
	for i := 0; i < 15; i++ {
		hits = append(hits, models.CanonicalProduct{
			ID:    fmt.Sprintf("p-%02d", i),
			Title: "Apple iPhone 13 Pro",
			Brand: "apple",
			Model: "iphone 13 pro",
		})
	}
	products := &fakeProductStore{hits: hits}
	p := newTestPipeline(t, products, &fakeListingStore{})

	groups, err := p.GroupForQuery(context.Background(), "iphone", models.GroupFilters{})
	require.NoError(t, err)

	limit := matching.DefaultConfig().ClusterExpansion
	total := 0
	for _, g := range groups {
		assert.LessOrEqual(t, len(g.ClusterIDs), limit)
		total += len(g.ClusterIDs)
	}
	assert.Equal(t, len(hits), total, "every hit belongs to exactly one cluster")
}

func TestPipeline_GroupForQuery_Errors(t *testing.T) {
	t.Run("empty result set", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProductStore{}, &fakeListingStore{})
		groups, err := p.GroupForQuery(context.Background(), "nothing", models.GroupFilters{})
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("search failure", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProductStore{searchErr: errors.New("timeout")}, &fakeListingStore{})
		_, err := p.GroupForQuery(context.Background(), "iphone", models.GroupFilters{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrStorage))
	})

	t.Run("listing lookup failure", func(t *testing.T) {
		products := &fakeProductStore{hits: []models.CanonicalProduct{
			{ID: "p", Title: "Apple iPhone 13", Brand: "apple", Model: "iphone 13"},
		}}
		p := newTestPipeline(t, products, &fakeListingStore{listErr: errors.New("timeout")})
		_, err := p.GroupForQuery(context.Background(), "iphone", models.GroupFilters{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrStorage))
	})
}

// Package grouping builds price-comparison product groups: clusters of
// matched products with their live listings, price range, and seller stats.
package grouping

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/pricewatch/catalog/internal/platform/tracing"
	"github.com/pricewatch/catalog/pkg/matching"
	"github.com/pricewatch/catalog/pkg/models"
)

// searchLimit bounds the initial keyword search over canonical products.
const searchLimit = 50

// Pipeline assembles product groups at query time. Groups are rebuilt on
// every call and never cached here.
type Pipeline struct {
	logger   *zap.Logger
	engine   *matching.Engine
	products matching.ProductStore
	listings matching.ListingStore
}

// New creates a grouping pipeline reusing the matching engine's candidate
// retrieval and scoring, not a separate algorithm.
func New(logger *zap.Logger, engine *matching.Engine, products matching.ProductStore, listings matching.ListingStore) *Pipeline {
	return &Pipeline{
		logger:   logger,
		engine:   engine,
		products: products,
		listings: listings,
	}
}

// GroupForQuery resolves a keyword search and clusters the results. Every
// product appears in at most one group: the result is a partition of the
// search hits for this query.
func (p *Pipeline) GroupForQuery(ctx context.Context, query string, filters models.GroupFilters) ([]models.ProductGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Pipeline.GroupForQuery")
	defer span.End()

	hits, err := p.products.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, models.StorageError("product search", err)
	}
	if len(hits) == 0 {
		return []models.ProductGroup{}, nil
	}

	processed := make(map[string]struct{}, len(hits))
	groups := make([]models.ProductGroup, 0, len(hits))
	rawCounts := make(map[string]int)

	for i := range hits {
		seed := &hits[i]
		if _, done := processed[seed.ID]; done {
			continue
		}

		cluster, err := p.expandCluster(ctx, seed, processed)
		if err != nil {
			return nil, err
		}

		group, rawCount, err := p.buildGroup(ctx, seed, cluster, filters)
		if err != nil {
			return nil, err
		}
		rawCounts[seed.ID] = rawCount
		groups = append(groups, group)
	}

	// Most-listed groups first; the unfiltered listing count breaks ties.
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Listings) != len(groups[j].Listings) {
			return len(groups[i].Listings) > len(groups[j].Listings)
		}
		return rawCounts[groups[i].Product.ID] > rawCounts[groups[j].Product.ID]
	})

	p.logger.Debug("built product groups",
		zap.String("query", query),
		zap.Int("group_count", len(groups)),
	)

	return groups, nil
}

// expandCluster finds the seed's matched-product cluster via the engine's
// candidate retrieval and scoring. Expansion is bounded to avoid unbounded
// transitive clustering. Marks every cluster member processed.
func (p *Pipeline) expandCluster(ctx context.Context, seed *models.CanonicalProduct, processed map[string]struct{}) ([]string, error) {
	processed[seed.ID] = struct{}{}
	cluster := []string{seed.ID}

	signal := p.engine.SignalFromProduct(seed)
	candidates, err := p.engine.FindCandidates(ctx, signal)
	if err != nil {
		return nil, err
	}

	threshold := p.engine.Config().MatchThreshold
	limit := p.engine.Config().ClusterExpansion

	for i := range candidates {
		if len(cluster) >= limit {
			break
		}
		candidate := &candidates[i]
		if candidate.ID == seed.ID {
			continue
		}
		if _, done := processed[candidate.ID]; done {
			continue
		}
		score := p.engine.CalculateSimilarity(signal, p.engine.SignalFromProduct(candidate))
		if score < threshold {
			continue
		}
		processed[candidate.ID] = struct{}{}
		cluster = append(cluster, candidate.ID)
	}

	return cluster, nil
}

// buildGroup collects the cluster's listings, applies filters, and computes
// the price range, source set, and verified-seller count. Returns the group
// plus the raw (pre-filter) listing count used as a sort tie-break.
func (p *Pipeline) buildGroup(ctx context.Context, seed *models.CanonicalProduct, cluster []string, filters models.GroupFilters) (models.ProductGroup, int, error) {
	all, err := p.listings.ListByProducts(ctx, cluster)
	if err != nil {
		return models.ProductGroup{}, 0, models.StorageError("list cluster listings", err)
	}

	group := models.ProductGroup{
		Product:    *seed,
		ClusterIDs: cluster,
		Listings:   make([]models.Listing, 0, len(all)),
	}

	sources := make(map[string]struct{})
	for _, l := range all {
		if !l.IsActive {
			continue
		}
		if filters.VerifiedOnly && !l.Verified {
			continue
		}
		if !filters.AllowsPlatform(l.Source) {
			continue
		}

		group.Listings = append(group.Listings, l)
		sources[l.Source] = struct{}{}
		if l.Verified {
			group.VerifiedCount++
		}
		if l.Price != nil {
			if group.MinPrice == nil || *l.Price < *group.MinPrice {
				price := *l.Price
				group.MinPrice = &price
			}
			if group.MaxPrice == nil || *l.Price > *group.MaxPrice {
				price := *l.Price
				group.MaxPrice = &price
			}
		}
	}

	group.Sources = make([]string, 0, len(sources))
	for s := range sources {
		group.Sources = append(group.Sources, s)
	}
	sort.Strings(group.Sources)

	return group, len(all), nil
}

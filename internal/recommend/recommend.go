// Package recommend builds the secondary lists shown next to a property:
// similar listings, trending listings and newest in the same neighborhood.
package recommend

import (
	"context"
	"real-estate-catalog/internal/analytics"
	"real-estate-catalog/internal/cache"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/database/query"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/models"
	"time"

	"github.com/sirupsen/logrus"
)

// Tier names where a recommendation list came from
type Tier string

const (
	TierNeighborhood Tier = "barrio"
	TierType         Tier = "tipo"
	TierPrice        Tier = "precio"
	TierTrending     Tier = "trending"
	TierPopular      Tier = "popular"
	TierFeatured     Tier = "destacados"
)

const (
	// SimilarLimit caps every similar-properties tier
	SimilarLimit = 3
	priceBandPct = 15
	newestFirst  = "created_at DESC, id DESC"
)

// Result is a recommendation list tagged with the tier that produced it
type Result struct {
	Tier  Tier              `json:"tier"`
	Items []models.Property `json:"items"`
}

// Store is the datastore surface used for recommendations
type Store interface {
	catalog.ImageFetcher
	FindProperties(ctx context.Context, plan query.Plan) ([]models.Property, error)
	GetPropertiesByIDs(ctx context.Context, ids []string) ([]models.Property, error)
}

// ViewCounter aggregates recent views
type ViewCounter interface {
	TopViewed(ctx context.Context, since time.Time, k int) ([]analytics.ViewCount, error)
}

// FeaturedSource supplies the fallback list
type FeaturedSource interface {
	Featured(ctx context.Context, limit int) (catalog.Page, error)
}

// Engine computes recommendation lists
type Engine struct {
	store    Store
	views    ViewCounter
	featured FeaturedSource
	cache    *cache.Cache
	window   time.Duration
	log      *logrus.Logger
}

// NewEngine creates a recommendation engine. window is the trailing period
// counted for trending.
func NewEngine(store Store, views ViewCounter, featured FeaturedSource, c *cache.Cache, window time.Duration, log *logrus.Logger) *Engine {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &Engine{
		store:    store,
		views:    views,
		featured: featured,
		cache:    c,
		window:   window,
		log:      logging.OrDefault(log),
	}
}

// PriceBand returns the inclusive [p*0.85, p*1.15] range around price
func PriceBand(price int64) (int64, int64) {
	lo := (price*(100-priceBandPct) + 99) / 100
	hi := price * (100 + priceBandPct) / 100
	return lo, hi
}

// Similar cascades barrio+tipo+price, then tipo+price, then price alone.
// The first non-empty tier wins; the price tier is terminal and may be empty.
func (e *Engine) Similar(ctx context.Context, focal *models.Property) (Result, error) {
	key := cache.GenerateKey("similar", []interface{}{focal.ID, focal.NeighborhoodID, focal.Type, focal.Price})
	return cache.GetOrCompute(ctx, e.cache, key, func(ctx context.Context) (Result, error) {
		return e.similar(ctx, focal)
	}, cache.TagCatalog)
}

func (e *Engine) similar(ctx context.Context, focal *models.Property) (Result, error) {
	lo, hi := PriceBand(focal.Price)
	band := func() *query.WhereBuilder {
		return query.NewWhereBuilder().
			AddNotEquals("id", focal.ID).
			AddBetween("precio", lo, hi)
	}

	type tier struct {
		name Tier
		wb   *query.WhereBuilder
	}
	var tiers []tier
	if focal.NeighborhoodID != nil {
		tiers = append(tiers, tier{TierNeighborhood, band().
			AddEquals("barrio_id", *focal.NeighborhoodID).
			AddEquals("tipo", focal.Type)})
	}
	tiers = append(tiers,
		tier{TierType, band().AddEquals("tipo", focal.Type)},
		tier{TierPrice, band()},
	)

	for i, t := range tiers {
		items, err := e.store.FindProperties(ctx, query.NewPlan(t.wb, newestFirst, 0, SimilarLimit))
		if err != nil {
			return Result{}, err
		}
		if len(items) == 0 && i < len(tiers)-1 {
			continue
		}
		return e.attach(ctx, Result{Tier: t.name, Items: items}), nil
	}
	// unreachable: the price tier always returns
	return Result{Tier: TierPrice, Items: []models.Property{}}, nil
}

// Trending ranks properties by views in the trailing window. An empty
// ranking or any failure falls back to Featured.
func (e *Engine) Trending(ctx context.Context, limit int) (Result, error) {
	key := cache.GenerateKey("trending", []interface{}{limit, e.window.String()})
	return cache.GetOrCompute(ctx, e.cache, key, func(ctx context.Context) (Result, error) {
		items, err := e.trending(ctx, limit)
		if err != nil {
			e.log.WithError(err).Warn("Trending query failed, using featured")
		}
		if err != nil || len(items) == 0 {
			return e.fallback(ctx, limit)
		}
		return e.attach(ctx, Result{Tier: TierTrending, Items: items}), nil
	}, cache.TagCatalog)
}

func (e *Engine) trending(ctx context.Context, limit int) ([]models.Property, error) {
	if e.views == nil {
		return nil, nil
	}
	since := time.Now().UTC().Add(-e.window)
	counts, err := e.views.TopViewed(ctx, since, limit)
	if err != nil || len(counts) == 0 {
		return nil, err
	}

	ids := make([]string, len(counts))
	rank := make(map[string]int, len(counts))
	for i, c := range counts {
		ids[i] = c.PropertyID
		rank[c.PropertyID] = i
	}

	fetched, err := e.store.GetPropertiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// the IN query returns rows in storage order; put them back in rank order
	ordered := make([]models.Property, len(counts))
	present := make([]bool, len(counts))
	for _, p := range fetched {
		if i, ok := rank[p.ID]; ok {
			ordered[i] = p
			present[i] = true
		}
	}
	out := make([]models.Property, 0, len(fetched))
	for i := range ordered {
		if present[i] {
			out = append(out, ordered[i])
		}
	}
	return out, nil
}

// PopularInNeighborhood lists the newest properties of a barrio, excluding
// one property. Empty or failed lookups fall back to Featured.
func (e *Engine) PopularInNeighborhood(ctx context.Context, neighborhoodID uint, excludeID string, limit int) (Result, error) {
	key := cache.GenerateKey("popular", []interface{}{neighborhoodID, excludeID, limit})
	return cache.GetOrCompute(ctx, e.cache, key, func(ctx context.Context) (Result, error) {
		wb := query.NewWhereBuilder().AddEquals("barrio_id", neighborhoodID)
		if excludeID != "" {
			wb.AddNotEquals("id", excludeID)
		}
		items, err := e.store.FindProperties(ctx, query.NewPlan(wb, newestFirst, 0, limit))
		if err != nil {
			e.log.WithError(err).WithField("barrio_id", neighborhoodID).Warn("Neighborhood query failed, using featured")
		}
		if err != nil || len(items) == 0 {
			return e.fallback(ctx, limit)
		}
		return e.attach(ctx, Result{Tier: TierPopular, Items: items}), nil
	}, cache.TagCatalog)
}

func (e *Engine) fallback(ctx context.Context, limit int) (Result, error) {
	page, err := e.featured.Featured(ctx, limit)
	if err != nil {
		return Result{}, err
	}
	return Result{Tier: TierFeatured, Items: page.Items}, nil
}

func (e *Engine) attach(ctx context.Context, r Result) Result {
	if r.Items == nil {
		r.Items = []models.Property{}
	}
	if _, err := catalog.Attach(ctx, e.store, r.Items); err != nil {
		e.log.WithError(err).WithField("tier", r.Tier).Error("Image attachment failed")
	}
	return r
}

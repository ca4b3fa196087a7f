package search

import (
	"context"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/models"
)

// Store loads the catalog rows behind search hits
type Store interface {
	catalog.ImageFetcher
	GetPropertiesByIDs(ctx context.Context, ids []string) ([]models.Property, error)
}

// Hydrate loads the properties of a result in hit order and attaches their
// galleries. Hits whose row is gone (deleted, not yet unindexed) are dropped.
func Hydrate(ctx context.Context, store Store, res *Result) ([]models.Property, error) {
	ids := res.IDs()
	if len(ids) == 0 {
		return []models.Property{}, nil
	}

	rows, err := store.GetPropertiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Property, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}

	ordered := make([]models.Property, 0, len(rows))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return catalog.Attach(ctx, store, ordered)
}

package search

import (
	"context"
	"errors"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/models"
	"testing"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	added   []interface{}
	deleted []string
	lastReq *meilisearch.SearchRequest
	hits    []interface{}
	err     error
}

func (f *fakeIndex) AddDocuments(docs interface{}, _ ...string) (*meilisearch.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.added = append(f.added, docs)
	return &meilisearch.TaskInfo{}, nil
}

func (f *fakeIndex) DeleteDocument(id string) (*meilisearch.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, id)
	return &meilisearch.TaskInfo{}, nil
}

func (f *fakeIndex) Search(_ string, req *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &meilisearch.SearchResponse{Hits: f.hits, EstimatedTotalHits: int64(len(f.hits))}, nil
}

func TestFilters_Expression(t *testing.T) {
	f := Filters{
		Operation: models.OperationSale,
		City:      "Cúcuta",
		Type:      "casas",
		MinPrice:  100,
		MinRooms:  3,
		Sort:      "precio_desc",
	}
	assert.Equal(t, `operacion = "venta" AND ciudad = "cucuta" AND tipo = "casa" AND precio >= 100 AND habitaciones >= 3`, f.Expression())
	assert.Equal(t, "precio:desc", f.SortRule())

	assert.Empty(t, Filters{City: "atlantis"}.Expression())
	assert.Empty(t, Filters{}.SortRule())
	assert.Equal(t, `"a\"b"`, quote(`a"b`))
}

func TestSearch_DecodesHits(t *testing.T) {
	idx := &fakeIndex{hits: []interface{}{
		map[string]interface{}{"id": "b", "titulo": "Casa B", "precio": float64(200)},
		map[string]interface{}{"id": "a", "titulo": "Casa A"},
		map[string]interface{}{"titulo": "sin id"},
	}}
	c := newSearchClient(nil, idx, "inmuebles", nil)

	res, err := c.Search(context.Background(), Request{Query: "casa", Filters: Filters{Sort: "recientes"}, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.IDs())
	assert.Equal(t, int64(200), res.Hits[0].Price)
	assert.Equal(t, int64(defaultLimit), idx.lastReq.Limit)
	assert.Equal(t, []string{"created_at:desc"}, idx.lastReq.Sort)
}

func TestIndexAndDelete(t *testing.T) {
	idx := &fakeIndex{}
	c := newSearchClient(nil, idx, "inmuebles", nil)
	ctx := context.Background()

	p := &models.Property{ID: "p1", Title: "Casa", Description: "larga", Neighborhood: &models.Neighborhood{Name: "Caobos"}}
	require.NoError(t, c.IndexProperty(ctx, p))
	require.NoError(t, c.DeleteDocument(ctx, "p1"))

	require.Len(t, idx.added, 1)
	docs := idx.added[0].([]Document)
	assert.Equal(t, "larga", docs[0].Description)
	assert.Equal(t, "Caobos", docs[0].Neighborhood)
	assert.Equal(t, []string{"p1"}, idx.deleted)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	idx := &fakeIndex{err: errors.New("connection refused")}
	c := newSearchClient(nil, idx, "inmuebles", nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Error(t, c.DeleteDocument(ctx, "p1"))
	}
	assert.ErrorIs(t, c.DeleteDocument(ctx, "p1"), ErrUnavailable)
	assert.ErrorIs(t, c.InitIndex(), ErrUnavailable)
}

func TestHydrate_KeepsHitOrder(t *testing.T) {
	db, err := database.NewTestDB()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, db.InsertProperty(ctx, &models.Property{
			ID: id, Slug: "casa-" + id, Title: "Casa " + id, Operation: models.OperationSale, City: "cucuta", Type: "casa",
		}))
	}
	require.NoError(t, db.InsertImages(ctx, []models.PropertyImage{{PropertyID: "b", URL: "b.jpg", IsPrimary: true}}))

	res := &Result{Hits: []Document{{ID: "b"}, {ID: "gone"}, {ID: "a"}}}
	items, err := Hydrate(ctx, db, res)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "b.jpg", items[0].PrimaryImage)
	assert.Equal(t, "a", items[1].ID)

	empty, err := Hydrate(ctx, db, &Result{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"real-estate-catalog/internal/analytics"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/cleanup"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/leads"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/pipeline"
	"real-estate-catalog/internal/ratelimit"
	"real-estate-catalog/internal/recommend"
	"real-estate-catalog/internal/search"
	"real-estate-catalog/internal/slug"
	"real-estate-catalog/internal/snapshot"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	res *search.Result
	err error
}

func (f *fakeSearcher) Search(context.Context, search.Request) (*search.Result, error) {
	return f.res, f.err
}

type testServer struct {
	router   *gin.Engine
	db       *database.GormDB
	searcher *fakeSearcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.DefaultConfig()
	cfg.Server.SiteURL = "https://inmuebles.test"
	cfg.Server.WhatsAppPhone = "+57 300 000 0000"
	cfg.RateLimit.RequestsPerMinute = 2

	cat := catalog.NewService(db, slug.NewResolver(db, db), nil, nil)
	views := analytics.NewService(db.DB(), "test-key", nil)
	cleanupSvc := cleanup.NewService(db.DB(), nil)
	snapshots := snapshot.NewService(db.DB(), nil)
	leadSvc := leads.NewService(db.DB(), nil)
	pipe := pipeline.New(db, nil,
		pipeline.WithHistory(snapshots),
		pipeline.WithDeleteLog(cleanupSvc),
	)
	searcher := &fakeSearcher{}
	limiter := ratelimit.New(cfg.RateLimit)

	r := gin.New()
	NewPublicHandler(PublicDeps{
		Catalog:       cat,
		Recommend:     recommend.NewEngine(db, views, cat, nil, 7*24*time.Hour, nil),
		Views:         views,
		Leads:         leadSvc,
		Searcher:      searcher,
		Store:         db,
		Limiter:       limiter,
		Server:        cfg.Server,
		TrendingLimit: 4,
	}, nil).Register(r)
	NewAdminHandler(AdminDeps{
		DB:        db,
		Pipeline:  pipe,
		Catalog:   cat,
		Leads:     leadSvc,
		Snapshots: snapshots,
		Cleanup:   cleanupSvc,
		Views:     views,
		Limiter:   limiter,
		Config:    cfg,
	}, nil).Register(r)

	return &testServer{router: r, db: db, searcher: searcher}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func propertyBody(title string) map[string]interface{} {
	return map[string]interface{}{
		"titulo":       title,
		"precio":       350000000,
		"operacion":    "venta",
		"tipo":         "Casa",
		"ciudad":       "Cúcuta",
		"barrio":       "Caobos",
		"habitaciones": 3,
		"imagenes": []map[string]interface{}{
			{"url": "https://img.test/1.jpg"},
			{"url": "https://img.test/2.jpg", "es_principal": true},
		},
		"etiquetas": []string{"Con piscina"},
	}
}

func TestPropertyLifecycle(t *testing.T) {
	s := newTestServer(t)

	w, created := s.do(t, http.MethodPost, "/api/admin/properties", propertyBody("Casa en Caobos"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := created["id"].(string)
	assert.Equal(t, "casa-en-caobos", created["slug"])
	assert.Equal(t, "https://img.test/2.jpg", created["imagen_principal"])

	// public listing resolves the plural and the tag composite
	w, listing := s.do(t, http.MethodGet, "/api/catalogo/venta/casas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), listing["total_count"])
	assert.Equal(t, true, listing["noindex"])

	w, listing = s.do(t, http.MethodGet, "/api/catalogo/venta/cucuta/casas-con-piscina", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), listing["total_count"])

	w, _ = s.do(t, http.MethodGet, "/api/catalogo/venta/castillos", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// detail with recommendation blocks and a recorded view
	w, detail := s.do(t, http.MethodGet, "/api/inmueble/casa-en-caobos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, detail["whatsapp"], "https://wa.me/573000000000?text=")
	assert.NotNil(t, detail["similares"])
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"))

	w, viewStats := s.do(t, http.MethodGet, "/api/admin/properties/"+id+"/views?days=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), viewStats["views"])

	// update keeps the slug and records history
	body := propertyBody("Casa renovada en Caobos")
	body["precio"] = 320000000
	w, updated := s.do(t, http.MethodPut, "/api/admin/properties/"+id, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "casa-en-caobos", updated["slug"])

	w, history := s.do(t, http.MethodGet, "/api/admin/properties/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), history["count"])

	w, _ = s.do(t, http.MethodGet, "/api/admin/properties?ciudad=cucuta", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/admin/properties/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/admin/properties/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(t, http.MethodDelete, "/api/admin/properties/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, logs := s.do(t, http.MethodGet, "/api/admin/cleanup/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), logs["count"])

	w, stats := s.do(t, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, stats, "catalog")
	assert.Contains(t, stats, "deletions")
}

func TestCreateProperty_Validation(t *testing.T) {
	s := newTestServer(t)

	body := propertyBody("")
	body["ciudad"] = "Atlantis"
	w, out := s.do(t, http.MethodPost, "/api/admin/properties", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields := out["fields"].([]interface{})
	names := []string{}
	for _, f := range fields {
		names = append(names, f.(map[string]interface{})["field"].(string))
	}
	assert.ElementsMatch(t, []string{"titulo", "ciudad"}, names)

	w, _ = s.do(t, http.MethodPut, "/api/admin/properties/missing", propertyBody("Casa"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeads(t *testing.T) {
	s := newTestServer(t)

	w, lead := s.do(t, http.MethodPost, "/api/leads", map[string]interface{}{
		"nombre": "Ana", "telefono": "+57 300 123 4567", "tipo": "comprador",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := int(lead["id"].(float64))
	assert.Equal(t, "nuevo", lead["estado"])

	w, _ = s.do(t, http.MethodPost, "/api/leads", map[string]interface{}{
		"nombre": "Ana", "telefono": "12", "tipo": "comprador",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// third request in the minute is rejected
	w, _ = s.do(t, http.MethodPost, "/api/leads", map[string]interface{}{
		"nombre": "Ana", "telefono": "+57 300 123 4567", "tipo": "comprador",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w, usage := s.do(t, http.MethodGet, "/api/admin/ratelimit/10.0.0.1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), usage["remaining_this_minute"])

	path := "/api/admin/leads/" + strconv.Itoa(id)
	w, updated := s.do(t, http.MethodPatch, path, map[string]string{"estado": "contactado"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "contactado", updated["estado"])

	w, _ = s.do(t, http.MethodPatch, path, map[string]string{"estado": "perdido"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodPatch, "/api/admin/leads/999", map[string]string{"estado": "cerrado"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, list := s.do(t, http.MethodGet, "/api/admin/leads?estado=contactado", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), list["total_count"])
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.db.InsertProperty(ctx, &models.Property{
		ID: "p1", Slug: "lote-1", Title: "Lote", Operation: models.OperationSale, City: "cucuta", Type: "lote",
	}))

	s.searcher.res = &search.Result{Hits: []search.Document{{ID: "p1"}}, TotalHits: 1}
	w, out := s.do(t, http.MethodGet, "/api/buscar?q=lote&operacion=venta", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["items"], 1)
	assert.Equal(t, "lote", out["query"])

	s.searcher.err = search.ErrUnavailable
	w, _ = s.do(t, http.MethodGet, "/api/buscar?q=lote", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPublicRoutes_HideDatastoreErrors(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodPost, "/api/admin/properties", propertyBody("Casa en Caobos"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, s.db.Close())

	w, out := s.do(t, http.MethodGet, "/api/inmueble/casa-en-caobos", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, updatingMsg, out["error"])
	assert.NotContains(t, w.Body.String(), "sql")
	assert.NotContains(t, w.Body.String(), "closed")

	// listings degrade to an empty page
	w, out = s.do(t, http.MethodGet, "/api/destacados", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), out["total_count"])

	s.searcher.res = &search.Result{Hits: []search.Document{{ID: "x"}}, TotalHits: 1}
	w, out = s.do(t, http.MethodGet, "/api/buscar?q=casa", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, updatingMsg, out["error"])
	assert.NotContains(t, w.Body.String(), "sql")
}

func TestRespondError_StepError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	respondError(c, nil, &pipeline.StepError{Step: pipeline.StepImages, Err: errors.New("disk full")})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")
	assert.Contains(t, w.Body.String(), `"step":"images"`)
}

func TestRunCleanup(t *testing.T) {
	s := newTestServer(t)
	w, out := s.do(t, http.MethodPost, "/api/admin/cleanup/run", map[string]interface{}{"dry_run": true, "retention_days": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, out["dry_run"])
	assert.Equal(t, float64(0), out["target_count"])
}

package handlers

import (
	"context"
	"net/http"
	"real-estate-catalog/internal/analytics"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/leads"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/ratelimit"
	"real-estate-catalog/internal/recommend"
	"real-estate-catalog/internal/search"
	"real-estate-catalog/internal/validation"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// FeaturedLimit is the size of the home page featured block
	FeaturedLimit = 8
	popularLimit  = 4
	searchPerPage = 20
)

// Searcher runs free-text queries
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

// PublicHandler serves the visitor-facing catalog API
type PublicHandler struct {
	catalog   *catalog.Service
	recommend *recommend.Engine
	views     *analytics.Service
	leads     *leads.Service
	searcher  Searcher
	store     search.Store
	limiter   *ratelimit.Limiter
	server    config.ServerConfig
	trending  int
	log       *logrus.Logger
}

// PublicDeps groups the services behind the public API. Searcher and
// Limiter may be nil.
type PublicDeps struct {
	Catalog       *catalog.Service
	Recommend     *recommend.Engine
	Views         *analytics.Service
	Leads         *leads.Service
	Searcher      Searcher
	Store         search.Store
	Limiter       *ratelimit.Limiter
	Server        config.ServerConfig
	TrendingLimit int
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(deps PublicDeps, log *logrus.Logger) *PublicHandler {
	trending := deps.TrendingLimit
	if trending <= 0 {
		trending = 6
	}
	return &PublicHandler{
		catalog:   deps.Catalog,
		recommend: deps.Recommend,
		views:     deps.Views,
		leads:     deps.Leads,
		searcher:  deps.Searcher,
		store:     deps.Store,
		limiter:   deps.Limiter,
		server:    deps.Server,
		trending:  trending,
		log:       logging.OrDefault(log),
	}
}

// Register mounts the public routes
func (h *PublicHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/catalogo/:operacion/*segments", h.Browse)
	api.GET("/ciudad/:ciudad", h.ByCity)
	api.GET("/barrio/:barrio", h.ByNeighborhood)
	api.GET("/destacados", h.Featured)
	api.GET("/inmueble/:slug", h.Detail)
	api.GET("/buscar", h.Search)

	if h.limiter != nil {
		api.POST("/leads", h.limiter.Middleware(h.log), h.CreateLead)
	} else {
		api.POST("/leads", h.CreateLead)
	}
}

// listingResponse adds the noindex hint used by the SEO layer
func listingResponse(body gin.H, total int64) gin.H {
	body["noindex"] = total < 2
	return body
}

// Browse serves /{operacion}/{segment} and /{operacion}/{ciudad}/{segment}
func (h *PublicHandler) Browse(c *gin.Context) {
	var segments []string
	for _, s := range strings.Split(c.Param("segments"), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	listing, err := h.catalog.Browse(c.Request.Context(), c.Param("operacion"), segments, listingOptions(c))
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, listingResponse(gin.H{
		"items":       listing.Items,
		"total_count": listing.TotalCount,
		"page":        listing.Page.Page,
		"total_pages": listing.TotalPages,
		"operacion":   listing.Operation,
		"titulo":      listing.Heading,
		"ciudad":      listing.City,
		"tipo":        listing.Type,
		"tag":         listing.Tag,
	}, listing.TotalCount))
}

// ByCity serves /ciudad/{ciudad}
func (h *PublicHandler) ByCity(c *gin.Context) {
	page, err := h.catalog.ByCity(c.Request.Context(), c.Param("ciudad"), listingOptions(c))
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, listingResponse(gin.H{
		"items":       page.Items,
		"total_count": page.TotalCount,
		"page":        page.Page,
		"total_pages": page.TotalPages,
	}, page.TotalCount))
}

// ByNeighborhood serves /barrio/{barrio}
func (h *PublicHandler) ByNeighborhood(c *gin.Context) {
	page, n, err := h.catalog.ByNeighborhood(c.Request.Context(), c.Param("barrio"), listingOptions(c))
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, listingResponse(gin.H{
		"items":       page.Items,
		"total_count": page.TotalCount,
		"page":        page.Page,
		"total_pages": page.TotalPages,
		"barrio":      n,
	}, page.TotalCount))
}

// Featured returns the highlighted properties
func (h *PublicHandler) Featured(c *gin.Context) {
	page, err := h.catalog.Featured(c.Request.Context(), FeaturedLimit)
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Detail returns one property with its recommendation blocks and records
// the visit
func (h *PublicHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.catalog.BySlug(ctx, c.Param("slug"))
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}

	var similar, trending, popular recommend.Result
	ip, sid := c.ClientIP(), sessionID(c)
	logger := h.log.WithField("property_id", p.ID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if similar, err = h.recommend.Similar(gctx, p); err != nil {
			logger.WithError(err).Warn("Similar properties unavailable")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if trending, err = h.recommend.Trending(gctx, h.trending); err != nil {
			logger.WithError(err).Warn("Trending properties unavailable")
		}
		return nil
	})
	if p.NeighborhoodID != nil {
		g.Go(func() error {
			var err error
			if popular, err = h.recommend.PopularInNeighborhood(gctx, *p.NeighborhoodID, p.ID, popularLimit); err != nil {
				logger.WithError(err).Warn("Neighborhood properties unavailable")
			}
			return nil
		})
	}
	if h.views != nil {
		g.Go(func() error {
			h.views.RecordView(gctx, p.ID, ip, sid)
			return nil
		})
	}
	_ = g.Wait()

	msg := catalog.WhatsAppMessage(p, h.server.SiteURL)
	c.JSON(http.StatusOK, gin.H{
		"inmueble":         p,
		"similares":        nonNil(similar.Items),
		"similares_tipo":   similar.Tier,
		"tendencias":       nonNil(trending.Items),
		"populares_barrio": nonNil(popular.Items),
		"whatsapp":         catalog.WhatsAppLink(h.server.WhatsAppPhone, msg),
	})
}

func nonNil(items []models.Property) []models.Property {
	if items == nil {
		return []models.Property{}
	}
	return items
}

// Search serves /buscar?q= through the search engine
func (h *PublicHandler) Search(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": updatingMsg})
		return
	}

	page := catalog.ParsePage(c.Query("page"))
	req := search.Request{
		Query: strings.TrimSpace(c.Query("q")),
		Filters: search.Filters{
			City:     c.Query("ciudad"),
			Type:     c.Query("tipo"),
			MinPrice: int64(queryInt(c, "precio_min", 0)),
			MaxPrice: int64(queryInt(c, "precio_max", 0)),
			MinRooms: queryInt(c, "habitaciones", 0),
			Sort:     c.Query("orden"),
		},
		Limit:  searchPerPage,
		Offset: int64((page - 1) * searchPerPage),
	}
	if op, ok := models.ParseOperation(c.Query("operacion")); ok {
		req.Filters.Operation = op
	}

	ctx := c.Request.Context()
	res, err := h.searcher.Search(ctx, req)
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}
	items, err := search.Hydrate(ctx, h.store, res)
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total_count": res.TotalHits,
		"page":        page,
		"query":       req.Query,
	})
}

// CreateLead stores a contact request
func (h *PublicHandler) CreateLead(c *gin.Context) {
	var in leads.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "datos inválidos"})
		return
	}
	if err := validation.Struct(in); err != nil {
		respondPublicError(c, h.log, err)
		return
	}

	lead, err := h.leads.Create(c.Request.Context(), in)
	if err != nil {
		respondPublicError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

package handlers

import (
	"context"
	"net/http"
	"real-estate-catalog/internal/analytics"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/cleanup"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/leads"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/pipeline"
	"real-estate-catalog/internal/ratelimit"
	"real-estate-catalog/internal/slug"
	"real-estate-catalog/internal/snapshot"
	"real-estate-catalog/internal/validation"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueueStats reports the search-sync backlog
type QueueStats interface {
	GetQueueStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminDeps groups the services behind the admin API. Queue and Limiter
// may be nil.
type AdminDeps struct {
	DB        *database.GormDB
	Pipeline  *pipeline.Pipeline
	Catalog   *catalog.Service
	Leads     *leads.Service
	Snapshots *snapshot.Service
	Cleanup   *cleanup.Service
	Views     *analytics.Service
	Queue     QueueStats
	Limiter   *ratelimit.Limiter
	Config    *config.Config
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	db              *database.GormDB
	pipeline        *pipeline.Pipeline
	catalog         *catalog.Service
	leads           *leads.Service
	snapshotService *snapshot.Service
	cleanupService  *cleanup.Service
	views           *analytics.Service
	queue           QueueStats
	limiter         *ratelimit.Limiter
	config          *config.Config
	log             *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deps AdminDeps, log *logrus.Logger) *AdminHandler {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &AdminHandler{
		db:              deps.DB,
		pipeline:        deps.Pipeline,
		catalog:         deps.Catalog,
		leads:           deps.Leads,
		snapshotService: deps.Snapshots,
		cleanupService:  deps.Cleanup,
		views:           deps.Views,
		queue:           deps.Queue,
		limiter:         deps.Limiter,
		config:          cfg,
		log:             logging.OrDefault(log),
	}
}

// Register mounts the admin routes under /api/admin
func (h *AdminHandler) Register(r gin.IRouter) {
	admin := r.Group("/api/admin")
	{
		// Properties
		admin.POST("/properties", h.CreateProperty)
		admin.GET("/properties", h.ListProperties)
		admin.GET("/properties/:id", h.GetProperty)
		admin.PUT("/properties/:id", h.UpdateProperty)
		admin.DELETE("/properties/:id", h.DeleteProperty)
		admin.GET("/properties/:id/history", h.GetPropertyHistory)
		admin.GET("/properties/:id/views", h.GetPropertyViews)
		admin.GET("/changes/recent", h.GetRecentChanges)

		// Leads
		admin.GET("/leads", h.ListLeads)
		admin.PATCH("/leads/:id", h.UpdateLeadStatus)

		// Reference data and statistics
		admin.GET("/neighborhoods", h.ListNeighborhoods)
		admin.GET("/stats", h.GetStats)
		admin.GET("/ratelimit/:ip", h.GetRateLimitStats)

		// Cleanup operations
		admin.POST("/cleanup/run", h.RunCleanup)
		admin.GET("/cleanup/logs", h.GetDeleteLogs)
	}
}

func (h *AdminHandler) bindProperty(c *gin.Context) (pipeline.PropertyInput, bool) {
	var in pipeline.PropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return in, false
	}
	if err := validation.Struct(in); err != nil {
		respondError(c, h.log, err)
		return in, false
	}
	return in, true
}

// CreateProperty writes a new property with its children
func (h *AdminHandler) CreateProperty(c *gin.Context) {
	in, ok := h.bindProperty(c)
	if !ok {
		return
	}
	p, err := h.pipeline.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProperty replaces a property's fields and children
func (h *AdminHandler) UpdateProperty(c *gin.Context) {
	in, ok := h.bindProperty(c)
	if !ok {
		return
	}
	p, err := h.pipeline.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProperty removes a property and everything that depends on it
func (h *AdminHandler) DeleteProperty(c *gin.Context) {
	id := c.Param("id")
	if err := h.pipeline.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "property deleted", "id": id})
}

// ListProperties returns a fresh filtered page
func (h *AdminHandler) ListProperties(c *gin.Context) {
	f := catalog.Filter{
		MinRooms:        queryInt(c, "habitaciones", 0),
		HighlightedOnly: c.Query("destacado") == "true",
		Sort:            catalog.ParseSort(c.Query("orden")),
		Page:            catalog.ParsePage(c.Query("page")),
	}
	if op, ok := models.ParseOperation(c.Query("operacion")); ok {
		f.Operation = op
	}
	// unknown values still filter, and match nothing
	if city := c.Query("ciudad"); city != "" {
		f.City, _ = slug.NormalizeCity(city)
	}
	if typ := c.Query("tipo"); typ != "" {
		f.Type, _ = slug.NormalizeType(typ)
	}

	page, err := h.catalog.AdminList(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetProperty returns one property read fresh from the datastore
func (h *AdminHandler) GetProperty(c *gin.Context) {
	p, err := h.catalog.AdminGet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetPropertyHistory returns snapshot history for a property
func (h *AdminHandler) GetPropertyHistory(c *gin.Context) {
	propertyID := c.Param("id")
	limit := queryInt(c, "limit", 30)

	history, err := h.snapshotService.GetPropertyHistory(c.Request.Context(), propertyID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property_id": propertyID,
		"snapshots":   history.Snapshots,
		"changes":     history.Changes,
		"count":       len(history.Snapshots),
	})
}

// GetPropertyViews returns how often a property was viewed in the last N days
func (h *AdminHandler) GetPropertyViews(c *gin.Context) {
	if h.views == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "view analytics not available"})
		return
	}
	days := queryInt(c, "days", h.config.Analytics.TrendingWindowDays)
	if days < 1 {
		days = 1
	}
	propertyID := c.Param("id")
	since := time.Now().UTC().AddDate(0, 0, -days)

	n, err := h.views.CountSince(c.Request.Context(), propertyID, since)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"property_id": propertyID,
		"days":        days,
		"views":       n,
	})
}

// GetRecentChanges returns recent price changes across the catalog
func (h *AdminHandler) GetRecentChanges(c *gin.Context) {
	changes, err := h.snapshotService.GetRecentPriceChanges(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changes": changes,
		"count":   len(changes),
	})
}

// ListLeads returns leads newest first
func (h *AdminHandler) ListLeads(c *gin.Context) {
	res, err := h.leads.List(c.Request.Context(), leads.ListFilter{
		Status:   models.LeadStatus(c.Query("estado")),
		Page:     catalog.ParsePage(c.Query("page")),
		PageSize: queryInt(c, "page_size", 0),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateLeadStatus moves a lead through nuevo → contactado → cerrado
func (h *AdminHandler) UpdateLeadStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}
	var req struct {
		Status models.LeadStatus `json:"estado"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lead, err := h.leads.UpdateStatus(c.Request.Context(), uint(id), req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// ListNeighborhoods returns every barrio in display order
func (h *AdminHandler) ListNeighborhoods(c *gin.Context) {
	items, err := h.db.ListNeighborhoods(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"barrios": items,
		"count":   len(items),
	})
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	catalogStats, err := h.db.GetStats(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	stats := gin.H{"catalog": catalogStats}

	// Property changes (last 7 days)
	last7days := time.Now().UTC().AddDate(0, 0, -7)
	var recentChanges int64
	if err := h.db.DB().WithContext(ctx).Model(&models.PropertyChange{}).
		Where("detected_at >= ?", last7days).
		Count(&recentChanges).Error; err != nil {
		h.log.WithError(err).Warn("Failed to count recent changes")
	}
	stats["changes"] = gin.H{"last_7_days": recentChanges}

	if deleteStats, err := h.cleanupService.GetDeleteStats(ctx); err != nil {
		h.log.WithError(err).Warn("Failed to get delete stats")
	} else {
		stats["deletions"] = deleteStats
	}

	if h.queue != nil {
		if queueStats, err := h.queue.GetQueueStats(ctx); err != nil {
			h.log.WithError(err).Warn("Failed to get search queue stats")
		} else {
			stats["search_queue"] = queueStats
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetRateLimitStats returns lead rate limiter usage for one client IP
func (h *AdminHandler) GetRateLimitStats(c *gin.Context) {
	if h.limiter == nil {
		c.JSON(http.StatusOK, ratelimit.Stats{Enabled: false})
		return
	}
	c.JSON(http.StatusOK, h.limiter.Stats(c.Param("ip")))
}

// RunCleanup purges expired view events
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		RetentionDays int   `json:"retention_days"` // default: analytics.view_retention_days
		MaxDeletions  int   `json:"max_deletions"`  // default: cleanup.max_deletions
		DryRun        *bool `json:"dry_run"`        // default: cleanup.dry_run
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	purge := cleanup.PurgeConfig{
		Retention:    h.config.Analytics.GetViewRetention(),
		MaxDeletions: h.config.Cleanup.MaxDeletions,
		DryRun:       h.config.Cleanup.DryRun,
	}
	if req.RetentionDays > 0 {
		purge.Retention = time.Duration(req.RetentionDays) * 24 * time.Hour
	}
	if req.MaxDeletions > 0 {
		purge.MaxDeletions = req.MaxDeletions
	}
	if req.DryRun != nil {
		purge.DryRun = *req.DryRun
	}

	h.log.WithFields(logrus.Fields{
		"retention": purge.Retention.String(),
		"max":       purge.MaxDeletions,
		"dry_run":   purge.DryRun,
	}).Info("Admin: running view cleanup")

	result, err := h.cleanupService.PurgeViews(c.Request.Context(), purge)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	logs, err := h.cleanupService.GetRecentDeleteLogs(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

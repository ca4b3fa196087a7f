// Package handlers exposes the catalog over HTTP with gin.
package handlers

import (
	"errors"
	"net/http"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/leads"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/pipeline"
	"real-estate-catalog/internal/search"
	"real-estate-catalog/internal/validation"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	sessionCookie = "catalog_sid"
	updatingMsg   = "Estamos actualizando el catálogo, intenta de nuevo en unos minutos"
	notFoundMsg   = "No encontramos lo que buscas"
)

// respondError maps service errors onto status codes. Unknown errors are
// logged and reported as 500 with their message.
func respondError(c *gin.Context, log *logrus.Logger, err error) {
	log = logging.OrDefault(log)
	var validationErr *validation.RequestValidationError
	var stepErr *pipeline.StepError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "datos inválidos", "fields": validationErr.Fields})
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, pipeline.ErrPropertyNotFound),
		errors.Is(err, leads.ErrLeadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrInvalidInput),
		errors.Is(err, leads.ErrInvalidStatus),
		errors.Is(err, leads.ErrUnknownProperty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, search.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &stepErr):
		log.WithError(err).WithField("step", stepErr.Step).Error("Admin write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "step": stepErr.Step})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// respondPublicError maps errors for visitor-facing routes. Only validation
// and not-found outcomes carry detail; everything else is logged and reported
// with a fixed message.
func respondPublicError(c *gin.Context, log *logrus.Logger, err error) {
	log = logging.OrDefault(log)
	var validationErr *validation.RequestValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "datos inválidos", "fields": validationErr.Fields})
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	case errors.Is(err, leads.ErrUnknownProperty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "El inmueble indicado no existe"})
	case errors.Is(err, search.ErrUnavailable):
		log.WithError(err).WithField("path", c.FullPath()).Warn("Search unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": updatingMsg})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": updatingMsg})
	}
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func listingOptions(c *gin.Context) catalog.Options {
	return catalog.Options{
		Neighborhood: c.Query("barrio"),
		MinRooms:     queryInt(c, "habitaciones", 0),
		Sort:         catalog.ParseSort(c.Query("orden")),
		Page:         catalog.ParsePage(c.Query("page")),
	}
}

// sessionID returns the anonymous visitor id, issuing a cookie on first visit
func sessionID(c *gin.Context) string {
	if sid, err := c.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(sid); err == nil {
			return sid
		}
	}
	sid := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, sid, 30*24*3600, "/", "", false, true)
	return sid
}

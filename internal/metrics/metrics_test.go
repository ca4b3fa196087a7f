package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordQuery(t *testing.T) {
	before := testutil.ToFloat64(DatastoreErrors.WithLabelValues("by_city"))

	RecordQuery("by_city", 5*time.Millisecond, nil)
	assert.Equal(t, before, testutil.ToFloat64(DatastoreErrors.WithLabelValues("by_city")))

	RecordQuery("by_city", 5*time.Millisecond, errors.New("timeout"))
	assert.Equal(t, before+1, testutil.ToFloat64(DatastoreErrors.WithLabelValues("by_city")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/ping", "204"))
	unmatched := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "unmatched", "404"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/ping", "204")))
	assert.Equal(t, unmatched+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

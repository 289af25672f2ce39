package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwiceOnFreshRegistries(t *testing.T) {
	require.NotPanics(t, func() { Register(prometheus.NewRegistry()) })
	require.NotPanics(t, func() { Register(prometheus.NewRegistry()) })
}

func TestObserveTransition(t *testing.T) {
	before := testutil.ToFloat64(relationTransitions.WithLabelValues("add_member", "rejected"))
	ObserveTransition("add_member", "rejected")
	after := testutil.ToFloat64(relationTransitions.WithLabelValues("add_member", "rejected"))
	assert.Equal(t, before+1, after)
}

func TestMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/casts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/casts/:id", "204")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/casts/abc", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, float64(0), testutil.ToFloat64(httpInFlight))
}

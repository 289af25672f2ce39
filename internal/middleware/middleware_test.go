package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rocky-roll-call/rrc-backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	id := uuid.New()
	token, err := svc.Generate(id, "frank@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", JWT(svc), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextUserID).(uuid.UUID).String())
	})

	rec := serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id.String(), rec.Body.String())

	rec = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", map[string]string{"Authorization": token}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer nope"}).Code)
}

func TestRateLimiter(t *testing.T) {
	lim := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/req", lim.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/req", nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/req", nil).Code)
	rec := serve(r, http.MethodPost, "/req", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/req", nil).Code)
}

func TestRateLimiterKeysByProfile(t *testing.T) {
	lim := NewRateLimiter(0.001, 1)
	r := gin.New()
	r.POST("/req", func(c *gin.Context) {
		c.Set(ContextUserID, c.GetHeader("X-User"))
		c.Next()
	}, lim.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	a := map[string]string{"X-User": "a"}
	b := map[string]string{"X-User": "b"}
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/req", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/req", a).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/req", b).Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodGet, "/x", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(r, http.MethodGet, "/x", map[string]string{"Origin": "http://evil.test"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))

	rec = serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "http://evil.test"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/boom", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/boom", entries[1].ContextMap()["route"])
}

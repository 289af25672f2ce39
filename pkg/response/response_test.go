package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	h(c)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestEnvelope(t *testing.T) {
	rec, body := run(t, func(c *gin.Context) { OK(c, gin.H{"name": "Test Cast"}) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")

	rec, body = run(t, func(c *gin.Context) { Conflict(c, "a cast with this name already exists") })
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "a cast with this name already exists", body["error"])
	assert.NotContains(t, body, "data")

	_, body = run(t, func(c *gin.Context) { Fail(c, http.StatusTooManyRequests, "") })
	assert.Equal(t, "Too Many Requests", body["error"])
}

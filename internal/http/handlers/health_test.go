package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthRouter(checks ...Check) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler("v1", checks...)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/readyz", h.Readiness)
	return r
}

func get(t *testing.T, r *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthOptionalCheckDegrades(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }
	r := healthRouter(Check{Name: "database", Ping: ok}, Check{Name: "redis", Ping: down, Optional: true})

	code, body := get(t, r, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "degraded: connection refused", checks["redis"])
	assert.Contains(t, checks, "memory_alloc_mb")

	code, _ = get(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthRequiredCheckFails(t *testing.T) {
	down := func(context.Context) error { return errors.New("timeout") }
	r := healthRouter(Check{Name: "database", Ping: down})

	code, body := get(t, r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])

	code, body = get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, []any{"database"}, body["failed"])
}

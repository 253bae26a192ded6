package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emporio-pos/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(tokens *auth.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", AuthMiddleware(tokens))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": *UserID(c), "role": c.GetString(ctxRole)})
	})
	api.GET("/admin", RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewManager("secret", time.Hour)
	r := newRouter(tokens)

	cashier, err := tokens.GenerateToken(7, auth.RoleCashier)
	require.NoError(t, err)
	admin, err := tokens.GenerateToken(1, auth.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", cashier).Code, "missing Bearer prefix")
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", "Bearer garbage").Code)

	w := get(r, "/api/me", "Bearer "+cashier)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"cashier"}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, get(r, "/api/admin", "Bearer "+cashier).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/api/admin", "Bearer "+admin).Code)
}

func TestUserID_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, UserID(c))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := get(r, "/ok", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "till-3-0001")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "till-3-0001", w.Header().Get(RequestIDHeader))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "till-3-0001", entries[1].ContextMap()["request_id"])
	assert.EqualValues(t, 404, entries[1].ContextMap()["status"])
}

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(m.Handler())
	r.GET("/api/sales/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	get(r, "/api/sales/1", "")
	get(r, "/api/sales/2", "")
	get(r, "/nowhere", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/sales/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))

	n, err := testutil.GatherAndCount(reg, "pos_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	build := func(l RateLimiter, enabled bool) *gin.Engine {
		r := gin.New()
		r.Use(RateLimit(RateLimitConfig{Enabled: enabled, Limit: 1, Window: time.Minute}, l))
		r.POST("/generate/outlines", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	t.Run("denied", func(t *testing.T) {
		l := &fakeLimiter{allowed: false}
		w := serve(build(l, true), httptest.NewRequest(http.MethodPost, "/generate/outlines", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		require.Len(t, l.keys, 1)
		assert.True(t, strings.HasSuffix(l.keys[0], ":/generate/outlines"))
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		l := &fakeLimiter{err: errors.New("redis down")}
		w := serve(build(l, true), httptest.NewRequest(http.MethodPost, "/generate/outlines", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		l := &fakeLimiter{allowed: false}
		w := serve(build(l, false), httptest.NewRequest(http.MethodPost, "/generate/outlines", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, l.keys)
	})
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestCORS_WildcardDisablesCredentials(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://example.com")
	w := serve(r, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

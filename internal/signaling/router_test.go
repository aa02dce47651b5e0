package signaling

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestCORSMiddlewareSetsAllowAllOrigin(t *testing.T) {
	r := newTestEngine(corsMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewareAdvertisesAllowedMethods(t *testing.T) {
	r := newTestEngine(corsMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "POST, DELETE, PATCH", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSMiddlewareReflectsRequestedHeaders(t *testing.T) {
	r := newTestEngine(corsMiddleware())

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Access-Control-Request-Headers", "X-Custom-Extension")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "X-Custom-Extension", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSMiddlewareAllowsAnyHeaderWithoutPreflightRequest(t *testing.T) {
	r := newTestEngine(corsMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestSecurityHeadersSetsPermissionsPolicy(t *testing.T) {
	r := newTestEngine(securityHeaders())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "autoplay=(self)", rec.Header().Get("Permissions-Policy"))
}

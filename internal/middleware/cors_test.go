package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS_Wildcard(t *testing.T) {
	r := newTestRouter(CORS("*"))
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowsListedOrigin(t *testing.T) {
	r := newTestRouter(CORS("http://localhost:3000,http://localhost:3001"))
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3001", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RejectsUnlistedOrigin(t *testing.T) {
	r := newTestRouter(CORS("http://localhost:3000"))
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightReturnsNoContent(t *testing.T) {
	r := newTestRouter(CORS("*"))
	req := httptest.NewRequest(http.MethodOptions, "/admin/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestParseOrigins_TrimsWhitespace(t *testing.T) {
	origins := parseOrigins(" http://a.example.com , http://b.example.com ")
	assert.True(t, origins["http://a.example.com"])
	assert.True(t, origins["http://b.example.com"])
}

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withClaims(claims *service.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextKeyClaims, claims)
		}
		c.Next()
	}
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterKeysByUser(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	user := &service.Claims{UserID: 1}

	r := gin.New()
	r.GET("/a", withClaims(user), rl.Middleware(), ok)
	r.GET("/b", withClaims(&service.Claims{UserID: 2}), rl.Middleware(), ok)

	for i := 0; i < 2; i++ {
		if w := serve(r, httptest.NewRequest(http.MethodGet, "/a", nil)); w.Code != http.StatusOK {
			t.Fatalf("Expected 200 for request %d, got %d", i, w.Code)
		}
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/a", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once the bucket is empty, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected a Retry-After header on 429")
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/b", nil)); w.Code != http.StatusOK {
		t.Errorf("Expected another user to keep its own bucket, got %d", w.Code)
	}
}

func TestRateLimiterRefillsAfterInterval(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Second)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if _, ok := rl.take("user:1"); !ok {
		t.Fatal("Expected the first request to pass")
	}
	now = now.Add(10 * time.Second)
	wait, ok := rl.take("user:1")
	if ok {
		t.Fatal("Expected the second request inside the interval to be limited")
	}
	if wait != 20*time.Second {
		t.Errorf("Expected 20s until the refill, got %v", wait)
	}

	now = now.Add(20 * time.Second)
	if _, ok := rl.take("user:1"); !ok {
		t.Error("Expected a request after the interval to pass")
	}
}

func TestRequireAnyPermission(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		want        int
	}{
		{"first permission", []string{"system:read"}, http.StatusOK},
		{"second permission", []string{"sessions:write"}, http.StatusOK},
		{"unrelated permission", []string{"sessions:read"}, http.StatusForbidden},
		{"no permissions", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			claims := &service.Claims{UserID: 1, TokenType: service.TokenTypeAdmin, Permissions: tt.permissions}
			r.GET("/", withClaims(claims), RequireAnyPermission("system:read", "sessions:write"), ok)

			if w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("assessment ", 500)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "tiny") })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, large) })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := serve(r, req)
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Expected brotli encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("Expected a valid brotli stream, got %v", err)
	}
	if string(body) != large {
		t.Errorf("Expected the decompressed body to round-trip, got %d bytes", len(body))
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = serve(r, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "tiny" {
		t.Errorf("Expected a short body to pass through, got %q encoded %q", w.Body.String(), w.Header().Get("Content-Encoding"))
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = serve(r, req)
	if w.Header().Get("Content-Encoding") != "" {
		t.Errorf("Expected /metrics to be skipped, got %q", w.Header().Get("Content-Encoding"))
	}
}

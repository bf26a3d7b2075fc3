package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/groups/0xabc/messages":       "/groups/:id/messages",
		"/groups/alpha/messages":       "/groups/:id/messages",
		"/collections/0xabc/preview":   "/collections/:address/preview",
		"/groups/alpha/something-else": "/groups/:other",
		"/health":                      "/health",
		"/groups/":                     "/groups/",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	h := ValidateRequest(ok)

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        int
	}{
		{"json post", http.MethodPost, "/access", "application/json", "{}", http.StatusOK},
		{"form post", http.MethodPost, "/access", "application/x-www-form-urlencoded", "a=b", http.StatusUnsupportedMediaType},
		{"traversal", http.MethodGet, "/groups/../etc/messages", "", "", http.StatusBadRequest},
		{"script in query", http.MethodGet, "/health?x=javascript:alert(1)", "", "", http.StatusBadRequest},
		{"plain get", http.MethodGet, "/health", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(8)(ok)
	req := httptest.NewRequest(http.MethodPost, "/access", strings.NewReader(strings.Repeat("x", 20)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"kind":"validation_error"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, zerolog.Nop(), cfg)
}

func send(h http.Handler, wallet, ip string) int {
	req := httptest.NewRequest(http.MethodPost, "/groups/alpha/messages", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Real-IP", ip)
	if wallet != "" {
		req.Header.Set(WalletHeader, wallet)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitPerWallet(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{})
	h := rl.Middleware(ok)

	walletA := "0x1111111111111111111111111111111111111111"
	walletB := "0x2222222222222222222222222222222222222222"

	for i := 0; i < 30; i++ {
		if code := send(h, walletA, "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send(h, walletA, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	// Another wallet from the same IP has its own budget.
	if code := send(h, walletB, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("expected 200 for a different wallet, got %d", code)
	}
}

func TestRateLimitWhitelist(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{Whitelist: []string{"10.1.0.0/16"}})
	h := rl.Middleware(ok)

	for i := 0; i < 40; i++ {
		if code := send(h, "", "10.1.2.3"); code != http.StatusOK {
			t.Fatalf("request %d: expected whitelisted 200, got %d", i, code)
		}
	}
}

func TestBlockedIP(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{})
	h := rl.Middleware(ok)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Real-IP", "10.9.9.9")
	rl.blocker.Block(req.Context(), "10.9.9.9", 0, "test")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

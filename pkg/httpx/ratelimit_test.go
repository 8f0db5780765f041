package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		want    string
		proxied string
	}{
		{"remote addr", nil, "192.168.1.1", "192.168.1.1"},
		{"forwarded for first hop", map[string]string{"X-Forwarded-For": "203.0.113.1, 192.168.1.1"}, "192.168.1.1", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "192.168.1.1", "203.0.113.2"},
		{"blank forwarded for", map[string]string{"X-Forwarded-For": " , 10.0.0.1"}, "192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.ClientIP(req))
			require.Equal(t, tt.proxied, httpx.ProxiedClientIP(req))
		})
	}
}

func TestRateLimitByIPTrustProxy(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	send := func(h http.Handler, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("forged headers share the peer bucket", func(t *testing.T) {
		t.Parallel()
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1})(ok)

		require.Equal(t, http.StatusOK, send(h, "203.0.113.1"))
		require.Equal(t, http.StatusTooManyRequests, send(h, "203.0.113.2"))
	})

	t.Run("trusted proxy keys on forwarded address", func(t *testing.T) {
		t.Parallel()
		cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1, TrustProxy: true}
		h := httpx.RateLimitByIPAndFormField(cfg, "username")(ok)

		require.Equal(t, http.StatusOK, send(h, "203.0.113.1"))
		require.Equal(t, http.StatusOK, send(h, "203.0.113.2"))
		require.Equal(t, http.StatusTooManyRequests, send(h, "203.0.113.1"))
	})
}

func TestFormField(t *testing.T) {
	t.Parallel()

	t.Run("query", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/?username=alice", nil)
		require.Equal(t, "alice", httpx.FormField("username")(req))
	})

	t.Run("form body", func(t *testing.T) {
		t.Parallel()
		form := url.Values{"username": {"bob"}}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		require.Equal(t, "bob", httpx.FormField("username")(req))
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		require.Empty(t, httpx.FormField("username")(req))
	})
}

func TestCompositeKeySkipsEmpty(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	key := httpx.CompositeKey(":", httpx.ClientIP, httpx.FormField("username"))
	require.Equal(t, "192.168.1.1", key(req))

	req = httptest.NewRequest(http.MethodGet, "/?username=alice", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1:alice", key(req))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Hour, Burst: 3}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := httpx.RateLimitByIP(cfg)(ok)

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for range 3 {
		require.Equal(t, http.StatusOK, send("10.0.0.1:1").Code)
	}

	rec := send("10.0.0.1:1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	require.Equal(t, http.StatusOK, send("10.0.0.2:1").Code, "other clients keep their own bucket")
}

func TestRateLimitEmptyKeyBypasses(t *testing.T) {
	t.Parallel()

	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1}
	h := httpx.RateLimit(cfg, func(*http.Request) string { return "" })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimitFromEnv(t *testing.T) {
	t.Setenv("RATELIMIT_TEST_REQUESTS", "7")
	t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "30")
	t.Setenv("RATELIMIT_TEST_BURST", "-1")

	def := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 2}
	got := httpx.RateLimitFromEnv("TEST", def)

	require.Equal(t, 7, got.RequestsPerWindow)
	require.Equal(t, 30*time.Second, got.Window)
	require.Equal(t, 2, got.Burst)
}

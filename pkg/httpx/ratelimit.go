package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: RequestsPerWindow refill over Window,
// with up to Burst requests available at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int

	// TrustProxy keys the IP limiters on X-Forwarded-For and X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

func (c RateLimitConfig) clientIP() KeyExtractor {
	if c.TrustProxy {
		return ProxiedClientIP
	}
	return ClientIP
}

// Profiles. Each can be overridden through RATELIMIT_<NAME>_REQUESTS,
// RATELIMIT_<NAME>_WINDOW_SEC and RATELIMIT_<NAME>_BURST.
var (
	// StrictLimit guards credential checks (login, token).
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}
	// PublicLimit guards cheap unauthenticated reads.
	PublicLimit = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

func init() {
	StrictLimit = RateLimitFromEnv("STRICT", StrictLimit)
	PublicLimit = RateLimitFromEnv("PUBLIC", PublicLimit)
}

// RateLimitFromEnv overlays RATELIMIT_<prefix>_* variables onto def.
// Unparseable or non-positive values are ignored.
func RateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	get := func(field string) (int, bool) {
		n, err := strconv.Atoi(os.Getenv("RATELIMIT_" + prefix + "_" + field))
		return n, err == nil && n > 0
	}

	cfg := def
	if n, ok := get("REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := get("WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := get("BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

// KeyExtractor maps a request to the bucket it is charged against.
// An empty key exempts the request.
type KeyExtractor func(*http.Request) string

// ClientIP returns the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ProxiedClientIP prefers the first hop of X-Forwarded-For, then X-Real-IP,
// then falls back to ClientIP. Clients can forge both headers.
func ProxiedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return ClientIP(r)
}

// FormField keys on a request parameter, read from the query or a
// form-encoded body.
func FormField(name string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return r.FormValue(name)
	}
}

// CompositeKey joins the non-empty keys of extractors with sep.
func CompositeKey(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if k := extract(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

const sweepInterval = 5 * time.Minute

type buckets struct {
	cfg   RateLimitConfig
	limit rate.Limit

	mu        sync.Mutex
	byKey     map[string]*rate.Limiter
	lastSweep time.Time
}

func (b *buckets) get(key string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Sub(b.lastSweep) >= sweepInterval {
		// A full bucket has been idle long enough to forget.
		for k, l := range b.byKey {
			if l.TokensAt(now) >= float64(b.cfg.Burst) {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	l, ok := b.byKey[key]
	if !ok {
		l = rate.NewLimiter(b.limit, b.cfg.Burst)
		b.byKey[key] = l
	}
	return l
}

// RateLimit rejects requests with 429 once the bucket for their key is
// empty.
func RateLimit(cfg RateLimitConfig, key KeyExtractor) Middleware {
	b := &buckets{
		cfg:       cfg,
		limit:     rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		byKey:     make(map[string]*rate.Limiter),
		lastSweep: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := b.get(k)
			if l.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Reserve()
			retryAfter := max(int(res.Delay().Seconds()), 1)
			res.Cancel()

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP charges each client address separately.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, cfg.clientIP())
}

// RateLimitByIPAndFormField charges each (address, field value) pair
// separately, e.g. per username on a login form.
func RateLimitByIPAndFormField(cfg RateLimitConfig, field string) Middleware {
	return RateLimit(cfg, CompositeKey(":", cfg.clientIP(), FormField(field)))
}

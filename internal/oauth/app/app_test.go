package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		OAuth:               service.DefaultConfig(),
		BcryptCost:          cryptox.MinBcryptCost,
		DBDriver:            DriverSQLite,
		DatabaseFile:        filepath.Join(t.TempDir(), "gatekeeper.db"),
		SessionStore:        SessionsMemory,
		SessionTTL:          time.Hour,
		Env:                 "dev",
		LogLevel:            "error",
		Port:                8080,
		ShutdownGracePeriod: time.Second,
	}
}

func TestNewServesProbes(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory sessions", func(*Config) {}},
		{"redis sessions", func(c *Config) {
			c.SessionStore = SessionsRedis
			c.RedisAddr = mr.Addr()
		}},
		{"metrics enabled", func(c *Config) {
			c.MetricsEnabled = true
			c.MetricsAddr = "127.0.0.1:0"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)

			a, err := New(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.closeStores() })

			for _, path := range []string{"/livez", "/readyz"} {
				rec := httptest.NewRecorder()
				a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				require.Equal(t, http.StatusOK, rec.Code, "%s: %s", path, rec.Body.String())
			}
			require.Equal(t, cfg.MetricsEnabled, a.metricsServer != nil)
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBDriver = "oracle"

	_, err := New(cfg)
	require.ErrorContains(t, err, "invalid configuration")
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionStore = SessionsRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := New(cfg)
	require.ErrorContains(t, err, "session store")
}

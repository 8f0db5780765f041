package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/session"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

type failingSessions struct {
	session.Store
}

func (failingSessions) Ping(context.Context) error { return errors.New("connection refused") }

func TestLivez(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "test", resp.Version)
	require.Nil(t, resp.Checks)
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp authsdk.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "ok", resp.Status)
		require.Equal(t, &authsdk.HealthChecks{Database: "ok", Sessions: "ok"}, resp.Checks)
	})

	t.Run("database down", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.st.Close())

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp authsdk.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "degraded", resp.Status)
		require.Contains(t, resp.Checks.Database, "error")
		require.Equal(t, "ok", resp.Checks.Sessions)
	})

	t.Run("sessions down", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		h := ReadyzHandler(time.Now(), "test", f.st, failingSessions{})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp authsdk.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "degraded", resp.Status)
		require.Equal(t, "ok", resp.Checks.Database)
		require.Equal(t, "error: connection refused", resp.Checks.Sessions)
	})
}

func TestSwaggerMounted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/oauth/token")
}

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("k", jwtx.MinSecretSize))

func newManager(t *testing.T, now *time.Time) *Manager {
	t.Helper()

	clock := func() time.Time { return *now }
	codec, err := jwtx.NewHS256(testSecret, "gatekeeper", jwtx.WithClock(clock))
	require.NoError(t, err)
	return NewManager(NewMemoryStore(clock), codec, time.Hour, WithClock(clock), WithSecureCookie(false))
}

// requestWith replays the cookies set on rec into a new request.
func requestWith(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestManagerRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := newManager(t, &now)

	rec := httptest.NewRecorder()
	s, err := m.Start(context.Background(), rec, "user-1")
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, "/oauth", cookies[0].Path)

	got, ok := m.Current(requestWith(rec))
	require.True(t, ok)
	require.Equal(t, s.ID, got.ID)
	require.Equal(t, "user-1", got.UserID)
}

func TestManagerCurrentRejects(t *testing.T) {
	t.Parallel()

	t.Run("no cookie", func(t *testing.T) {
		now := time.Now()
		m := newManager(t, &now)
		_, ok := m.Current(httptest.NewRequest(http.MethodGet, "/", nil))
		require.False(t, ok)
	})

	t.Run("tampered cookie", func(t *testing.T) {
		now := time.Now()
		m := newManager(t, &now)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "not.a.jwt"})
		_, ok := m.Current(r)
		require.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		now := time.Now()
		m := newManager(t, &now)
		rec := httptest.NewRecorder()
		_, err := m.Start(context.Background(), rec, "user-1")
		require.NoError(t, err)

		now = now.Add(2 * time.Hour)
		_, ok := m.Current(requestWith(rec))
		require.False(t, ok)
	})

	t.Run("session deleted server side", func(t *testing.T) {
		now := time.Now()
		m := newManager(t, &now)
		rec := httptest.NewRecorder()
		s, err := m.Start(context.Background(), rec, "user-1")
		require.NoError(t, err)

		require.NoError(t, m.Store().Delete(context.Background(), s.ID))
		_, ok := m.Current(requestWith(rec))
		require.False(t, ok)
	})
}

func TestManagerEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now()
	m := newManager(t, &now)

	browser := httptest.NewRecorder()
	_, err := m.Start(ctx, browser, "user-1")
	require.NoError(t, err)
	otherDevice := httptest.NewRecorder()
	_, err = m.Start(ctx, otherDevice, "user-1")
	require.NoError(t, err)

	out := httptest.NewRecorder()
	require.NoError(t, m.End(ctx, out, requestWith(browser), "user-1"))

	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, CookieName, cleared[0].Name)
	require.Negative(t, cleared[0].MaxAge)

	_, ok := m.Current(requestWith(browser))
	require.False(t, ok)
	_, ok = m.Current(requestWith(otherDevice))
	require.False(t, ok)
}

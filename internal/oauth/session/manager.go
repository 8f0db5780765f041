package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// CookieName is the browser cookie carrying the signed session pointer.
const CookieName = "gatekeeper_session"

// cookiePath scopes the cookie to the OAuth endpoints.
const cookiePath = "/oauth"

// Manager ties the session cookie to the session store. The cookie holds an
// HS256 token naming the session; the store decides whether it is live.
type Manager struct {
	store  Store
	codec  *jwtx.HS256
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithSecureCookie sets the cookie Secure flag.
func WithSecureCookie(secure bool) ManagerOption {
	return func(m *Manager) { m.secure = secure }
}

func NewManager(store Store, codec *jwtx.HS256, ttl time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, codec: codec, ttl: ttl, secure: true, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying session store.
func (m *Manager) Store() Store { return m.store }

// Start records a login for userID and sets the session cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, userID string) (Session, error) {
	now := m.now().UTC()
	s := Session{
		ID:        idx.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, err
	}

	token, err := m.codec.Sign(jwtx.NewSessionClaims(s.ID, userID, m.codec.Issuer(), m.ttl, now))
	if err != nil {
		return Session{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     cookiePath,
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Current returns the live session named by the request cookie.
func (m *Manager) Current(r *http.Request) (Session, bool) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Session{}, false
	}
	claims, err := m.codec.Verify(c.Value)
	if err != nil {
		log.Debug("session cookie rejected", slog.Any("error", err))
		return Session{}, false
	}

	s, err := m.store.Get(ctx, claims.SID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn("session lookup failed", slog.Any("error", err))
		}
		return Session{}, false
	}
	if s.UserID != claims.Subject {
		return Session{}, false
	}
	return s, true
}

// End removes the request's session, every session of userID when it is
// set, and clears the cookie.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) error {
	var errs []error
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		if claims, err := m.codec.Verify(c.Value); err == nil {
			errs = append(errs, m.store.Delete(ctx, claims.SID))
		}
	}
	if userID != "" {
		errs = append(errs, m.store.DeleteUser(ctx, userID))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return errors.Join(errs...)
}

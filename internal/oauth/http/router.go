package http

//go:generate swag init --generalInfo router.go --dir ./,../../../pkg/authsdk --output ../../../api/oauth --outputTypes go

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/metrics"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/session"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeeper/api/oauth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Limits are the rate limit profiles applied to the routes.
type Limits struct {
	// Strict guards credential checks: authorize-submit and token.
	Strict httpx.RateLimitConfig
	// Public guards everything else.
	Public httpx.RateLimitConfig
	// TrustProxy keys both profiles on the forwarded client address.
	TrustProxy bool
}

func (l Limits) strict() httpx.RateLimitConfig {
	cfg := l.Strict
	cfg.TrustProxy = cfg.TrustProxy || l.TrustProxy
	return cfg
}

func (l Limits) public() httpx.RateLimitConfig {
	cfg := l.Public
	cfg.TrustProxy = cfg.TrustProxy || l.TrustProxy
	return cfg
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions *session.Manager

	AuthorizationServer *service.AuthorizationServer
	LogoutService       *service.LogoutService
	Metrics             *metrics.Metrics // Optional
	Limits              Limits
}

func NewRouter(
	st store.Store,
	sessions *session.Manager,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		sessions:     sessions,
		Limits: Limits{
			Strict: httpx.StrictLimit,
			Public: httpx.PublicLimit,
		},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatekeeper OAuth2 API
//	@version		0.1.0
//	@description	OAuth2 authorization server implementing the authorization code, refresh token and resource owner password credentials grants.
//	@description
//	@description				Access and refresh tokens are opaque strings. Revocation sets a token's expiry to the time of the call.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeeper
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		Server:   r.AuthorizationServer,
		Sessions: r.sessions,
		Metrics:  r.Metrics,
	}

	// GET /authorize only validates and renders the form
	r.Mux.Handle("GET /oauth/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleAuthorize),
			r.Metrics.Instrument("authorize"),
			httpx.RateLimitByIP(r.Limits.public()),
		),
	)

	// Login submissions are limited per IP and username to slow guessing
	submit := httpx.Chain(http.HandlerFunc(authorizeHandler.HandleSubmit),
		r.Metrics.Instrument("authorize_submit"),
		httpx.RateLimitByIPAndFormField(r.Limits.strict(), paramUsername),
	)
	r.Mux.Handle("GET /oauth/authorize-submit", submit)
	r.Mux.Handle("POST /oauth/authorize-submit", submit)

	// The password grant checks credentials too, so the token endpoint is strict
	tokenHandler := &TokenHandler{Server: r.AuthorizationServer, Metrics: r.Metrics}
	r.Mux.Handle("POST /oauth/token",
		httpx.Chain(tokenHandler,
			r.Metrics.Instrument("token"),
			httpx.RateLimitByIP(r.Limits.strict()),
		),
	)

	logoutHandler := &LogoutHandler{
		Server:   r.AuthorizationServer,
		Logout:   r.LogoutService,
		Sessions: r.sessions,
		Metrics:  r.Metrics,
	}
	r.Mux.Handle("POST /oauth/logout",
		httpx.Chain(logoutHandler,
			r.Metrics.Instrument("logout"),
			httpx.RateLimitByIP(r.Limits.public()),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.public()),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.sessions.Store()),
			httpx.RateLimitByIP(r.Limits.public()),
		),
	)
}

package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/metrics"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/session"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const maxLogoutBody = 1 << 16

// LogoutHandler serves POST /oauth/logout.
type LogoutHandler struct {
	Server   *service.AuthorizationServer
	Logout   *service.LogoutService
	Sessions *session.Manager
	Metrics  *metrics.Metrics
}

// ServeHTTP godoc
//
//	@Summary		Logout
//	@Description	Revokes the caller's access token and the given refresh token by expiring them, then ends the browser session.
//	@Description	The refresh token must belong to the same user as the access token.
//	@Tags			OAuth2
//	@Accept			json
//	@Param			body	body		authsdk.LogoutRequest	true	"Refresh token to revoke"
//	@Success		200		{string}	string					"Empty body"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		422		{object}	authsdk.ErrorResponse	"unprocessable_entity"
//	@Security		BearerAuth
//	@Router			/oauth/logout [post]
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	accessToken, ok := httpx.BearerToken(r)
	if !ok {
		h.Metrics.Logout("unauthenticated")
		httpx.WriteBearerChallenge(w, "Authentication required")
		return
	}

	var body authsdk.LogoutRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLogoutBody)).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}

	// An unknown bearer token is reported by the logout itself.
	principal, err := h.Server.VerifyAccessToken(ctx, accessToken)
	if err != nil && !errors.Is(err, service.ErrInvalidToken) {
		writeError(w, r, err)
		return
	}

	err = h.Logout.Logout(ctx, service.LogoutRequest{
		AccessToken:  accessToken,
		RefreshToken: body.RefreshToken,
		Principal:    principal,
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnauthenticated):
		h.Metrics.Logout("unauthenticated")
		httpx.WriteBearerChallenge(w, service.Describe(err))
		return
	default:
		h.Metrics.Logout("rejected")
		writeError(w, r, err)
		return
	}
	h.Metrics.Logout("success")

	if err := h.Sessions.End(ctx, w, r, userIDOf(principal)); err != nil {
		log.Warn("ending session failed", slog.Any("error", err))
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}

func userIDOf(p *domain.Principal) string {
	if p == nil {
		return ""
	}
	return p.UserID
}

package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/metrics"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// TokenHandler serves POST /oauth/token.
// Accepts application/x-www-form-urlencoded per RFC 6749 section 4.
type TokenHandler struct {
	Server  *service.AuthorizationServer
	Metrics *metrics.Metrics
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access and refresh tokens using the authorization_code, refresh_token and password grants.
//	@Description	Client credentials may be sent in the form body or with HTTP Basic authentication.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, refresh_token, password)
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI the code was requested with"
//	@Param			code_verifier	formData	string					false	"PKCE code_verifier (required when the code was issued with a challenge)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			username		formData	string					false	"User email (password grant)"
//	@Param			password		formData	string					false	"User password (password grant)"
//	@Param			client_id		formData	string					false	"Client identifier (unless sent with HTTP Basic)"
//	@Param			client_secret	formData	string					false	"Client secret for confidential clients"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, token_type, expires_in, refresh_token, scope"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"invalid_client"
//	@Failure		500				{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidRequest.
			WithDescription("Content-Type must be application/x-www-form-urlencoded").
			WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	req, err := tokenRequest(r)
	if err != nil {
		authsdk.ErrInvalidClient.WithDescription("Malformed HTTP Basic credentials").WriteError(w)
		return
	}

	grantType := grantLabel(req.GrantType())
	tok, err := h.Server.HandleTokenRequest(r.Context(), req)
	if err != nil {
		h.Metrics.TokenRejected(grantType, errorCode(err))
		if errors.Is(err, service.ErrInvalidClient) && hasBasicAuth(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gatekeeper"`)
		}
		writeError(w, r, err)
		return
	}
	h.Metrics.TokenIssued(grantType)

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		RefreshToken: tok.RefreshToken,
		Scope:        tok.Scope,
	})
}

// tokenRequest reads the grant parameters from the body only. Client
// credentials come from HTTP Basic when present (RFC 6749 section 2.3.1
// form-encodes both parts), otherwise from the body.
func tokenRequest(r *http.Request) (service.TokenRequest, error) {
	req := service.TokenRequest{Form: r.PostForm}

	if id, secret, ok := r.BasicAuth(); ok {
		var err error
		if req.ClientID, err = url.QueryUnescape(id); err != nil {
			return req, err
		}
		if req.ClientSecret, err = url.QueryUnescape(secret); err != nil {
			return req, err
		}
		return req, nil
	}

	req.ClientID = r.PostForm.Get("client_id")
	req.ClientSecret = r.PostForm.Get("client_secret")
	return req, nil
}

// grantLabel keeps client-supplied grant types out of metric labels.
func grantLabel(grantType string) string {
	switch grantType {
	case domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken, domain.GrantTypePassword:
		return grantType
	}
	return "unknown"
}

func hasBasicAuth(r *http.Request) bool {
	_, _, ok := r.BasicAuth()
	return ok
}

package http

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/metrics"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/session"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

//go:embed templates/*.html
var templatesFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templatesFS, "templates/login.html"))

const (
	authorizeSubmitPath = "/oauth/authorize-submit"

	// Parameters that are never echoed back into the form.
	paramUsername = "username"
	paramPassword = "password"
	paramPrompt   = "prompt"
)

// AuthorizeHandler runs the interactive authorization code flow: the login
// form, its submission, and silent re-authorization from a live session.
type AuthorizeHandler struct {
	Server   *service.AuthorizationServer
	Sessions *session.Manager
	Metrics  *metrics.Metrics
}

// HandleAuthorize godoc
//
//	@Summary		OAuth2 authorization endpoint
//	@Description	Validates the authorization request and renders the login form, echoing every query parameter as a hidden field.
//	@Description	When the browser carries a live session and prompt is not "login", an authorization code is issued immediately.
//	@Description
//	@Description	**Response:**
//	@Description	- Login required: 200 HTML login form posting to /oauth/authorize-submit
//	@Description	- Live session: 302 redirect to redirect_uri with code and state
//	@Description	- Unknown client or redirect URI: 400 JSON error
//	@Description	- Any other error: 302 redirect to redirect_uri with error and state
//	@Tags			OAuth2
//	@Produce		html
//	@Param			response_type			query		string					true	"code, or token when the implicit flow is enabled"	default(code)
//	@Param			client_id				query		string					true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string					false	"Callback URI (optional when exactly one is registered)"
//	@Param			scope					query		string					false	"Space-delimited list of scopes"
//	@Param			state					query		string					false	"Opaque value for CSRF protection (required unless disabled)"
//	@Param			code_challenge			query		string					false	"PKCE code challenge"
//	@Param			code_challenge_method	query		string					false	"PKCE method (defaults to plain)"	Enums(S256, plain)
//	@Param			prompt					query		string					false	"login forces the form even with a live session"
//	@Success		200						{string}	string					"Login form"
//	@Success		302						{string}	string					"Redirect to redirect_uri"
//	@Failure		400						{object}	authsdk.ErrorResponse	"invalid_client, invalid_uri or redirect_uri_mismatch"
//	@Router			/oauth/authorize [get]
func (h *AuthorizeHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	req, err := h.Server.ValidateAuthorizeRequest(r.Context(), params)
	if err != nil {
		writeAuthorizeError(w, r, err)
		return
	}

	if params.Get(paramPrompt) != "login" {
		if s, ok := h.Sessions.Current(r); ok {
			log := slogx.FromContext(r.Context())
			_, err := h.Server.Verifier().Reauthenticate(r.Context(), s.UserID)
			switch {
			case err == nil:
				log.Debug("authorizing from session", slog.String("user_id", s.UserID))
				h.complete(w, r, req, s.UserID)
				return
			case errors.Is(err, service.ErrInvalidCredentials):
				if err := h.Sessions.End(r.Context(), w, r, s.UserID); err != nil {
					log.Warn("failed to end session", slog.String("user_id", s.UserID), slog.Any("error", err))
				}
			default:
				writeError(w, r, err)
				return
			}
		}
	}

	renderLogin(w, http.StatusOK, params, "")
}

// HandleSubmit godoc
//
//	@Summary		Login form submission
//	@Description	Verifies the user's credentials and, on success, approves the pending authorization request.
//	@Description	POST reads every parameter from the form body; GET reads the query string.
//	@Description	Every credential failure (unknown user, disabled, unverified, wrong password) yields the same 422 "Invalid credentials" response.
//	@Description	Clients sending Accept: text/html get the login form back instead of JSON.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			username		formData	string					true	"User email"
//	@Param			password		formData	string					true	"User password"
//	@Param			response_type	formData	string					true	"Echoed from the authorization request"
//	@Param			client_id		formData	string					true	"Echoed from the authorization request"
//	@Param			redirect_uri	formData	string					false	"Echoed from the authorization request"
//	@Param			state			formData	string					false	"Echoed from the authorization request"
//	@Param			scope			formData	string					false	"Echoed from the authorization request"
//	@Success		302				{string}	string					"Redirect to redirect_uri with code and state"
//	@Failure		400				{object}	authsdk.ErrorResponse	"invalid_client, invalid_uri or redirect_uri_mismatch"
//	@Failure		422				{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		429				{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/oauth/authorize-submit [post]
func (h *AuthorizeHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	params, err := normalizeAuthorizeParams(r)
	if err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	req, err := h.Server.ValidateAuthorizeRequest(ctx, params)
	if err != nil {
		writeAuthorizeError(w, r, err)
		return
	}

	email := strings.TrimSpace(params.Get(paramUsername))
	user, err := h.Server.Verifier().Authenticate(ctx, email, params.Get(paramPassword))
	if errors.Is(err, service.ErrInvalidCredentials) {
		h.Metrics.Login("failure")
		log.Info("login rejected", slog.String("client_id", req.Client.ID))
		if wantsHTML(r) {
			renderLogin(w, http.StatusUnprocessableEntity, params, authsdk.ErrInvalidCredentials.Description)
			return
		}
		authsdk.ErrInvalidCredentials.WriteError(w)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Metrics.Login("success")

	if _, err := h.Sessions.Start(ctx, w, user.ID); err != nil {
		log.Warn("starting session failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	h.Server.RecordLogin(ctx, user.ID)

	h.complete(w, r, req, user.ID)
}

// complete approves req for userID and redirects back to the client.
func (h *AuthorizeHandler) complete(w http.ResponseWriter, r *http.Request, req *service.AuthorizeRequest, userID string) {
	res, err := h.Server.HandleAuthorizeRequest(r.Context(), req, true, userID)
	if err != nil {
		writeAuthorizeError(w, r, err)
		return
	}
	httpx.NoCache(w)
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// normalizeAuthorizeParams builds the authorization parameter bag
// independently of the HTTP method. A POST is read from its body alone so
// credentials placed in the query string are ignored.
func normalizeAuthorizeParams(r *http.Request) (url.Values, error) {
	if r.Method != http.MethodPost {
		return r.URL.Query(), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm, nil
}

// writeAuthorizeError redirects errors the client may see and answers the
// rest (unknown client, bad redirect URI) directly.
func writeAuthorizeError(w http.ResponseWriter, r *http.Request, err error) {
	var re *service.RedirectError
	if errors.As(err, &re) {
		slogx.FromContext(r.Context()).Debug("authorize error redirected", slog.String("error", re.Error()))
		http.Redirect(w, r, re.RedirectURL(), http.StatusFound)
		return
	}
	writeError(w, r, err)
}

type hiddenField struct {
	Name, Value string
}

type loginPage struct {
	Action   string
	Fields   []hiddenField
	Username string
	Error    string
}

func renderLogin(w http.ResponseWriter, status int, params url.Values, errMsg string) {
	page := loginPage{
		Action:   authorizeSubmitPath,
		Username: params.Get(paramUsername),
		Error:    errMsg,
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		switch k {
		case paramUsername, paramPassword, paramPrompt:
			continue
		}
		for _, v := range params[k] {
			page.Fields = append(page.Fields, hiddenField{Name: k, Value: v})
		}
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	_ = loginTemplate.Execute(w, page)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

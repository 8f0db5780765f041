package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Config holds the authorization server policy.
type Config struct {
	// EnforceState makes the state parameter mandatory on authorize.
	EnforceState bool
	// AllowImplicit enables response_type=token.
	AllowImplicit bool

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthCodeTTL     time.Duration

	AlwaysIssueNewRefreshToken bool
	UnsetRefreshTokenAfterUse  bool
	RequireVerification        bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		EnforceState:              true,
		AccessTokenTTL:            time.Hour,
		RefreshTokenTTL:           14 * 24 * time.Hour,
		AuthCodeTTL:               30 * time.Second,
		UnsetRefreshTokenAfterUse: true,
		RequireVerification:       true,
	}
}

// AuthorizationServer runs token requests through client authentication,
// grant restriction and dispatch, and issues codes for the authorize flow.
type AuthorizationServer struct {
	store    store.Store
	verifier *CredentialVerifier
	issuer   *TokenIssuer
	grants   map[string]Grant
	cfg      Config
}

// NewAuthorizationServer wires the three supported grants against st.
func NewAuthorizationServer(st store.Store, verifier *CredentialVerifier, cfg Config) *AuthorizationServer {
	issuer := &TokenIssuer{AccessTTL: cfg.AccessTokenTTL, RefreshTTL: cfg.RefreshTokenTTL}
	s := &AuthorizationServer{
		store:    st,
		verifier: verifier,
		issuer:   issuer,
		grants:   make(map[string]Grant),
		cfg:      cfg,
	}
	s.AddGrant(&AuthorizationCodeGrant{Store: st, Issuer: issuer})
	s.AddGrant(&RefreshTokenGrant{
		Store:                      st,
		Issuer:                     issuer,
		AlwaysIssueNewRefreshToken: cfg.AlwaysIssueNewRefreshToken,
		UnsetRefreshTokenAfterUse:  cfg.UnsetRefreshTokenAfterUse,
	})
	s.AddGrant(&PasswordGrant{Store: st, Issuer: issuer, Verifier: verifier})
	return s
}

// AddGrant registers g, replacing any grant with the same type.
func (s *AuthorizationServer) AddGrant(g Grant) {
	s.grants[g.GrantType()] = g
}

// Verifier exposes the credential verifier used by the password grant.
func (s *AuthorizationServer) Verifier() *CredentialVerifier { return s.verifier }

// HandleTokenRequest processes a token endpoint call.
func (s *AuthorizationServer) HandleTokenRequest(ctx context.Context, req TokenRequest) (*domain.TokenResult, error) {
	log := slogx.FromContext(ctx)

	grantType := req.GrantType()
	if grantType == "" {
		return nil, describe(ErrInvalidRequest, "The grant type was not specified in the request")
	}
	grant, ok := s.grants[grantType]
	if !ok {
		return nil, describe(ErrUnsupportedGrantType, "Grant type %q not supported", grantType)
	}

	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return nil, describe(ErrInvalidClient, "Client credentials were not found in the headers or body")
	}
	client, err := s.store.Clients().GetClientDetails(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, describe(ErrInvalidClient, "The client credentials are invalid")
	}
	if err != nil {
		return nil, err
	}
	authenticated, err := s.verifier.CheckClient(ctx, clientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if !authenticated {
		log.Info("client authentication failed", slog.String("client_id", clientID))
		return nil, describe(ErrInvalidClient, "The client credentials are invalid")
	}

	allowed, err := s.verifier.CheckGrantType(ctx, clientID, grantType)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, describe(ErrUnauthorizedClient, "The grant type is unauthorized for this client_id")
	}

	res, err := grant.IssueToken(ctx, client, req)
	if err != nil {
		return nil, err
	}
	if res.UserID != "" {
		s.RecordLogin(ctx, res.UserID)
	}

	log.Info("token issued",
		slog.String("grant_type", grantType),
		slog.String("client_id", clientID),
		slog.Bool("refresh", res.Token.RefreshToken != ""),
	)
	return res.Token, nil
}

// RecordLogin stamps the user's last login time. A failure is logged and
// does not undo the login.
func (s *AuthorizationServer) RecordLogin(ctx context.Context, userID string) {
	if err := s.store.Users().TouchLastLogin(ctx, userID, s.store.Now()); err != nil {
		slogx.FromContext(ctx).Warn("recording last login failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// Authorize response types.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// AuthorizeRequest is a validated authorize endpoint request.
type AuthorizeRequest struct {
	Client       domain.Client
	ResponseType string
	// RedirectURI is where the user agent is sent back to. It is the
	// registered URI when the request omitted one.
	RedirectURI         string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string

	// requestedRedirectURI is what the request carried, bound into the
	// code so the token exchange must repeat it.
	requestedRedirectURI string
	// fragment is set once a token response type has been accepted.
	fragment bool
}

func (r *AuthorizeRequest) redirectError(err error) *RedirectError {
	return &RedirectError{
		Err:         err,
		RedirectURI: r.RedirectURI,
		State:       r.State,
		Fragment:    r.fragment,
	}
}

// ValidateAuthorizeRequest checks an authorize request. Problems with the
// client or redirect URI are returned as plain errors and must not be
// redirected; everything after that is a *RedirectError.
func (s *AuthorizationServer) ValidateAuthorizeRequest(ctx context.Context, params url.Values) (*AuthorizeRequest, error) {
	get := func(k string) string { return strings.TrimSpace(params.Get(k)) }

	clientID := get("client_id")
	if clientID == "" {
		return nil, describe(ErrInvalidClient, "No client id supplied")
	}
	client, err := s.store.Clients().GetClientDetails(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, describe(ErrInvalidClient, "The client id supplied is invalid")
	}
	if err != nil {
		return nil, err
	}

	requested := get("redirect_uri")
	redirectURI, err := resolveRedirectURI(client, requested)
	if err != nil {
		return nil, err
	}

	req := &AuthorizeRequest{
		Client:               client,
		ResponseType:         get("response_type"),
		RedirectURI:          redirectURI,
		State:                params.Get("state"),
		CodeChallenge:        get("code_challenge"),
		CodeChallengeMethod:  get("code_challenge_method"),
		requestedRedirectURI: requested,
	}

	var grantType string
	switch req.ResponseType {
	case "":
		return nil, req.redirectError(describe(ErrInvalidRequest, "Invalid or missing response type"))
	case ResponseTypeCode:
		grantType = domain.GrantTypeAuthorizationCode
	case ResponseTypeToken:
		if !s.cfg.AllowImplicit {
			return nil, req.redirectError(describe(ErrUnsupportedResponseType, "implicit grant type not supported"))
		}
		grantType = domain.GrantTypeImplicit
		req.fragment = true
	default:
		return nil, req.redirectError(describe(ErrUnsupportedResponseType, "Invalid or missing response type"))
	}

	allowed, err := s.verifier.CheckGrantType(ctx, client.ID, grantType)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, req.redirectError(describe(ErrUnauthorizedClient, "The grant type is unauthorized for this client_id"))
	}

	if s.cfg.EnforceState && req.State == "" {
		return nil, req.redirectError(describe(ErrInvalidRequest, "The state parameter is required"))
	}

	req.Scope, err = resolveScope(get("scope"), client)
	if err != nil {
		return nil, req.redirectError(err)
	}

	if req.ResponseType == ResponseTypeCode && req.CodeChallenge != "" {
		if req.CodeChallengeMethod == "" {
			req.CodeChallengeMethod = domain.PKCEMethodPlain
		}
		if req.CodeChallengeMethod != domain.PKCEMethodPlain && req.CodeChallengeMethod != domain.PKCEMethodS256 {
			return nil, req.redirectError(describe(ErrInvalidRequest, "The code_challenge_method must be plain or S256"))
		}
	} else {
		req.CodeChallenge, req.CodeChallengeMethod = "", ""
	}

	return req, nil
}

func resolveRedirectURI(client domain.Client, requested string) (string, error) {
	if requested == "" {
		switch len(client.RedirectURIs) {
		case 0:
			return "", describe(ErrInvalidURI, "No redirect URI was supplied or registered")
		case 1:
			return client.RedirectURIs[0], nil
		default:
			return "", describe(ErrInvalidURI, "A redirect URI must be supplied when multiple redirect URIs are registered")
		}
	}

	u, err := url.Parse(requested)
	if err != nil || !u.IsAbs() || u.Fragment != "" {
		return "", describe(ErrInvalidURI, "The redirect URI must be absolute and must not contain a fragment")
	}
	if !client.HasRedirectURI(requested) {
		return "", describe(ErrRedirectURIMismatch, "The redirect URI provided does not match registered URI(s)")
	}
	return requested, nil
}

// AuthorizeResult is the outcome of an approved authorize request.
type AuthorizeResult struct {
	RedirectURL string
	// Code is set for response_type=code.
	Code string
	// Token is set for response_type=token.
	Token *domain.TokenResult
}

// HandleAuthorizeRequest completes a validated request for userID. When
// authorized is false the result is an access_denied redirect.
func (s *AuthorizationServer) HandleAuthorizeRequest(ctx context.Context, req *AuthorizeRequest, authorized bool, userID string) (*AuthorizeResult, error) {
	log := slogx.FromContext(ctx)

	if !authorized {
		return nil, req.redirectError(describe(ErrAccessDenied, "The user denied access to your application"))
	}

	if req.ResponseType == ResponseTypeToken {
		tok, err := s.issuer.Issue(ctx, s.store, req.Client.ID, userID, req.Scope, false)
		if err != nil {
			return nil, err
		}
		params := url.Values{}
		params.Set("access_token", tok.AccessToken)
		params.Set("token_type", tok.TokenType)
		params.Set("expires_in", strconv.Itoa(tok.ExpiresIn))
		if tok.Scope != "" {
			params.Set("scope", tok.Scope)
		}
		if req.State != "" {
			params.Set("state", req.State)
		}
		log.Info("implicit token issued", slog.String("client_id", req.Client.ID), slog.String("user_id", userID))
		return &AuthorizeResult{RedirectURL: appendParams(req.RedirectURI, params, true), Token: tok}, nil
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	err = s.store.AuthorizationCodes().SetAuthorizationCode(ctx, domain.AuthorizationCode{
		Code:                code,
		ClientID:            req.Client.ID,
		UserID:              userID,
		RedirectURI:         req.requestedRedirectURI,
		Expires:             s.store.Now().Add(s.cfg.AuthCodeTTL),
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("code", code)
	if req.State != "" {
		params.Set("state", req.State)
	}
	log.Info("authorization code issued", slog.String("client_id", req.Client.ID), slog.String("user_id", userID))
	return &AuthorizeResult{RedirectURL: appendParams(req.RedirectURI, params, false), Code: code}, nil
}

// VerifyAccessToken resolves a bearer token to its principal. Expired and
// revoked tokens are ErrInvalidToken.
func (s *AuthorizationServer) VerifyAccessToken(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, describe(ErrInvalidToken, "The access token is missing")
	}
	at, err := s.store.AccessTokens().GetAccessToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, describe(ErrInvalidToken, "The access token provided is invalid")
	}
	if err != nil {
		return nil, err
	}
	return &domain.Principal{
		UserID:      at.UserID,
		ClientID:    at.ClientID,
		Scope:       at.Scope,
		AccessToken: token,
	}, nil
}

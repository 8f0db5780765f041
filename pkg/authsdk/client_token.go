package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// TokenPath is where the token endpoint is mounted.
const TokenPath = "/oauth/token"

// PasswordGrant exchanges resource owner credentials for tokens.
func (c *Client) PasswordGrant(ctx context.Context, client ClientAuth, username, password string, scopes []string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	setScope(form, scopes)
	return c.requestToken(ctx, client, form)
}

// RefreshGrant exchanges a refresh token for a new access token. Passing
// scopes narrows the new token to a subset of the original grant.
func (c *Client) RefreshGrant(ctx context.Context, client ClientAuth, refreshToken string, scopes []string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	setScope(form, scopes)
	return c.requestToken(ctx, client, form)
}

// ExchangeAuthorizationCode redeems code. redirectURI must equal the one
// used on the authorize request; codeVerifier is required when PKCE was
// used and ignored otherwise.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, client ClientAuth, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	}
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}
	return c.requestToken(ctx, client, form)
}

func (c *Client) requestToken(ctx context.Context, client ClientAuth, form url.Values) (*TokenResponse, error) {
	var headers map[string]string
	if client.Basic {
		req := &http.Request{Header: http.Header{}}
		req.SetBasicAuth(url.QueryEscape(client.ID), url.QueryEscape(client.Secret))
		headers = map[string]string{"Authorization": req.Header.Get("Authorization")}
	} else {
		form.Set("client_id", client.ID)
		if client.Secret != "" {
			form.Set("client_secret", client.Secret)
		}
	}

	resp, err := c.postForm(ctx, TokenPath, form, headers)
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := decodeJSON(resp, &tok, http.StatusOK); err != nil {
		return nil, err
	}
	return &tok, nil
}

func setScope(form url.Values, scopes []string) {
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}
}

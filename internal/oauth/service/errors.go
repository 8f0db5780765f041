package service

import (
	"errors"
	"fmt"
	"net/url"
)

// OAuth2 protocol errors. The message is the RFC 6749 error code.
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrAccessDenied            = errors.New("access_denied")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrInvalidURI              = errors.New("invalid_uri")
	ErrRedirectURIMismatch     = errors.New("redirect_uri_mismatch")
	ErrInvalidToken            = errors.New("invalid_token")
)

// Login and logout errors.
var (
	// ErrInvalidCredentials covers every reason a user cannot sign in.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrMissingRefreshToken  = errors.New("missing_refresh_token")
	ErrAccessTokenNotFound  = errors.New("access_token_not_found")
	ErrRefreshTokenNotFound = errors.New("refresh_token_not_found")
)

type describedError struct {
	err  error
	desc string
}

func (e *describedError) Error() string { return e.err.Error() + ": " + e.desc }
func (e *describedError) Unwrap() error { return e.err }

// describe attaches a human readable description to a sentinel error.
func describe(err error, format string, args ...any) error {
	return &describedError{err: err, desc: fmt.Sprintf(format, args...)}
}

// Describe returns the description attached to err, or "" when there is none.
func Describe(err error) string {
	var d *describedError
	if errors.As(err, &d) {
		return d.desc
	}
	return ""
}

// RedirectError is an authorize error that must be reported to the client
// by redirecting the user agent back to its redirect URI.
type RedirectError struct {
	Err         error
	RedirectURI string
	State       string
	// Fragment is set for the implicit flow, whose parameters travel in
	// the URI fragment.
	Fragment bool
}

func (e *RedirectError) Error() string { return e.Err.Error() }
func (e *RedirectError) Unwrap() error { return e.Err }

// RedirectURL renders the error as redirect URI parameters.
func (e *RedirectError) RedirectURL() string {
	var sentinel error = e.Err
	for {
		next := errors.Unwrap(sentinel)
		if next == nil {
			break
		}
		sentinel = next
	}

	params := url.Values{}
	params.Set("error", sentinel.Error())
	if desc := Describe(e.Err); desc != "" {
		params.Set("error_description", desc)
	}
	if e.State != "" {
		params.Set("state", e.State)
	}
	return appendParams(e.RedirectURI, params, e.Fragment)
}

// appendParams adds params to the query (or fragment) of uri, keeping any
// query the client registered.
func appendParams(uri string, params url.Values, fragment bool) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	if fragment {
		u.Fragment, u.RawFragment = "", ""
		return u.String() + "#" + params.Encode()
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

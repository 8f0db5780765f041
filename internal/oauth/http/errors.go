package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

var protocolErrors = []struct {
	err  error
	resp *authsdk.OAuth2Error
}{
	{service.ErrInvalidRequest, authsdk.ErrInvalidRequest},
	{service.ErrInvalidClient, authsdk.ErrInvalidClient},
	{service.ErrInvalidGrant, authsdk.ErrInvalidGrant},
	{service.ErrUnauthorizedClient, authsdk.ErrUnauthorizedClient},
	{service.ErrUnsupportedGrantType, authsdk.ErrUnsupportedGrantType},
	{service.ErrInvalidScope, authsdk.ErrInvalidScope},
	{service.ErrAccessDenied, authsdk.ErrAccessDenied},
	{service.ErrUnsupportedResponseType, authsdk.ErrUnsupportedResponseType},
	{service.ErrInvalidURI, authsdk.ErrInvalidURI},
	{service.ErrRedirectURIMismatch, authsdk.ErrRedirectURIMismatch},
	{service.ErrInvalidToken, authsdk.ErrInvalidToken},
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrMissingRefreshToken, authsdk.ErrUnprocessable},
	{service.ErrAccessTokenNotFound, authsdk.ErrUnprocessable},
	{service.ErrRefreshTokenNotFound, authsdk.ErrUnprocessable},
}

// oauth2Error maps a service error onto its wire form, carrying over the
// description the service attached. It returns nil for errors that are not
// part of the protocol.
func oauth2Error(err error) *authsdk.OAuth2Error {
	for _, pe := range protocolErrors {
		if !errors.Is(err, pe.err) {
			continue
		}
		if desc := service.Describe(err); desc != "" {
			return pe.resp.WithDescription(desc)
		}
		return pe.resp
	}
	return nil
}

// writeError writes err as an OAuth2 error body. Anything unmapped is
// logged and answered with a bare server_error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if oe := oauth2Error(err); oe != nil {
		oe.WriteError(w)
		return
	}
	slogx.FromContext(r.Context()).Error("request failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	authsdk.ErrServerError.WriteError(w)
}

// errorCode is the OAuth2 code err would be written with.
func errorCode(err error) string {
	if oe := oauth2Error(err); oe != nil {
		return oe.Code
	}
	return authsdk.ErrorCodeServerError
}

package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to a gatekeeper server. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 10 second timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// NewClient returns a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientAuth identifies the OAuth2 client making a token request. Public
// clients leave Secret empty. With Basic set the credentials travel in the
// Authorization header instead of the form body.
type ClientAuth struct {
	ID     string
	Secret string
	Basic  bool
}

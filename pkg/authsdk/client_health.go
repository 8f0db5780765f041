package authsdk

import (
	"context"
	"net/http"
)

// Liveness calls /livez.
func (c *Client) Liveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// Readiness calls /readyz. A degraded server answers 503, which is
// returned as an *OAuth2Error.
func (c *Client) Readiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.do(ctx, c.HTTPClient, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var h HealthResponse
	if err := decodeJSON(resp, &h, http.StatusOK); err != nil {
		return nil, err
	}
	return &h, nil
}

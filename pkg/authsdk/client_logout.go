package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const LogoutPath = "/oauth/logout"

// Logout revokes both tokens of a session. The access token authenticates
// the call; the refresh token must belong to the same user.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	body, err := json.Marshal(LogoutRequest{RefreshToken: refreshToken})
	if err != nil {
		return fmt.Errorf("failed to encode logout request: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if accessToken != "" {
		headers["Authorization"] = "Bearer " + accessToken
	}

	resp, err := c.do(ctx, c.HTTPClient, http.MethodPost, LogoutPath, bytes.NewReader(body), headers)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// noRedirect returns a copy of the HTTP client that hands 3xx responses
// back to the caller.
func (c *Client) noRedirect() *http.Client {
	hc := *c.HTTPClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &hc
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, headers map[string]string) (*http.Response, error) {
	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		h[k] = v
	}
	return c.do(ctx, c.HTTPClient, http.MethodPost, path, strings.NewReader(form.Encode()), h)
}

// decodeJSON reads the body once, returning a typed error for any status
// other than expected.
func decodeJSON(resp *http.Response, target any, expected int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expected {
		return parseErrorResponse(resp, body)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readRedirect extracts the Location of a 302, or the error the server
// answered with instead.
func readRedirect(resp *http.Response) (*url.URL, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusFound {
		if perr := parseErrorResponse(resp, body); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("expected redirect, got HTTP %d", resp.StatusCode)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, errors.New("redirect response missing Location header")
	}
	u, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	return u, nil
}

package authsdk

// ErrorResponse is the wire shape of an OAuth2 error.
type ErrorResponse struct {
	Error            string `json:"error" example:"invalid_grant"`
	ErrorDescription string `json:"error_description" example:"Invalid refresh token"`
}

// TokenResponse is the token endpoint success body (RFC 6749 section 5.1).
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"mF_9.B5f-4.1JqM"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type" example:"bearer"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in" example:"3600"`

	RefreshToken string `json:"refresh_token,omitempty" example:"tGzv3JOkF0XG5Qx2TlKWIA"`
	Scope        string `json:"scope,omitempty" example:"profile email"`
}

// LogoutRequest is the JSON body of POST /oauth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" example:"tGzv3JOkF0XG5Qx2TlKWIA"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime,omitempty" example:"1h23m45s"`
	Version string        `json:"version,omitempty" example:"v1.0.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports dependency status on /readyz.
type HealthChecks struct {
	Database string `json:"database" example:"ok"`
	Sessions string `json:"sessions" example:"ok"`
}

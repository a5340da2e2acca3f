package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// TokenQueryParam is the query parameter every endpoint expects the
// session token in.
const TokenQueryParam = "t"

// Client talks to the sandbox staging service.
type Client struct {
	restClient *resty.Client

	// onCredentialExpired is invoked once per request that comes back
	// with HTTP 401, before the error is returned to the caller.
	onCredentialExpired func()
}

// Params configures a new Client.
type Params struct {
	BaseURL             string
	Token               string
	Timeout             time.Duration
	OnCredentialExpired func()
}

// NewClient creates a Client for the given server.
func NewClient(p Params) *Client {
	rc := resty.New().
		SetBaseURL(p.BaseURL).
		SetHeader("User-Agent", "sparcd-cli")
	if p.Timeout > 0 {
		rc.SetTimeout(p.Timeout)
	}
	if p.Token != "" {
		rc.SetQueryParam(TokenQueryParam, p.Token)
	}
	return &Client{
		restClient:          rc,
		onCredentialExpired: p.OnCredentialExpired,
	}
}

// SetToken replaces the session token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.restClient.SetQueryParam(TokenQueryParam, token)
}

// ApiError represents an error response from the sandbox service.
type ApiError struct {
	StatusCode int
	Message    string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err is an ApiError carrying HTTP 401.
func IsAuthError(err error) bool {
	apiErr, ok := err.(*ApiError)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}

// checkResponse converts a non-2xx response into an ApiError. A 401
// fires the credential-expiry callback before the error is returned.
func (c *Client) checkResponse(r *resty.Response) error {
	if !r.IsError() {
		return nil
	}
	if r.StatusCode() == http.StatusUnauthorized && c.onCredentialExpired != nil {
		c.onCredentialExpired()
	}
	return &ApiError{
		StatusCode: r.StatusCode(),
		Message:    r.String(),
	}
}

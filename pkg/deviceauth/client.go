package deviceauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// GrantType is the RFC 8628 device code grant.
	GrantType = "urn:ietf:params:oauth:grant-type:device_code"

	DefaultInterval = 5 * time.Second

	codePath  = "/api/auth/device/code"
	tokenPath = "/api/auth/device/token"
)

// DeviceCode is the server's answer to a device authorization request.
type DeviceCode struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               time.Duration
	Interval                time.Duration
}

// TokenResponse is one token endpoint reply: either a token or an error code.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	Scope            string `json:"scope,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Client talks to a better-auth style device authorization server.
type Client struct {
	ServerURL  string
	ClientID   string
	Scopes     []string
	HTTPClient *http.Client
	UserAgent  string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.ServerURL, "/") + path
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: c.ClientID,
		Scopes:   c.Scopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: c.endpoint(codePath),
			TokenURL:      c.endpoint(tokenPath),
		},
	}
}

// RequestCode starts the flow and returns the codes to show the user.
func (c *Client) RequestCode(ctx context.Context) (*DeviceCode, error) {
	if strings.TrimSpace(c.ClientID) == "" {
		return nil, errors.New("client id is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient())
	resp, err := c.oauthConfig().DeviceAuth(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, flowErrorFromBody(retrieveErr)
		}
		return nil, &NetworkError{Op: "request device code", Err: err}
	}

	code := &DeviceCode{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		Interval:                time.Duration(resp.Interval) * time.Second,
	}
	if !resp.Expiry.IsZero() {
		code.ExpiresIn = time.Until(resp.Expiry).Round(time.Second)
	}
	if code.Interval <= 0 {
		code.Interval = DefaultInterval
	}
	if code.DeviceCode == "" || code.UserCode == "" {
		return nil, &FlowError{Code: "invalid_response", Description: "device code response is missing codes"}
	}
	return code, nil
}

func flowErrorFromBody(err *oauth2.RetrieveError) error {
	if err.ErrorCode != "" {
		return &FlowError{Code: err.ErrorCode, Description: err.ErrorDescription}
	}
	var body TokenResponse
	if json.Unmarshal(err.Body, &body) == nil && body.Error != "" {
		return &FlowError{Code: body.Error, Description: body.ErrorDescription}
	}
	status := ""
	if err.Response != nil {
		status = err.Response.Status
	}
	return &FlowError{Code: "server_error", Description: strings.TrimSpace(status)}
}

// Exchange performs a single token request for deviceCode. Error codes from
// the server are returned inside the response, not as an error.
func (c *Client) Exchange(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":  {GrantType},
		"device_code": {deviceCode},
		"client_id":   {c.ClientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(tokenPath), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "poll device token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &NetworkError{Op: "read device token response", Err: err}
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 400 {
			return &TokenResponse{Error: "server_error", ErrorDescription: resp.Status}, nil
		}
		return nil, fmt.Errorf("decode device token response: %w", err)
	}
	if out.AccessToken == "" && out.Error == "" && resp.StatusCode >= 400 {
		out.Error = "server_error"
		out.ErrorDescription = resp.Status
	}
	return &out, nil
}

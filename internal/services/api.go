// HTTP implementation of [Backend]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/melodymatch/internal/models"
	"github.com/desertthunder/melodymatch/internal/shared"
	"golang.org/x/oauth2"
)

const (
	loginPath    = "/auth/login"
	callbackPath = "/auth/callback"
	profilePath  = "/user/profile"

	// maxErrorBody caps how much of a failed response is kept for logs.
	maxErrorBody = 512
)

// APIService implements [Backend] against the Melody Match HTTP API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

var _ Backend = (*APIService)(nil)

// NewAPIService creates a new API service instance for the backend at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// statusError builds a [*StatusError] from a non-2xx response.
func (r *APIResponse) statusError() *StatusError {
	body := strings.TrimSpace(string(r.Body))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "…"
	}
	return &StatusError{StatusCode: r.StatusCode, Body: body}
}

// Get performs a GET request to path with the given query using client and returns the raw response.
func (a *APIService) Get(ctx context.Context, client *http.Client, path string, query url.Values) (*APIResponse, error) {
	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrServiceUnavailable, err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// StartLogin calls GET /auth/login and returns the body as the authorization URL.
//
// The status code is not inspected: whatever the backend answers is where the browser goes.
// Only a transport failure or an empty body is an error.
func (a *APIService) StartLogin(ctx context.Context, redirectURI string) (string, error) {
	resp, err := a.Get(ctx, a.httpClient, loginPath, url.Values{"redirect_uri": {redirectURI}})
	if err != nil {
		return "", err
	}

	authURL := strings.TrimSpace(string(resp.Body))
	// Some deployments answer with a JSON string literal.
	if unquoted, err := unquoteJSONString(authURL); err == nil {
		authURL = unquoted
	}
	if authURL == "" {
		return "", fmt.Errorf("%w: empty authorization URL (status %d)", shared.ErrMalformedResponse, resp.StatusCode)
	}

	return authURL, nil
}

// ExchangeCode calls GET /auth/callback with the authorization code.
//
// Returns [shared.ErrMalformedResponse] when a 2xx body lacks token or user_id.
func (a *APIService) ExchangeCode(ctx context.Context, code string) (*models.CallbackResponse, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	resp, err := a.Get(ctx, a.httpClient, callbackPath, url.Values{"code": {code}})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.statusError()
	}

	var cb models.CallbackResponse
	if err := json.Unmarshal(resp.Body, &cb); err != nil {
		return nil, fmt.Errorf("%w: callback body: %v", shared.ErrMalformedResponse, err)
	}
	if !cb.Complete() {
		return nil, fmt.Errorf("%w: missing token or user_id", shared.ErrMalformedResponse)
	}

	return &cb, nil
}

// FetchProfile calls GET /user/profile with token as a bearer credential.
func (a *APIService) FetchProfile(ctx context.Context, token string) (*models.UserProfile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token", shared.ErrMissingArgument)
	}

	resp, err := a.Get(ctx, a.bearerClient(token), profilePath, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.statusError()
	}

	var profile models.UserProfile
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		return nil, fmt.Errorf("%w: profile body: %v", shared.ErrMalformedResponse, err)
	}

	return &profile, nil
}

// bearerClient returns a copy of the configured client whose transport adds "Authorization: Bearer <token>".
func (a *APIService) bearerClient(token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := *a.httpClient
	client.Transport = &oauth2.Transport{Source: src, Base: a.httpClient.Transport}
	return &client
}

func unquoteJSONString(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", fmt.Errorf("not a JSON string")
	}
	var out string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

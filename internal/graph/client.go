// Package graph is a Microsoft Graph API client covering the slices donna
// needs: calendar CRUD across the account's calendars and OneDrive file
// access for the vault.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"
	loginBase      = "https://login.microsoftonline.com"
	tokenLifetime  = 50 * time.Minute // refresh before the 1 hour expiry
)

// Config holds Graph client configuration.
type Config struct {
	ClientID     string
	TenantID     string
	ClientSecret string
	User         string // "me" for delegated tokens, otherwise a user principal name

	// Overridable for tests.
	BaseURL  string
	TokenURL string
}

// Client is a Microsoft Graph client using client-credential authentication.
type Client struct {
	httpClient *http.Client
	cfg        Config
	baseURL    string
	tokenURL   string

	// Token caching
	mu          sync.RWMutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Graph client. ClientID, TenantID and ClientSecret are
// required; User defaults to "me".
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.TenantID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph credentials not configured")
	}
	if cfg.User == "" {
		cfg.User = "me"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("%s/%s/oauth2/v2.0/token", loginBase, cfg.TenantID)
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
		baseURL:    baseURL,
		tokenURL:   tokenURL,
	}, nil
}

// getAccessToken returns a valid access token, refreshing if needed.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("token request failed (%d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(tokenLifetime)

	return c.accessToken, nil
}

// request makes an authenticated request to the Graph API. Extra headers may
// be supplied as alternating key/value pairs.
func (c *Client) request(ctx context.Context, method, path string, body any, headers ...string) ([]byte, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	var bodyReader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		bodyReader = bytes.NewReader(b)
		contentType = "text/plain"
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if bodyReader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(respBody)}
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			apiErr.Code = errResp.Error.Code
			apiErr.Message = errResp.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}

// APIError is a Graph API error response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API error (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a Graph 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// userPath prefixes a path with the configured user segment.
func (c *Client) userPath(path string) string {
	if c.cfg.User == "me" {
		return "/me" + path
	}
	return "/users/" + url.PathEscape(c.cfg.User) + path
}

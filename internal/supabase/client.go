// Package supabase is a small REST client for the hosted backend: GoTrue
// auth under /auth/v1 and PostgREST tables under /rest/v1.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB
)

type Config struct {
	// ProjectURL is the project root, e.g. https://xyz.supabase.co
	ProjectURL string
	AnonKey    string
	Timeout    time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

type Client struct {
	anonKey    string
	restURL    string
	authURL    string
	httpClient *http.Client

	auth *AuthClient
}

func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("anon key is required")
	}
	base := strings.TrimRight(cfg.ProjectURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid project URL: %q", cfg.ProjectURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		anonKey:    cfg.AnonKey,
		restURL:    base + "/rest/v1",
		authURL:    base + "/auth/v1",
		httpClient: httpClient,
	}
	c.auth = &AuthClient{client: c}
	return c, nil
}

func (c *Client) Auth() *AuthClient {
	return c.auth
}

// From starts a PostgREST query on table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  c,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		headers: make(map[string]string),
	}
}

type tokenKey struct{}

// WithAccessToken attaches a user's access token so table requests run
// under that user's row-level security policies.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// do performs a request and returns the body of a 2xx response. Non-2xx
// responses are parsed into *Error. An empty token authenticates with the
// anon key.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string, token string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if readErr != nil {
			return nil, fmt.Errorf("read error response: %w", readErr)
		}
		return nil, parseError(respBody, resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}
	return respBody, nil
}

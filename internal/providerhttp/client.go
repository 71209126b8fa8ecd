// Package providerhttp builds the shared HTTP client used by every provider
// adapter to talk to GitHub, GitLab, and Azure DevOps APIs. Requests retry
// transient failures (5xx, connection resets, 429) with exponential
// backoff before giving up.
package providerhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client wraps a retrying HTTP client with the conventions every provider
// adapter needs: a bearer token, a fixed user agent, and an insecure-scheme
// guard.
type Client struct {
	inner     *retryablehttp.Client
	userAgent string
	allowHTTP bool
}

// Config controls client construction.
type Config struct {
	Timeout           time.Duration
	MaxRetries        int
	UserAgent         string
	AllowInsecureHTTP bool
	Logger            *slog.Logger
}

// New builds a Client. A nil Logger silences retry logging.
func New(cfg Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.Timeout
	if cfg.Logger != nil {
		rc.Logger = slogAdapter{cfg.Logger}
	} else {
		rc.Logger = nil
	}
	rc.CheckRetry = checkRetry
	return &Client{inner: rc, userAgent: cfg.UserAgent, allowHTTP: cfg.AllowInsecureHTTP}
}

// checkRetry retries on connection errors, 429, and 5xx, matching
// retryablehttp's default policy plus an explicit 429 case (some provider
// APIs reply 429 without a Retry-After header retryablehttp recognizes).
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Do issues a request with the given bearer token and body, returning the
// raw response for the caller to decode and close.
func (c *Client) Do(ctx context.Context, method, url, bearerToken string, body io.Reader) (*http.Response, error) {
	if !c.allowHTTP && hasInsecureScheme(url) {
		return nil, errors.New("providerhttp: plain http not allowed; set Config.AllowInsecureHTTP to permit")
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	return resp, nil
}

// StandardClient exposes the *http.Client underneath, for libraries (such
// as go-github's oauth2 transport chain) that expect a plain client.
func (c *Client) StandardClient() *http.Client {
	return c.inner.StandardClient()
}

func hasInsecureScheme(u string) bool {
	return len(u) >= 7 && u[:7] == "http://"
}

// slogAdapter lets retryablehttp log through the engine's structured logger
// instead of its default stdlib logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

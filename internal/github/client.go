package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 10 * time.Second
	acceptHeader   = "application/vnd.github+json"

	// DefaultUsername is looked up when the caller supplies none.
	DefaultUsername = "octocat"
)

// ClientConfig bundles configuration for the GitHub lookup client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// LookupResult is the upstream response, passed through unmodified:
// the status code and raw JSON body, including upstream error statuses.
type LookupResult struct {
	StatusCode int
	Body       []byte
}

// Client performs user lookups against the GitHub users API. It does
// not retry, cache, or wrap the upstream response in any way.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a lookup client with sane defaults.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// LookupUser fetches the upstream user document for the username. Any
// transport-level failure is returned as an error; upstream HTTP error
// statuses are not errors and come back inside the result.
func (c *Client) LookupUser(ctx context.Context, username string) (LookupResult, error) {
	if strings.TrimSpace(username) == "" {
		username = DefaultUsername
	}

	endpoint := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(username))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return LookupResult{}, err
	}
	request.Header.Set("Accept", acceptHeader)

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("github lookup failed", zap.String("username", username), zap.Error(err))
		return LookupResult{}, err
	}
	defer response.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(response.Body)
	if err != nil {
		c.logger.Warn("github response read failed", zap.String("username", username), zap.Error(err))
		return LookupResult{}, err
	}

	return LookupResult{StatusCode: response.StatusCode, Body: body}, nil
}

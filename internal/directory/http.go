package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// maxProfileBytes bounds a profile response body.
const maxProfileBytes = 1 << 20

// HTTPClient resolves profiles from GET {base}/users/{id}.
type HTTPClient struct {
	base   string
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewHTTPClient creates a directory client. Transient failures (connection
// errors and 5xx) are retried up to retries times within the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration, retries int, logger *zap.Logger) *HTTPClient {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 50 * time.Millisecond
	c.RetryWaitMax = 500 * time.Millisecond
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return &HTTPClient{
		base:   strings.TrimRight(baseURL, "/"),
		client: c,
		logger: logger,
	}
}

func (c *HTTPClient) Lookup(ctx context.Context, id string) (*Profile, error) {
	endpoint := c.base + "/users/" + url.PathEscape(id)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("lookup %s: directory returned %s", id, resp.Status)
	}

	var p Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	c.logger.Debug("profile resolved", zap.String("id", id))
	return &p, nil
}

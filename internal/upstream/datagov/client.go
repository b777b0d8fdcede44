package datagov

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/pkg/logger"
)

// ErrUpstream marks any failure to obtain a usable payload from the
// open-data API: transport errors, non-200 statuses, unreadable bodies.
var ErrUpstream = errors.New("upstream fetch failed")

const (
	DefaultLimit   = 10000
	DefaultTimeout = 30 * time.Second
)

type Client struct {
	apiURL     string
	apiKey     string
	limit      int
	httpClient *http.Client
}

func NewClient(apiURL, apiKey string, limit int, timeout time.Duration) *Client {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		limit:  limit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchRegion returns the raw response body for every record of region.
// The body is returned verbatim so it can be archived before parsing.
func (c *Client) FetchRegion(ctx context.Context, region string) ([]byte, error) {
	if c.apiURL == "" {
		return nil, fmt.Errorf("%w: api url not configured", ErrUpstream)
	}

	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("filters[state_name]", region)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", c.apiURL, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	logger.Info("Fetching upstream records", zap.String("region", region), zap.Int("limit", c.limit))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	logger.Info("Upstream fetch complete",
		zap.String("region", region),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return body, nil
}

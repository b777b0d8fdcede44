package nominatim

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

	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/geocode"
	"github.com/mgnrega-tn/backend/internal/metrics"
	"github.com/mgnrega-tn/backend/pkg/circuitbreaker"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

var (
	ErrProviderFailure = errors.New("reverse geocode failed")
	ErrNoDistrict      = errors.New("district not found")
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "mgnrega-tn-app/1.0"
	DefaultTimeout   = 10 * time.Second
)

// AddressFields are the address components that may carry a district-like
// name, in priority order.
var AddressFields = []string{"county", "state_district", "region", "district", "city", "town"}

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: circuitbreaker.New("nominatim", circuitbreaker.Config{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNoDistrict)
			},
			Logger: logger.GetLogger(),
		}),
	}
}

type reverseResponse struct {
	Address map[string]any `json:"address"`
}

// District returns the first non-empty district-like address component for p.
func (c *Client) District(ctx context.Context, p geocode.Point) (string, error) {
	var district string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		district, err = c.reverse(ctx, p)
		return err
	})

	switch {
	case err == nil:
		metrics.GeocodeRequests.WithLabelValues("ok").Inc()
		return district, nil
	case errors.Is(err, ErrNoDistrict):
		metrics.GeocodeRequests.WithLabelValues("no_district").Inc()
		return "", err
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		metrics.GeocodeRequests.WithLabelValues("provider_error").Inc()
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	default:
		metrics.GeocodeRequests.WithLabelValues("provider_error").Inc()
		logger.Warn("Reverse geocode failed", zap.String("point", p.String()), zap.Error(err))
		return "", err
	}
}

func (c *Client) reverse(ctx context.Context, p geocode.Point) (string, error) {
	params := url.Values{}
	params.Set("lat", geocode.FormatCoordinate(p.Lat))
	params.Set("lon", geocode.FormatCoordinate(p.Lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrProviderFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrProviderFailure, err)
	}

	var out reverseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrProviderFailure, err)
	}

	if district := pickDistrict(out.Address); district != "" {
		logger.Debug("Reverse geocode resolved", zap.String("point", p.String()), zap.String("district", district))
		return district, nil
	}
	return "", ErrNoDistrict
}

func pickDistrict(address map[string]any) string {
	for _, field := range AddressFields {
		s, ok := address[field].(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

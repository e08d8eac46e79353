// Package socrata provides a client for the beach weather resource on the
// Chicago Socrata Open Data (SODA) portal.
package socrata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/beachwatch/beachwatch/internal/beachweather"
	"github.com/beachwatch/beachwatch/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL of the Chicago data portal.
	DefaultBaseURL = "https://data.cityofchicago.org"

	// DefaultDataset is the "Beach Weather Stations - Automated Sensors" dataset id.
	DefaultDataset = "k7hf-8y75"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	// ProviderName identifies this provider.
	ProviderName = "socrata"

	// appTokenHeader carries the optional application token.
	appTokenHeader = "X-App-Token"

	// maxBodyBytes limits how much of a response body is read.
	maxBodyBytes = 32 << 20
)

// ClientConfig holds configuration for the Socrata client.
type ClientConfig struct {
	// BaseURL is the portal base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Dataset is the resource identifier (defaults to DefaultDataset).
	Dataset string

	// AppToken is sent as X-App-Token when set. Requests work without it
	// but share a lower throttling pool.
	AppToken string

	// HTTPClient is the HTTP client to use.
	// If nil, a single-attempt resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 30s).
	Timeout time.Duration

	// Registry receives provider health when the default HTTP client is used.
	Registry *resilience.Registry

	// OnStateChange observes circuit breaker transitions of the default HTTP
	// client. See resilience.LogStateChanges.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries one SODA resource.
type Client struct {
	resourceURL string
	appToken    string
	httpClient  HTTPDoer
}

// NewClient creates a new Socrata client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	dataset := cfg.Dataset
	if dataset == "" {
		dataset = DefaultDataset
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		rcfg := resilience.SingleAttemptConfig(ProviderName, timeout)
		rcfg.Registry = cfg.Registry
		rcfg.CircuitBreaker.OnStateChange = cfg.OnStateChange
		httpClient = resilience.NewClient(rcfg)
	}

	return &Client{
		resourceURL: fmt.Sprintf("%s/resource/%s.json", strings.TrimSuffix(baseURL, "/"), dataset),
		appToken:    cfg.AppToken,
		httpClient:  httpClient,
	}
}

// ResourceURL returns the URL queried by the client.
func (c *Client) ResourceURL() string {
	return c.resourceURL
}

// Get issues one GET for q and returns the response whatever its status.
// Only transport failures are returned as errors.
func (c *Client) Get(ctx context.Context, q Query) (*Response, error) {
	url := c.resourceURL
	if q.Len() > 0 {
		url += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.appToken != "" {
		req.Header.Set(appTokenHeader, c.appToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.resourceURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Query:      q,
		Duration:   time.Since(start),
	}, nil
}

// Measurements fetches and decodes the records matching q. A rejected query
// is returned as a *QueryError.
func (c *Client) Measurements(ctx context.Context, q Query) ([]beachweather.Measurement, error) {
	resp, err := c.Get(ctx, q)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		if qerr, ok := resp.QueryError(); ok {
			return nil, qerr
		}
		return nil, fmt.Errorf("%w: %d from %s", beachweather.ErrUnexpectedStatus, resp.StatusCode, c.resourceURL)
	}

	return resp.Measurements()
}

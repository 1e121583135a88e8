// Package piapi provides the Prime Infrastructure REST API client facade:
// an authenticated session, catalog-driven routing between paginated data
// resources and single-shot service resources, and a fingerprint cache in
// front of the bulk fetch path.
package piapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/maximumG/piapi-go/pkg/apierr"
	"github.com/maximumG/piapi-go/pkg/cache"
	"github.com/maximumG/piapi-go/pkg/catalog"
	"github.com/maximumG/piapi-go/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for client operations.
var (
	piRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piapi_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	piRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "piapi_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	piErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piapi_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})

	piCacheServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "piapi_cache_served_total",
		Help: "Total data queries answered from the fingerprint cache",
	})
)

// Config holds the client configuration.
type Config struct {
	// Host is the Prime Infrastructure server name. The API root becomes
	// https://{Host}/webacs/api/v4.
	Host string

	// BaseURL overrides the derived API root. Mainly for test servers
	// and reverse proxies.
	BaseURL string

	// Basic auth credentials.
	Username string
	Password string

	// VerifyTLS controls server certificate verification. Disable only
	// for lab controllers with self-signed certificates.
	VerifyTLS bool

	// VirtualDomain scopes every request to the named virtual domain.
	// Empty means unscoped; per-request override via WithVirtualDomain.
	VirtualDomain string

	// Paging and pacing, passed through to the batch fetcher.
	PageSize       int
	Concurrency    int
	Hold           time.Duration
	RequestTimeout time.Duration

	// CheckCache enables the fingerprint cache lookup on data requests.
	// Misses and forced fetches always refresh the cache either way.
	CheckCache bool

	// Cache is the fingerprint cache backend (default: in-memory).
	Cache cache.Store

	// EmptyResult selects whether a zero-count query is an error or an
	// empty success.
	EmptyResult pagination.EmptyResultPolicy

	// Classifier is the response classification policy.
	Classifier apierr.Classifier
}

// DefaultConfig returns the documented defaults for the API's rate limits.
func DefaultConfig(host, username, password string) Config {
	return Config{
		Host:           host,
		Username:       username,
		Password:       password,
		VerifyTLS:      true,
		PageSize:       1000,
		Concurrency:    5,
		Hold:           1 * time.Second,
		RequestTimeout: 300 * time.Second,
		CheckCache:     true,
	}
}

// Client is a Prime Infrastructure REST API client. It is safe for
// concurrent use; the HTTP session and the fingerprint cache are shared
// across requests of one instance and nothing is shared between instances.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	config     Config
	store      cache.Store
	catalog    *catalog.Catalog
	fetcher    *pagination.Fetcher
	logger     zerolog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s/webacs/api/v4", cfg.Host)
	}

	logger := log.With().Str("component", "pi-client").Logger()

	transport := &http.Transport{
		// The API documentation advises disabling keep-alive.
		DisableKeepAlives: true,
	}
	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- explicit lab-mode opt-out
		logger.Warn().Msg("TLS certificate verification disabled")
	}

	store := cfg.Cache
	if store == nil {
		store = cache.NewMemoryStore()
	}

	client := &Client{
		httpClient: &http.Client{
			Transport: transport,
			// Bad credentials answer with a 302 to the login page; the
			// classifier needs to see it, not follow it.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:  baseURL,
		username: cfg.Username,
		password: cfg.Password,
		config:   cfg,
		store:    store,
		logger:   logger,
	}
	client.catalog = catalog.New(baseURL, client, logger)
	client.fetcher = pagination.NewFetcher(client, pagination.Config{
		PageSize:    cfg.PageSize,
		Concurrency: cfg.Concurrency,
		Hold:        cfg.Hold,
		Timeout:     cfg.RequestTimeout,
		EmptyResult: cfg.EmptyResult,
		Classifier:  cfg.Classifier,
	})

	return client, nil
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a single authenticated GET and returns the raw status and
// body. It implements the Getter interface consumed by the catalog and the
// batch fetcher.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (int, []byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, params, nil, "")
}

// do executes one HTTP call against the API.
func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body []byte, contentType string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	endpoint := req.URL.Path
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	piRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		piRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return 0, nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		piRequestsTotal.WithLabelValues(endpoint, "read_error").Inc()
		return 0, nil, fmt.Errorf("read response %s: %w", endpoint, err)
	}

	piRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	return resp.StatusCode, data, nil
}

// requestOptions are per-call overrides of the client defaults.
type requestOptions struct {
	skipCache     bool
	virtualDomain string
}

// RequestOption customizes a single Request/RequestData/RequestService call.
type RequestOption func(*requestOptions)

// WithoutCache forces a live fetch for this call. The result still
// refreshes the cache entry for future lookups.
func WithoutCache() RequestOption {
	return func(o *requestOptions) { o.skipCache = true }
}

// WithVirtualDomain scopes this call to the named virtual domain,
// overriding the client default.
func WithVirtualDomain(domain string) RequestOption {
	return func(o *requestOptions) { o.virtualDomain = domain }
}

// scoped applies the request options and returns the effective parameters.
// The caller's map is copied before any scoping key is injected.
func (c *Client) scoped(params Params, opts []RequestOption) (Params, requestOptions) {
	var options requestOptions
	for _, opt := range opts {
		opt(&options)
	}

	domain := options.virtualDomain
	if domain == "" {
		domain = c.config.VirtualDomain
	}
	if domain != "" {
		params = params.clone(1)
		params[virtualDomainKey] = domain
	}
	return params, options
}

// Request dispatches a resource name to the data path (paginated bulk
// fetch, cached) or the service path (single call), whichever catalog lists
// it. Data results come back as a JSON array of entities; service results
// as the raw response payload.
func (c *Client) Request(ctx context.Context, resource string, params Params, opts ...RequestOption) (json.RawMessage, error) {
	if _, ok, err := c.catalog.DataURL(ctx, resource); err != nil {
		return nil, err
	} else if ok {
		entities, err := c.RequestData(ctx, resource, params, opts...)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entities)
	}

	if _, ok, err := c.catalog.Service(ctx, resource); err != nil {
		return nil, err
	} else if ok {
		return c.RequestService(ctx, resource, params, opts...)
	}

	err := &apierr.ResourceNotFoundError{Name: resource}
	piErrorsTotal.WithLabelValues(apierr.Class(err)).Inc()
	return nil, err
}

// RequestData performs a bulk fetch of a data resource and returns its
// entities in page order. Completed fetches are memoized by a fingerprint
// of (resource, effective params).
func (c *Client) RequestData(ctx context.Context, resource string, params Params, opts ...RequestOption) ([]json.RawMessage, error) {
	effective, options := c.scoped(params, opts)

	resourceURL, ok, err := c.catalog.DataURL(ctx, resource)
	if err != nil {
		return nil, err
	}
	if !ok {
		notFound := &apierr.ResourceNotFoundError{Name: resource, Kind: "data"}
		piErrorsTotal.WithLabelValues(apierr.Class(notFound)).Inc()
		return nil, notFound
	}

	fingerprint, err := cache.Fingerprint(resource, effective)
	if err != nil {
		return nil, err
	}

	if c.config.CheckCache && !options.skipCache {
		entities, err := c.store.Get(ctx, fingerprint)
		if err == nil {
			piCacheServedTotal.Inc()
			c.logger.Debug().
				Str("resource", resource).
				Int("entities", len(entities)).
				Msg("Data query served from cache")
			return entities, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("resource", resource).Msg("Cache get failed, fetching live")
		}
	}

	values, err := effective.queryValues()
	if err != nil {
		return nil, err
	}

	entities, err := c.fetcher.Fetch(ctx, resourceURL, values)
	if err != nil {
		piErrorsTotal.WithLabelValues(apierr.Class(err)).Inc()
		return nil, err
	}

	if err := c.store.Put(ctx, fingerprint, entities); err != nil {
		c.logger.Warn().Err(err).Str("resource", resource).Msg("Cache put failed")
	}

	return entities, nil
}

// RequestService invokes a service resource with exactly one HTTP call
// using the catalog's recorded method. GET sends params as the query
// string, POST and PUT as a JSON body, anything else form-encoded.
func (c *Client) RequestService(ctx context.Context, resource string, params Params, opts ...RequestOption) (json.RawMessage, error) {
	effective, _ := c.scoped(params, opts)

	service, ok, err := c.catalog.Service(ctx, resource)
	if err != nil {
		return nil, err
	}
	if !ok {
		notFound := &apierr.ResourceNotFoundError{Name: resource, Kind: "service"}
		piErrorsTotal.WithLabelValues(apierr.Class(notFound)).Inc()
		return nil, notFound
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var status int
	var body []byte
	switch service.Method {
	case http.MethodGet:
		values, verr := effective.queryValues()
		if verr != nil {
			return nil, verr
		}
		status, body, err = c.do(callCtx, http.MethodGet, service.URL, values, nil, "")
	case http.MethodPost, http.MethodPut:
		payload, merr := json.Marshal(effective)
		if merr != nil {
			return nil, fmt.Errorf("encode service params: %w", merr)
		}
		status, body, err = c.do(callCtx, service.Method, service.URL, nil, payload, "application/json")
	default:
		values, verr := effective.queryValues()
		if verr != nil {
			return nil, verr
		}
		status, body, err = c.do(callCtx, service.Method, service.URL, nil,
			[]byte(values.Encode()), "application/x-www-form-urlencoded")
	}
	if err != nil {
		if ctx.Err() != nil {
			cancelled := &apierr.CancelledError{Cause: ctx.Err()}
			piErrorsTotal.WithLabelValues(apierr.Class(cancelled)).Inc()
			return nil, cancelled
		}
		piErrorsTotal.WithLabelValues(apierr.Class(err)).Inc()
		return nil, err
	}

	if err := c.config.Classifier.Classify(status, body, service.URL); err != nil {
		piErrorsTotal.WithLabelValues(apierr.Class(err)).Inc()
		return nil, fmt.Errorf("service %s: %w", resource, err)
	}

	c.logger.Debug().
		Str("resource", resource).
		Str("method", service.Method).
		Msg("Service invocation complete")

	return body, nil
}

// DataResources lists the data resource names the API exposes.
func (c *Client) DataResources(ctx context.Context) ([]string, error) {
	return c.catalog.DataResources(ctx)
}

// ServiceResources lists the service resource names the API exposes.
func (c *Client) ServiceResources(ctx context.Context) ([]string, error) {
	return c.catalog.ServiceResources(ctx)
}

// Resources lists every resource name, data and service combined.
func (c *Client) Resources(ctx context.Context) ([]string, error) {
	return c.catalog.Resources(ctx)
}

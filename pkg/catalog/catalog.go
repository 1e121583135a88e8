// Package catalog discovers and caches the resource listings the Prime
// Infrastructure API exposes: data resources (paginated read-only records)
// from data.json and service resources (single-shot operations) from op.json.
// Each listing is fetched at most once per process and is immutable after
// load.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/maximumG/piapi-go/pkg/apierr"
	"github.com/rs/zerolog"
)

// Getter performs a single GET against the API and returns the raw HTTP
// status and body. The piapi client implements it with its authenticated
// session.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (status int, body []byte, err error)
}

// Service describes how to invoke a service resource.
type Service struct {
	Method string
	URL    string
}

// Catalog resolves resource names to their endpoints.
type Catalog struct {
	baseURL    string
	getter     Getter
	classifier apierr.Classifier
	logger     zerolog.Logger

	mu       sync.Mutex
	data     map[string]string
	services map[string]Service
}

// New creates a catalog rooted at baseURL (e.g.
// "https://pi.example.com/webacs/api/v4"). Nothing is fetched until the
// first lookup.
func New(baseURL string, getter Getter, logger zerolog.Logger) *Catalog {
	return &Catalog{
		baseURL: baseURL,
		getter:  getter,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

// discoveryEnvelope covers both catalog documents: data.json fills
// entityType, op.json fills operation.
type discoveryEnvelope struct {
	QueryResponse struct {
		EntityType []struct {
			Name string `json:"$"`
			URL  string `json:"@url"`
		} `json:"entityType"`
		Operation []struct {
			Name   string `json:"$"`
			Method string `json:"@httpMethod"`
			Path   string `json:"@path"`
		} `json:"operation"`
	} `json:"queryResponse"`
}

// ensureData loads the data-resource listing once. A failed load leaves the
// catalog empty so the next call retries; a successful load is final.
func (c *Catalog) ensureData(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data != nil {
		return nil
	}

	envelope, err := c.fetch(ctx, c.baseURL+"/data.json")
	if err != nil {
		return fmt.Errorf("discover data resources: %w", err)
	}

	data := make(map[string]string, len(envelope.QueryResponse.EntityType))
	for _, entry := range envelope.QueryResponse.EntityType {
		data[entry.Name] = entry.URL + ".json"
	}
	c.data = data

	c.logger.Info().
		Int("resources", len(data)).
		Msg("Data resource catalog loaded")

	return nil
}

// ensureServices loads the service-resource listing once.
func (c *Catalog) ensureServices(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.services != nil {
		return nil
	}

	envelope, err := c.fetch(ctx, c.baseURL+"/op.json")
	if err != nil {
		return fmt.Errorf("discover service resources: %w", err)
	}

	services := make(map[string]Service, len(envelope.QueryResponse.Operation))
	for _, entry := range envelope.QueryResponse.Operation {
		services[entry.Name] = Service{
			Method: entry.Method,
			URL:    fmt.Sprintf("%s/op/%s.json", c.baseURL, entry.Path),
		}
	}
	c.services = services

	c.logger.Info().
		Int("resources", len(services)).
		Msg("Service resource catalog loaded")

	return nil
}

// fetch retrieves and classifies one catalog document.
func (c *Catalog) fetch(ctx context.Context, rawURL string) (*discoveryEnvelope, error) {
	status, body, err := c.getter.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if err := c.classifier.Classify(status, body, rawURL); err != nil {
		return nil, err
	}

	var envelope discoveryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode catalog document %s: %w", rawURL, err)
	}
	return &envelope, nil
}

// DataURL resolves a data resource name to its fetch URL.
func (c *Catalog) DataURL(ctx context.Context, name string) (string, bool, error) {
	if err := c.ensureData(ctx); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	resourceURL, ok := c.data[name]
	return resourceURL, ok, nil
}

// Service resolves a service resource name to its method and URL.
func (c *Catalog) Service(ctx context.Context, name string) (Service, bool, error) {
	if err := c.ensureServices(ctx); err != nil {
		return Service{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	service, ok := c.services[name]
	return service, ok, nil
}

// DataResources lists all data resource names, sorted.
func (c *Catalog) DataResources(ctx context.Context) ([]string, error) {
	if err := c.ensureData(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.data), nil
}

// ServiceResources lists all service resource names, sorted.
func (c *Catalog) ServiceResources(ctx context.Context) ([]string, error) {
	if err := c.ensureServices(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Resources lists every resource name the API exposes, data and service
// combined, sorted.
func (c *Catalog) Resources(ctx context.Context) ([]string, error) {
	data, err := c.DataResources(ctx)
	if err != nil {
		return nil, err
	}
	services, err := c.ServiceResources(ctx)
	if err != nil {
		return nil, err
	}
	names := append(data, services...)
	sort.Strings(names)
	return names, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

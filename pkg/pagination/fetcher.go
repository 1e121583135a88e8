package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/maximumG/piapi-go/pkg/apierr"
	"github.com/rs/zerolog/log"
)

// Paging query keys recognized by the API.
const (
	keyFull        = ".full"
	keyFirstResult = ".firstResult"
	keyMaxResults  = ".maxResults"
)

// EmptyResultPolicy decides what a zero record count means. API versions
// disagree on whether an empty query is an error, so the choice is a knob
// rather than hard-coded.
type EmptyResultPolicy int

const (
	// EmptyResultError fails the fetch with a NoResultError (the
	// historical behavior).
	EmptyResultError EmptyResultPolicy = iota

	// EmptyResultOK returns an empty entity list.
	EmptyResultOK
)

// Config holds batch fetcher configuration.
type Config struct {
	// PageSize is the number of records requested per page.
	PageSize int

	// Concurrency is the maximum number of parallel page requests. The
	// API documents its rate limit in terms of simultaneous requests, so
	// this is the chunk size.
	Concurrency int

	// Hold is the pause between chunks. Pacing is pre-emptive: the server
	// limits requests per unit time, so chunks need wall-clock separation.
	Hold time.Duration

	// Timeout applies to each individual request, count probe included.
	Timeout time.Duration

	// EmptyResult selects the zero-count behavior.
	EmptyResult EmptyResultPolicy

	// Classifier maps page responses to typed errors.
	Classifier apierr.Classifier
}

// DefaultConfig returns the documented safe defaults for the API's rate
// limiting: 1000 records per page, 5 parallel requests, 1s hold.
func DefaultConfig() Config {
	return Config{
		PageSize:    1000,
		Concurrency: 5,
		Hold:        1 * time.Second,
		Timeout:     300 * time.Second,
	}
}

// Getter performs a single GET against the API and returns the raw HTTP
// status and body.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (status int, body []byte, err error)
}

// Fetcher retrieves all pages of a data resource in paced, concurrent
// chunks.
type Fetcher struct {
	getter Getter
	config Config
}

// NewFetcher creates a batch fetcher. Non-positive config values fall back
// to the defaults.
func NewFetcher(getter Getter, config Config) *Fetcher {
	defaults := DefaultConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Hold < 0 {
		config.Hold = defaults.Hold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Fetcher{
		getter: getter,
		config: config,
	}
}

// pageRequest is one unit of work: a page offset plus the effective query
// parameters for exactly one HTTP call.
type pageRequest struct {
	offset int
	params url.Values
}

// Fetch retrieves every record the query matches and returns the entities
// in ascending page offset order. baseParams is never mutated; every page
// works on its own copy.
func (f *Fetcher) Fetch(ctx context.Context, resourceURL string, baseParams url.Values) ([]json.RawMessage, error) {
	start := time.Now()

	count, err := f.countProbe(ctx, resourceURL, baseParams)
	if err != nil {
		return nil, err
	}

	if count <= 0 {
		if f.config.EmptyResult == EmptyResultOK {
			log.Debug().
				Str("url", resourceURL).
				Msg("Query matched zero records, returning empty result")
			return []json.RawMessage{}, nil
		}
		return nil, &apierr.NoResultError{URL: resourceURL, Params: baseParams.Encode()}
	}

	pages := f.partition(count, baseParams)

	log.Info().
		Str("url", resourceURL).
		Int("count", count).
		Int("pages", len(pages)).
		Int("concurrency", f.config.Concurrency).
		Msg("Starting paged fetch")

	// Index-addressed so assembly order is page order, not completion order.
	results := make([][]json.RawMessage, len(pages))

	for chunkStart := 0; chunkStart < len(pages); chunkStart += f.config.Concurrency {
		if ctx.Err() != nil {
			return nil, &apierr.CancelledError{Cause: ctx.Err()}
		}

		chunkEnd := min(chunkStart+f.config.Concurrency, len(pages))

		errs := make([]error, chunkEnd-chunkStart)
		var wg sync.WaitGroup
		for i := chunkStart; i < chunkEnd; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				entities, err := f.fetchPage(ctx, resourceURL, pages[i])
				if err != nil {
					errs[i-chunkStart] = err
					return
				}
				results[i] = entities
			}(i)
		}
		wg.Wait()

		// Fail fast in dispatch order; partial results are discarded.
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}

		log.Debug().
			Str("url", resourceURL).
			Int("first_page", chunkStart).
			Int("pages", chunkEnd-chunkStart).
			Msg("Chunk complete, holding")

		// The pause applies after every chunk, the last one included:
		// the server's pacing window does not care which chunk it was.
		if !f.holdPause(ctx) && chunkEnd < len(pages) {
			return nil, &apierr.CancelledError{Cause: ctx.Err()}
		}
	}

	assembled := make([]json.RawMessage, 0, count)
	for _, entities := range results {
		assembled = append(assembled, entities...)
	}

	if len(assembled) != count {
		log.Warn().
			Str("url", resourceURL).
			Int("count", count).
			Int("entities", len(assembled)).
			Msg("Assembled entity count differs from count probe")
	}

	log.Info().
		Str("url", resourceURL).
		Int("pages", len(pages)).
		Int("entities", len(assembled)).
		Dur("duration", time.Since(start)).
		Msg("Paged fetch complete")

	return assembled, nil
}

// countProbe issues the initial un-paged request and extracts the total
// record count from the response envelope.
func (f *Fetcher) countProbe(ctx context.Context, resourceURL string, baseParams url.Values) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	status, body, err := f.getter.Get(probeCtx, resourceURL, baseParams)
	if err != nil {
		if ctx.Err() != nil {
			return 0, &apierr.CancelledError{Cause: ctx.Err()}
		}
		return 0, fmt.Errorf("count probe %s: %w", resourceURL, err)
	}
	if err := f.config.Classifier.Classify(status, body, resourceURL); err != nil {
		return 0, fmt.Errorf("count probe: %w", err)
	}

	count, _, err := parseEnvelope(body)
	if err != nil {
		return 0, fmt.Errorf("count probe %s: %w", resourceURL, err)
	}
	return count, nil
}

// partition derives one page request per PageSize offset. Each page gets
// its own copy of baseParams with the paging keys added.
func (f *Fetcher) partition(count int, baseParams url.Values) []pageRequest {
	pages := make([]pageRequest, 0, (count+f.config.PageSize-1)/f.config.PageSize)
	for offset := 0; offset < count; offset += f.config.PageSize {
		params := cloneValues(baseParams)
		params.Set(keyFull, "true")
		params.Set(keyFirstResult, strconv.Itoa(offset))
		params.Set(keyMaxResults, strconv.Itoa(f.config.PageSize))
		pages = append(pages, pageRequest{offset: offset, params: params})
	}
	return pages
}

// fetchPage performs and classifies a single page request.
func (f *Fetcher) fetchPage(ctx context.Context, resourceURL string, page pageRequest) ([]json.RawMessage, error) {
	pageCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	status, body, err := f.getter.Get(pageCtx, resourceURL, page.params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &apierr.CancelledError{Cause: ctx.Err()}
		}
		return nil, fmt.Errorf("fetch page at offset %d: %w", page.offset, err)
	}
	if err := f.config.Classifier.Classify(status, body, resourceURL); err != nil {
		return nil, fmt.Errorf("page at offset %d: %w", page.offset, err)
	}

	_, entities, err := parseEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("page at offset %d: %w", page.offset, err)
	}
	return entities, nil
}

// holdPause sleeps the configured hold, honoring cancellation. Returns
// false when the context fired first.
func (f *Fetcher) holdPause(ctx context.Context) bool {
	if f.config.Hold <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(f.config.Hold):
		return true
	}
}

func cloneValues(values url.Values) url.Values {
	clone := make(url.Values, len(values)+3)
	for key, vals := range values {
		clone[key] = append([]string(nil), vals...)
	}
	return clone
}

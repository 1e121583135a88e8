package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maximumG/piapi-go/pkg/apierr"
)

// fakeAPI implements Getter in-process so tests control counts, failures,
// and latency per page without a real server.
type fakeAPI struct {
	count       int
	failOffsets map[int]int           // page offset -> HTTP status
	delays      map[int]time.Duration // page offset -> response latency

	mu          sync.Mutex
	requests    []url.Values
	started     map[int]time.Time
	inFlight    int
	maxInFlight int
}

func newFakeAPI(count int) *fakeAPI {
	return &fakeAPI{
		count:       count,
		failOffsets: make(map[int]int),
		delays:      make(map[int]time.Duration),
		started:     make(map[int]time.Time),
	}
}

func (f *fakeAPI) Get(ctx context.Context, rawURL string, params url.Values) (int, []byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, cloneValues(params))
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	// Count probe carries no paging keys.
	if params.Get(keyFirstResult) == "" {
		body := fmt.Sprintf(`{"queryResponse":{"@count":"%d"}}`, f.count)
		return 200, []byte(body), nil
	}

	offset, _ := strconv.Atoi(params.Get(keyFirstResult))

	f.mu.Lock()
	f.started[offset] = time.Now()
	delay := f.delays[offset]
	status := f.failOffsets[offset]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return 0, nil, ctx.Err()
	}
	if status != 0 {
		return status, nil, nil
	}

	maxResults, _ := strconv.Atoi(params.Get(keyMaxResults))
	n := min(maxResults, f.count-offset)
	entities := make([]string, 0, n)
	for i := 0; i < n; i++ {
		entities = append(entities, fmt.Sprintf(`{"@seq":%d}`, offset+i))
	}
	body := fmt.Sprintf(`{"queryResponse":{"@count":%d,"entity":[%s]}}`,
		f.count, strings.Join(entities, ","))
	return 200, []byte(body), nil
}

// pageRequests returns the recorded requests that carried paging keys.
func (f *fakeAPI) pageRequests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pages []url.Values
	for _, req := range f.requests {
		if req.Get(keyFirstResult) != "" {
			pages = append(pages, req)
		}
	}
	return pages
}

func seqOf(t *testing.T, entity json.RawMessage) int {
	t.Helper()
	var record struct {
		Seq int `json:"@seq"`
	}
	if err := json.Unmarshal(entity, &record); err != nil {
		t.Fatalf("decode entity %s: %v", entity, err)
	}
	return record.Seq
}

func TestFetcher_PagePartitioning(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		pageSize  int
		wantPages int
	}{
		{"exact multiple", 2000, 1000, 2},
		{"remainder page", 2500, 1000, 3},
		{"single record", 1, 1000, 1},
		{"page size above count", 10, 1000, 1},
		{"page size one", 4, 1, 4},
		{"large uneven", 10001, 1000, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(tt.count)
			fetcher := NewFetcher(api, Config{
				PageSize:    tt.pageSize,
				Concurrency: 100,
				Hold:        time.Millisecond,
				Timeout:     time.Second,
			})

			entities, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil)
			if err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			if len(entities) != tt.count {
				t.Errorf("Fetch() returned %d entities, want %d", len(entities), tt.count)
			}

			pages := api.pageRequests()
			if len(pages) != tt.wantPages {
				t.Fatalf("issued %d page requests, want %d", len(pages), tt.wantPages)
			}
			for i, page := range pages {
				if got := page.Get(keyMaxResults); got != strconv.Itoa(tt.pageSize) {
					t.Errorf("page %d %s = %s, want %d", i, keyMaxResults, got, tt.pageSize)
				}
				if got := page.Get(keyFull); got != "true" {
					t.Errorf("page %d %s = %s, want true", i, keyFull, got)
				}
			}
		})
	}
}

// Results must come back in ascending offset order even when later pages
// finish first.
func TestFetcher_OrderIndependentOfCompletion(t *testing.T) {
	api := newFakeAPI(50)
	// First page is slowest, last page fastest.
	api.delays[0] = 60 * time.Millisecond
	api.delays[10] = 40 * time.Millisecond
	api.delays[20] = 20 * time.Millisecond
	api.delays[30] = 10 * time.Millisecond
	api.delays[40] = 0

	fetcher := NewFetcher(api, Config{
		PageSize:    10,
		Concurrency: 5,
		Hold:        time.Millisecond,
		Timeout:     time.Second,
	})

	entities, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(entities) != 50 {
		t.Fatalf("Fetch() returned %d entities, want 50", len(entities))
	}
	for i, entity := range entities {
		if seq := seqOf(t, entity); seq != i {
			t.Fatalf("entities[%d] has seq %d, want %d (order not preserved)", i, seq, i)
		}
	}
}

// Scenario: count probe reports 2500, pageSize 1000, concurrency 5. Three
// pages fit a single chunk and the full result arrives in offset order.
func TestFetcher_SingleChunk(t *testing.T) {
	api := newFakeAPI(2500)
	fetcher := NewFetcher(api, Config{
		PageSize:    1000,
		Concurrency: 5,
		Hold:        time.Millisecond,
		Timeout:     time.Second,
	})

	entities, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(entities) != 2500 {
		t.Errorf("Fetch() returned %d entities, want 2500", len(entities))
	}
	if pages := api.pageRequests(); len(pages) != 3 {
		t.Errorf("issued %d page requests, want 3", len(pages))
	}
	if seq := seqOf(t, entities[2499]); seq != 2499 {
		t.Errorf("last entity seq = %d, want 2499", seq)
	}
}

func TestFetcher_ZeroCount(t *testing.T) {
	t.Run("error policy", func(t *testing.T) {
		api := newFakeAPI(0)
		fetcher := NewFetcher(api, Config{
			PageSize:    1000,
			Concurrency: 5,
			Hold:        time.Millisecond,
			Timeout:     time.Second,
		})

		_, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil)
		if !apierr.IsNoResult(err) {
			t.Fatalf("Fetch() = %v, want NoResultError", err)
		}
		// The probe is the only request: no pages may be issued.
		if len(api.requests) != 1 {
			t.Errorf("issued %d requests, want 1 (probe only)", len(api.requests))
		}
	})

	t.Run("empty result policy", func(t *testing.T) {
		api := newFakeAPI(0)
		fetcher := NewFetcher(api, Config{
			PageSize:    1000,
			Concurrency: 5,
			Hold:        time.Millisecond,
			Timeout:     time.Second,
			EmptyResult: EmptyResultOK,
		})

		entities, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil)
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
		if entities == nil || len(entities) != 0 {
			t.Errorf("Fetch() = %v, want empty non-nil slice", entities)
		}
	})
}

// Scenario: the second page returns 503. The fetch fails with the
// transient ServerError and the first page's entities are discarded.
func TestFetcher_PageFailureDiscardsPartial(t *testing.T) {
	api := newFakeAPI(2500)
	api.failOffsets[1000] = 503

	fetcher := NewFetcher(api, Config{
		PageSize:    1000,
		Concurrency: 5,
		Hold:        time.Millisecond,
		Timeout:     time.Second,
	})

	entities, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil)
	if !apierr.IsTransient(err) {
		t.Fatalf("Fetch() = %v, want transient ServerError", err)
	}
	if entities != nil {
		t.Errorf("Fetch() returned %d entities alongside error, want none", len(entities))
	}
}

func TestFetcher_ProbeFailure(t *testing.T) {
	probeFail := func(status int) error {
		fetcher := NewFetcher(&statusGetter{status: status}, Config{
			PageSize:    10,
			Concurrency: 2,
			Hold:        time.Millisecond,
			Timeout:     time.Second,
		})
		_, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil)
		return err
	}

	if err := probeFail(401); !apierr.IsAuth(err) {
		t.Errorf("probe 401 = %v, want AuthError", err)
	}
	if err := probeFail(503); !apierr.IsTransient(err) {
		t.Errorf("probe 503 = %v, want transient ServerError", err)
	}
}

// statusGetter always answers with one status and no body.
type statusGetter struct {
	status int
}

func (g *statusGetter) Get(ctx context.Context, rawURL string, params url.Values) (int, []byte, error) {
	return g.status, nil, nil
}

func TestFetcher_ConcurrencyBounded(t *testing.T) {
	api := newFakeAPI(100)
	for offset := 0; offset < 100; offset += 10 {
		api.delays[offset] = 10 * time.Millisecond
	}

	fetcher := NewFetcher(api, Config{
		PageSize:    10,
		Concurrency: 2,
		Hold:        time.Millisecond,
		Timeout:     time.Second,
	})

	if _, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if api.maxInFlight > 2 {
		t.Errorf("max in-flight requests = %d, want <= 2", api.maxInFlight)
	}
}

// Consecutive chunks must be separated by at least the hold duration.
func TestFetcher_HoldSeparatesChunks(t *testing.T) {
	const hold = 80 * time.Millisecond

	api := newFakeAPI(40)
	fetcher := NewFetcher(api, Config{
		PageSize:    10,
		Concurrency: 2,
		Hold:        hold,
		Timeout:     time.Second,
	})

	if _, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", nil); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	// Chunk 1 is offsets 0 and 10, chunk 2 is offsets 20 and 30.
	chunk1End := api.started[0]
	if api.started[10].After(chunk1End) {
		chunk1End = api.started[10]
	}
	chunk2Start := api.started[20]
	if api.started[30].Before(chunk2Start) {
		chunk2Start = api.started[30]
	}

	if gap := chunk2Start.Sub(chunk1End); gap < hold {
		t.Errorf("gap between chunks = %v, want >= %v", gap, hold)
	}
}

func TestFetcher_Cancellation(t *testing.T) {
	api := newFakeAPI(100)
	for offset := 0; offset < 100; offset += 10 {
		api.delays[offset] = 200 * time.Millisecond
	}

	fetcher := NewFetcher(api, Config{
		PageSize:    10,
		Concurrency: 2,
		Hold:        time.Millisecond,
		Timeout:     time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := fetcher.Fetch(ctx, "https://pi.example.com/data/Clients.json", nil)
	if !apierr.IsCancelled(err) {
		t.Fatalf("Fetch() after cancel = %v, want CancelledError", err)
	}
}

// baseParams belong to the caller; paging keys may only appear on the
// per-page copies.
func TestFetcher_BaseParamsNotMutated(t *testing.T) {
	api := newFakeAPI(25)
	fetcher := NewFetcher(api, Config{
		PageSize:    10,
		Concurrency: 5,
		Hold:        time.Millisecond,
		Timeout:     time.Second,
	})

	baseParams := url.Values{"siteName": []string{"Campus-A"}}
	if _, err := fetcher.Fetch(context.Background(), "https://pi.example.com/data/Clients.json", baseParams); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if len(baseParams) != 1 || baseParams.Get("siteName") != "Campus-A" {
		t.Errorf("baseParams mutated: %v", baseParams)
	}
	for i, page := range api.pageRequests() {
		if page.Get("siteName") != "Campus-A" {
			t.Errorf("page %d lost base param: %v", i, page)
		}
	}
}

func TestFlexCount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"string count", `{"queryResponse":{"@count":"2500"}}`, 2500},
		{"numeric count", `{"queryResponse":{"@count":2500}}`, 2500},
		{"legacy counts key", `{"queryResponse":{"@counts":"7"}}`, 7},
		{"missing count", `{"queryResponse":{}}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, _, err := parseEnvelope([]byte(tt.body))
			if err != nil {
				t.Fatalf("parseEnvelope() error: %v", err)
			}
			if count != tt.want {
				t.Errorf("parseEnvelope() count = %d, want %d", count, tt.want)
			}
		})
	}
}

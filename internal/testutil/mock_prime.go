// Package testutil provides a configurable mock Prime Infrastructure
// server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockService configures a service resource on the mock server.
type MockService struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// MockPrime is a mock Prime Infrastructure REST API server. It serves the
// catalog documents (data.json, op.json), paginated data resources honoring
// .firstResult/.maxResults, and registered service operations.
type MockPrime struct {
	server *httptest.Server

	mu          sync.Mutex
	entities    map[string][]json.RawMessage
	services    map[string]MockService
	failOffsets map[string]map[int]int // resource -> page offset -> status
	pageDelay   time.Duration

	// Tracking
	RequestCount     int
	DataRequestCount map[string]int
	LastDataQuery    map[string]url.Values
	LastAuthHeader   string
	inFlight         int
	MaxInFlight      int
}

// NewMockPrime creates and starts a mock server.
func NewMockPrime() *MockPrime {
	mock := &MockPrime{
		entities:         make(map[string][]json.RawMessage),
		services:         make(map[string]MockService),
		failOffsets:      make(map[string]map[int]int),
		DataRequestCount: make(map[string]int),
		LastDataQuery:    make(map[string]url.Values),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.route))
	return mock
}

// BaseURL returns the mock API root, ending in /webacs/api/v4.
func (m *MockPrime) BaseURL() string {
	return m.server.URL + "/webacs/api/v4"
}

// Close shuts down the mock server.
func (m *MockPrime) Close() {
	m.server.Close()
}

// AddDataResource registers a data resource with count generated entities
// of the form {"@seq":N}.
func (m *MockPrime) AddDataResource(name string, count int) {
	entities := make([]json.RawMessage, 0, count)
	for i := 0; i < count; i++ {
		entities = append(entities, json.RawMessage(fmt.Sprintf(`{"@seq":%d}`, i)))
	}
	m.SetEntities(name, entities)
}

// SetEntities registers a data resource with explicit entities.
func (m *MockPrime) SetEntities(name string, entities []json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[name] = entities
}

// AddService registers a service resource.
func (m *MockPrime) AddService(name string, svc MockService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[name] = svc
}

// FailPage makes the page starting at offset answer with status instead of
// data.
func (m *MockPrime) FailPage(resource string, offset, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOffsets[resource] == nil {
		m.failOffsets[resource] = make(map[int]int)
	}
	m.failOffsets[resource][offset] = status
}

// SetPageDelay delays every data response, useful for cancellation and
// concurrency tests.
func (m *MockPrime) SetPageDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageDelay = delay
}

func (m *MockPrime) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastAuthHeader = r.Header.Get("Authorization")
	m.inFlight++
	if m.inFlight > m.MaxInFlight {
		m.MaxInFlight = m.inFlight
	}
	delay := m.pageDelay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(delay):
		}
	}

	path := r.URL.Path
	switch {
	case path == "/webacs/api/v4/data.json":
		m.serveDataCatalog(w)
	case path == "/webacs/api/v4/op.json":
		m.serveServiceCatalog(w)
	case strings.HasPrefix(path, "/webacs/api/v4/data/"):
		name := strings.TrimSuffix(strings.TrimPrefix(path, "/webacs/api/v4/data/"), ".json")
		m.serveData(w, r, name)
	case strings.HasPrefix(path, "/webacs/api/v4/op/"):
		m.serveService(w, r, strings.TrimPrefix(path, "/webacs/api/v4/op/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *MockPrime) serveDataCatalog(w http.ResponseWriter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]string, 0, len(m.entities))
	for name := range m.entities {
		entries = append(entries, fmt.Sprintf(`{"$":%q,"@url":"%s/webacs/api/v4/data/%s"}`,
			name, m.server.URL, name))
	}
	fmt.Fprintf(w, `{"queryResponse":{"entityType":[%s]}}`, strings.Join(entries, ","))
}

func (m *MockPrime) serveServiceCatalog(w http.ResponseWriter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]string, 0, len(m.services))
	for name, svc := range m.services {
		entries = append(entries, fmt.Sprintf(`{"$":%q,"@httpMethod":%q,"@path":%q}`,
			name, svc.Method, svc.Path))
	}
	fmt.Fprintf(w, `{"queryResponse":{"operation":[%s]}}`, strings.Join(entries, ","))
}

func (m *MockPrime) serveData(w http.ResponseWriter, r *http.Request, name string) {
	m.mu.Lock()
	entities, ok := m.entities[name]
	m.DataRequestCount[name]++
	m.LastDataQuery[name] = r.URL.Query()
	failures := m.failOffsets[name]
	m.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	query := r.URL.Query()

	// Count probe: no paging keys present.
	if query.Get(".firstResult") == "" {
		fmt.Fprintf(w, `{"queryResponse":{"@count":"%d"}}`, len(entities))
		return
	}

	first, _ := strconv.Atoi(query.Get(".firstResult"))
	if status, failed := failures[first]; failed {
		w.WriteHeader(status)
		return
	}

	maxResults, _ := strconv.Atoi(query.Get(".maxResults"))
	last := min(first+maxResults, len(entities))
	if first > len(entities) {
		first = len(entities)
	}

	page := make([]string, 0, last-first)
	for _, entity := range entities[first:last] {
		page = append(page, string(entity))
	}
	fmt.Fprintf(w, `{"queryResponse":{"@count":%d,"entity":[%s]}}`,
		len(entities), strings.Join(page, ","))
}

func (m *MockPrime) serveService(w http.ResponseWriter, r *http.Request, opPath string) {
	opPath = strings.TrimSuffix(opPath, ".json")

	m.mu.Lock()
	var matched *MockService
	for _, svc := range m.services {
		if svc.Path == opPath && svc.Method == r.Method {
			found := svc
			matched = &found
			break
		}
	}
	m.mu.Unlock()

	if matched == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if matched.Handler != nil {
		matched.Handler(w, r)
		return
	}
	fmt.Fprintf(w, `{"mgmtResponse":{"operation":%q,"status":"SUCCESS"}}`, opPath)
}

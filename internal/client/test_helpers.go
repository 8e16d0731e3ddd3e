package client

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/powerplatform-go/dataverse/internal/constants"
	internalhttp "github.com/powerplatform-go/dataverse/internal/http"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// Common table fixtures used across the client tests.
var (
	accountTable = dataverse.TableInfo{
		MetadataID:    "70816501-edb9-4740-a16c-6a5efbc05d84",
		LogicalName:   "account",
		SchemaName:    "Account",
		EntitySetName: "accounts",
	}

	contactTable = dataverse.TableInfo{
		MetadataID:    "608861bc-50a4-4c5f-a02c-21fe1943e2cf",
		LogicalName:   "contact",
		SchemaName:    "Contact",
		EntitySetName: "contacts",
	}
)

// fixture is a fake Dataverse environment. It answers EntityDefinitions
// lookups for the registered tables, counts how many metadata requests each
// table cost, and routes all other traffic to per-route handlers.
type fixture struct {
	t      *testing.T
	server *httptest.Server
	tables []dataverse.TableInfo

	mu           sync.Mutex
	metadataHits map[string]int
	routes       map[string]nethttp.HandlerFunc
}

func newFixture(t *testing.T, tables ...dataverse.TableInfo) *fixture {
	t.Helper()

	if len(tables) == 0 {
		tables = []dataverse.TableInfo{accountTable}
	}

	fix := &fixture{
		t:            t,
		tables:       tables,
		metadataHits: make(map[string]int),
		routes:       make(map[string]nethttp.HandlerFunc),
	}

	fix.server = httptest.NewServer(nethttp.HandlerFunc(fix.serve))
	t.Cleanup(fix.server.Close)

	return fix
}

// Handle registers a handler for a method and API-relative path, for example
// ("POST", "/accounts").
func (f *fixture) Handle(method, path string, handler nethttp.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.routes[method+" "+constants.APIPath+path] = handler
}

// MetadataHits returns how many EntityDefinitions requests resolved the
// given table name.
func (f *fixture) MetadataHits(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.metadataHits[strings.ToLower(table)]
}

func (f *fixture) serve(writer nethttp.ResponseWriter, request *nethttp.Request) {
	if request.URL.Path == constants.APIPath+constants.EntityDefinitionsPath {
		f.serveMetadata(writer, request)

		return
	}

	f.mu.Lock()
	handler, ok := f.routes[request.Method+" "+request.URL.Path]
	f.mu.Unlock()

	if !ok {
		f.t.Errorf("unexpected request: %s %s", request.Method, request.URL.Path)
		writer.WriteHeader(nethttp.StatusNotFound)

		return
	}

	handler(writer, request)
}

// serveMetadata answers EntityDefinitions queries. A filtered request
// resolves a single table by logical, schema, or entity set name; an
// unfiltered request lists every registered table.
func (f *fixture) serveMetadata(writer nethttp.ResponseWriter, request *nethttp.Request) {
	filter := request.URL.Query().Get("$filter")

	matches := make([]dataverse.TableInfo, 0, len(f.tables))

	if filter == "" {
		matches = append(matches, f.tables...)
	} else {
		name := nameFromFilter(filter)

		f.mu.Lock()
		f.metadataHits[strings.ToLower(name)]++
		f.mu.Unlock()

		for _, table := range f.tables {
			if strings.EqualFold(name, table.LogicalName) ||
				strings.EqualFold(name, table.SchemaName) ||
				strings.EqualFold(name, table.EntitySetName) {
				matches = append(matches, table)

				break
			}
		}
	}

	writer.Header().Set("Content-Type", constants.ContentTypeJSON)
	_ = json.NewEncoder(writer).Encode(map[string]interface{}{"value": matches})
}

// nameFromFilter pulls the quoted name out of a filter like
// "LogicalName eq 'account' or ...".
func nameFromFilter(filter string) string {
	start := strings.Index(filter, "'")
	if start == -1 {
		return ""
	}

	end := strings.Index(filter[start+1:], "'")
	if end == -1 {
		return ""
	}

	return filter[start+1 : start+1+end]
}

// fastRetryPolicy keeps tests quick: no retries, no backoff sleeps.
func fastRetryPolicy() *internalhttp.RetryPolicy {
	return &internalhttp.RetryPolicy{
		MaxAttempts:   1,
		BaseDelay:     time.Millisecond,
		MaxBackoff:    10 * time.Millisecond,
		DisableJitter: true,
	}
}

// newTestTables builds a TablesClient against the fixture with an isolated
// in-memory cache.
func newTestTables(fix *fixture) *TablesClient {
	httpClient := internalhttp.NewClient(fix.server.URL, nil,
		internalhttp.WithRetryPolicy(fastRetryPolicy()))

	return NewTablesClient(httpClient, dataverse.NewMemoryCache(constants.DefaultCacheSize))
}

// newTestRecords builds a RecordsClient against the fixture.
func newTestRecords(fix *fixture, pageSize int) *RecordsClient {
	httpClient := internalhttp.NewClient(fix.server.URL, nil,
		internalhttp.WithRetryPolicy(fastRetryPolicy()))
	tables := NewTablesClient(httpClient, dataverse.NewMemoryCache(constants.DefaultCacheSize))

	return NewRecordsClient(httpClient, tables, pageSize, nil)
}

// decodeBody decodes a JSON request body into a map for assertions.
func decodeBody(t *testing.T, request *nethttp.Request) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}

	err := json.NewDecoder(request.Body).Decode(&body)
	if err != nil {
		t.Fatalf("decoding request body: %v", err)
	}

	return body
}

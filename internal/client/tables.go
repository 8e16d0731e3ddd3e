package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/internal/http"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// metadataSelect lists the EntityDefinitions columns the client needs.
const metadataSelect = "MetadataId,LogicalName,SchemaName,EntitySetName"

// TablesClient implements dataverse.TablesClient. Resolved metadata is
// memoized per client instance and mirrored to the configured cache, so each
// table costs at most one metadata request for the life of the client.
type TablesClient struct {
	httpClient *http.Client
	cache      dataverse.Cache
	cacheTTL   time.Duration

	mu       sync.Mutex
	resolved map[string]*dataverse.TableInfo
}

// NewTablesClient creates a new tables client.
func NewTablesClient(httpClient *http.Client, cache dataverse.Cache) *TablesClient {
	if cache == nil {
		cache = dataverse.NewMemoryCache(constants.DefaultCacheSize)
	}

	return &TablesClient{
		httpClient: httpClient,
		cache:      cache,
		cacheTTL:   constants.DefaultCacheTTL,
		resolved:   make(map[string]*dataverse.TableInfo),
	}
}

// Info implements dataverse.TablesClient.Info.
func (c *TablesClient) Info(ctx context.Context, table string) (*dataverse.TableInfo, error) {
	if table == "" {
		return nil, dataverse.ErrTableNameRequired
	}

	key := strings.ToLower(table)

	// Serialized so concurrent lookups of the same table trigger exactly
	// one metadata request.
	c.mu.Lock()
	defer c.mu.Unlock()

	if info, ok := c.resolved[key]; ok {
		return info, nil
	}

	if info := c.fromCache(ctx, key); info != nil {
		c.resolved[key] = info

		return info, nil
	}

	info, err := c.resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	c.resolved[key] = info
	c.toCache(ctx, key, info)

	return info, nil
}

// List implements dataverse.TablesClient.List.
func (c *TablesClient) List(ctx context.Context) ([]dataverse.TableInfo, error) {
	query := url.Values{}
	query.Set("$select", metadataSelect)

	resp, err := c.httpClient.Get(ctx, constants.EntityDefinitionsPath, query)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	var list dataverse.ListResponse[dataverse.TableInfo]

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing table list: %w", err)
	}

	return list.Value, nil
}

// resolve queries EntityDefinitions for one table. The filter matches the
// logical, schema, or entity set name so callers can use whichever they
// have. A 404 here is retried within the attempt budget: metadata for a
// freshly created table can lag behind its first use.
func (c *TablesClient) resolve(ctx context.Context, table string) (*dataverse.TableInfo, error) {
	lower := strings.ToLower(table)
	filter := fmt.Sprintf("LogicalName eq '%s' or SchemaName eq '%s' or EntitySetName eq '%s'",
		lower, table, lower)

	query := url.Values{}
	query.Set("$select", metadataSelect)
	query.Set("$filter", filter)

	resp, err := c.httpClient.Get(http.WithMetadataRetry(ctx), constants.EntityDefinitionsPath, query)
	if err != nil {
		return nil, fmt.Errorf("resolving table %q: %w", table, err)
	}

	var list dataverse.ListResponse[dataverse.TableInfo]

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing table metadata: %w", err)
	}

	if len(list.Value) == 0 {
		return nil, fmt.Errorf("%w: %s", dataverse.ErrTableNotFound, table)
	}

	info := list.Value[0]
	if info.EntitySetName == "" {
		return nil, fmt.Errorf("%w: %s", dataverse.ErrMissingEntitySetName, table)
	}

	return &info, nil
}

func (c *TablesClient) fromCache(ctx context.Context, key string) *dataverse.TableInfo {
	entry, err := c.cache.Get(ctx, cacheKey(key))
	if err != nil {
		return nil
	}

	var info dataverse.TableInfo
	if json.Unmarshal(entry.Data, &info) != nil || info.EntitySetName == "" {
		return nil
	}

	return &info
}

func (c *TablesClient) toCache(ctx context.Context, key string, info *dataverse.TableInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}

	_ = c.cache.Set(ctx, cacheKey(key), &dataverse.CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(c.cacheTTL),
	})
}

func cacheKey(table string) string {
	return "tableinfo:" + table
}

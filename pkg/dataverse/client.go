package dataverse

import (
	"context"
	"time"
)

// RecordsClient performs row-level operations against Dataverse tables.
// Table arguments are logical names ("account"), not entity set names; the
// client resolves collection URLs and type annotations from table metadata.
type RecordsClient interface {
	// Create inserts one record and returns its id.
	Create(ctx context.Context, table string, record Record) (string, error)

	// CreateReturning inserts one record and returns the stored row.
	CreateReturning(ctx context.Context, table string, record Record) (Record, error)

	// CreateMany inserts records in one round trip and returns their ids in
	// input order.
	CreateMany(ctx context.Context, table string, records []Record) ([]string, error)

	// Get retrieves a single record by id.
	Get(ctx context.Context, table string, id string, options *QueryOptions) (Record, error)

	// Update applies a change set to one record.
	Update(ctx context.Context, table string, id string, changes Record) error

	// UpdateReturning applies a change set and returns the stored row.
	UpdateReturning(ctx context.Context, table string, id string, changes Record) (Record, error)

	// UpdateMany updates the given ids in one round trip. changes must hold
	// either one change set, applied to every id, or exactly one per id.
	UpdateMany(ctx context.Context, table string, ids []string, changes []Record) error

	// Delete removes one record by id.
	Delete(ctx context.Context, table string, id string) error

	// DeleteMany removes the given ids one by one. With the job option it
	// instead schedules a server-side bulk delete and returns immediately.
	DeleteMany(ctx context.Context, table string, ids []string, options *DeleteManyOptions) (*BulkDeleteJob, error)

	// List queries rows lazily, fetching pages on demand.
	List(ctx context.Context, table string, options *QueryOptions) *RowIterator
}

// DeleteManyOptions tunes DeleteMany behavior.
type DeleteManyOptions struct {
	// UseBulkDeleteJob schedules an asynchronous server-side job instead of
	// deleting synchronously per record.
	UseBulkDeleteJob bool

	// JobName labels the bulk delete job in the admin UI.
	JobName string
}

// TablesClient reads table metadata.
type TablesClient interface {
	// Info resolves metadata for one table by logical, schema, or entity set
	// name. Results are cached for the life of the client.
	Info(ctx context.Context, table string) (*TableInfo, error)

	// List returns metadata for every table in the environment.
	List(ctx context.Context) ([]TableInfo, error)
}

// QueryClient runs read-only SQL queries through the SQL passthrough API.
type QueryClient interface {
	// SQL executes a T-SQL SELECT statement and returns the rows.
	SQL(ctx context.Context, query string) ([]Record, error)
}

// Client is the entry point to the Dataverse Web API.
type Client interface {
	Records() RecordsClient
	Tables() TablesClient
	Query() QueryClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// RetryConfig tunes the retry policy applied to transient failures.
type RetryConfig struct {
	// MaxAttempts counts the first try plus retries. Zero uses the default (5).
	MaxAttempts int

	// BaseDelay seeds exponential backoff. Zero uses the default (500ms).
	BaseDelay time.Duration

	// MaxBackoff caps a computed delay. Zero uses the default (60s).
	MaxBackoff time.Duration

	// DisableJitter turns off randomization of computed delays. Intended
	// for tests.
	DisableJitter bool

	// DisableTransientRetry turns off retrying altogether; transient
	// failures surface on the first attempt.
	DisableTransientRetry bool
}

// Config represents client configuration for building a dataverse.Client.
//
// # Authentication precedence
//
//  1. AccessToken: if set, it is used directly as a static Bearer token.
//  2. TenantID/ClientID/ClientSecret: uses the OAuth2 client_credentials
//     grant against Microsoft Entra ID, refreshing shortly before expiry.
//  3. No credentials: construction fails.
//
// # Timeouts
//
// Each request attempt is bounded by a per-method timeout: reads use
// ReadTimeout (default 10s), mutations use WriteTimeout (default 120s).
// Contexts passed to client methods bound the whole call including retries.
type Config struct {
	// BaseURL is the organization URL, e.g. "https://org.crm.dynamics.com".
	BaseURL string

	// Authentication options (provide one)
	// TenantID: Entra ID tenant for the client_credentials grant.
	TenantID string
	// ClientID: application (client) id for the client_credentials grant.
	ClientID string
	// ClientSecret: client secret used with ClientID.
	ClientSecret string
	// AccessToken: if set, used directly as a Bearer token.
	AccessToken string
	// TokenURL: full OAuth2 token endpoint. If empty it is derived from
	// TenantID using the public Entra ID login endpoint.
	TokenURL string

	// Optional configurations
	// ReadTimeout bounds one attempt of a read request.
	ReadTimeout time.Duration
	// WriteTimeout bounds one attempt of a mutating request.
	WriteTimeout time.Duration
	// Retry tunes backoff for transient failures. Nil uses defaults.
	Retry *RetryConfig
	// PageSize is the server page size requested on list queries.
	PageSize int
	// Cache configures the table metadata cache. Nil uses an in-memory cache.
	Cache *CacheConfig
	// SQLAPIName overrides the custom API used for SQL passthrough.
	SQLAPIName string
	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer.
	Logger Logger
	// UserAgent: overrides the default User-Agent header sent by the client.
	UserAgent string
}

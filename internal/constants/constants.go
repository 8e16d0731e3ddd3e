package constants

import "time"

// Web API surface.
const (
	// APIPath is the Dataverse Web API base path.
	APIPath = "/api/data/v9.2"

	// ODataVersion is sent in the OData-Version and OData-MaxVersion headers.
	ODataVersion = "4.0"

	// ContentTypeJSON is the content type for request and response bodies.
	ContentTypeJSON = "application/json"

	// TypeTokenPrefix prefixes the logical name in "@odata.type" annotations.
	TypeTokenPrefix = "Microsoft.Dynamics.CRM."

	// EntityDefinitionsPath is the metadata collection for table definitions.
	EntityDefinitionsPath = "/EntityDefinitions"

	// DefaultSQLAPIName is the custom API used for SQL passthrough queries.
	// Environments expose this under their own publisher prefix, so it is
	// configurable per client.
	DefaultSQLAPIName = "ExecuteSQLQuery"
)

// Header names.
const (
	HeaderODataVersion     = "OData-Version"
	HeaderODataMaxVersion  = "OData-MaxVersion"
	HeaderAuthorization    = "Authorization"
	HeaderPrefer           = "Prefer"
	HeaderIfMatch          = "If-Match"
	HeaderEntityID         = "OData-EntityId"
	HeaderRetryAfter       = "Retry-After"
	HeaderServiceRequestID = "x-ms-service-request-id"
	HeaderClientRequestID  = "x-ms-client-request-id"
)

// Prefer header values.
const (
	// PreferReturnRepresentation asks writes to echo the stored record back.
	PreferReturnRepresentation = "return=representation"

	// PreferMaxPageSizeFormat is the Prefer value template for server paging.
	PreferMaxPageSizeFormat = "odata.maxpagesize=%d"
)

// Bound and unbound action names.
const (
	// ActionCreateMultiple is the bound bulk-create action.
	ActionCreateMultiple = "Microsoft.Dynamics.CRM.CreateMultiple"

	// ActionUpdateMultiple is the bound bulk-update action.
	ActionUpdateMultiple = "Microsoft.Dynamics.CRM.UpdateMultiple"

	// ActionBulkDelete is the unbound background-delete action.
	ActionBulkDelete = "BulkDelete"
)

// HTTP timeouts. Reads are interactive, writes cover bulk payloads.
const (
	// ReadTimeout bounds a single attempt of a read request.
	ReadTimeout = 10 * time.Second

	// WriteTimeout bounds a single attempt of a mutating request.
	WriteTimeout = 120 * time.Second
)

// Retry defaults.
const (
	// DefaultMaxAttempts counts the first try plus retries.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay seeds exponential backoff.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxBackoff caps a computed backoff delay.
	DefaultMaxBackoff = 60 * time.Second

	// BackoffBase is the exponential backoff multiplier.
	BackoffBase = 2

	// JitterMin is the lower bound of the jitter factor applied to delays.
	JitterMin = 0.5
)

// Paging defaults.
const (
	// DefaultPageSize is requested via odata.maxpagesize when none is set.
	DefaultPageSize = 5000
)

// Cache defaults.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default time-to-live for metadata entries.
	DefaultCacheTTL = 12 * time.Hour
)

// Auth defaults.
const (
	// DefaultScopeSuffix is appended to the org URL for the OAuth2 scope.
	DefaultScopeSuffix = "/.default"
)

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// Output formats.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)

// Formatting constants.
const (
	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// StringTruncationLength is the default length for truncating strings.
	StringTruncationLength = 80
)

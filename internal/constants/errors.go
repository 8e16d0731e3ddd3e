package constants

import "errors"

// Configuration errors.
var (
	ErrNoOrgConfigured   = errors.New("no organization URL configured, use 'dataverse config set url <url>' or DATAVERSE_URL")
	ErrNoCredentials     = errors.New("no credentials configured, provide a token or client id and secret")
	ErrConfigNotFound    = errors.New("configuration file not found")
	ErrInvalidOutputType = errors.New("invalid output format, expected table, json, or yaml")
)

// Validation errors.
var (
	ErrTableNameRequired  = errors.New("table name is required")
	ErrRecordIDRequired   = errors.New("record id is required")
	ErrPayloadRequired    = errors.New("record payload is required")
	ErrQueryTextRequired  = errors.New("query text is required")
	ErrInvalidRecordJSON  = errors.New("record payload is not valid JSON")
	ErrInvalidColumnsList = errors.New("columns must be a comma-separated list")
)

// Package client implements the dataverse.Client interface: construction,
// authentication wiring, and the records, tables, and query operation
// clients.
package client

import (
	"errors"
	"fmt"

	"github.com/powerplatform-go/dataverse/internal/auth"
	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/internal/http"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// Static errors for err113 compliance.
var (
	ErrBaseURLRequired = errors.New("organization base URL is required")
	ErrNoCredentials   = errors.New("no credentials configured")
)

// Client implements the dataverse.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       dataverse.Logger

	records *RecordsClient
	tables  *TablesClient
	query   *QueryClient
}

// New creates a new Dataverse client from configuration.
func New(config *dataverse.Config) (*Client, error) {
	if config == nil {
		return nil, dataverse.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	tokenManager, err := createTokenManager(config)
	if err != nil {
		return nil, err
	}

	cache, err := dataverse.NewCacheFromConfig(config.Cache)
	if err != nil {
		return nil, fmt.Errorf("building metadata cache: %w", err)
	}

	httpClient := http.NewClient(config.BaseURL, tokenManager, createHTTPClientOptions(config)...)

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      config.BaseURL,
		logger:       config.Logger,
	}

	sqlAPIName := config.SQLAPIName
	if sqlAPIName == "" {
		sqlAPIName = constants.DefaultSQLAPIName
	}

	client.tables = NewTablesClient(httpClient, cache)
	client.records = NewRecordsClient(httpClient, client.tables, config.PageSize, config.Logger)
	client.query = NewQueryClient(httpClient, sqlAPIName)

	return client, nil
}

// createTokenManager creates the token manager for the configured
// credentials. A static token wins over client credentials.
func createTokenManager(config *dataverse.Config) (auth.TokenManager, error) {
	if config.AccessToken != "" {
		return auth.NewStaticTokenManager(config.AccessToken), nil
	}

	if config.ClientID != "" && config.ClientSecret != "" {
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     config.TokenURL,
			TenantID:     config.TenantID,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scope:        config.BaseURL + constants.DefaultScopeSuffix,
		}), nil
	}

	return nil, ErrNoCredentials
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *dataverse.Config) []http.Option {
	httpOpts := []http.Option{
		http.WithRetryPolicy(http.FromConfig(config.Retry)),
	}

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.ReadTimeout > 0 || config.WriteTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeouts(config.ReadTimeout, config.WriteTimeout))
	}

	return httpOpts
}

// Records implements dataverse.Client.Records.
func (c *Client) Records() dataverse.RecordsClient {
	return c.records
}

// Tables implements dataverse.Client.Tables.
func (c *Client) Tables() dataverse.TablesClient {
	return c.tables
}

// Query implements dataverse.Client.Query.
func (c *Client) Query() dataverse.QueryClient {
	return c.query
}

// HTTPClient exposes the transport for advanced callers.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

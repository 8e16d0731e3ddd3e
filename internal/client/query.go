package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/powerplatform-go/dataverse/internal/http"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// QueryClient implements dataverse.QueryClient using the SQL passthrough
// custom API. The endpoint takes a T-SQL SELECT statement and returns the
// result set as a JSON string.
type QueryClient struct {
	httpClient *http.Client
	apiName    string
}

// NewQueryClient creates a new query client. apiName is the name of the
// custom API exposing SQL passthrough in the target environment.
func NewQueryClient(httpClient *http.Client, apiName string) *QueryClient {
	return &QueryClient{
		httpClient: httpClient,
		apiName:    apiName,
	}
}

// SQL implements dataverse.QueryClient.SQL.
func (c *QueryClient) SQL(ctx context.Context, query string) ([]dataverse.Record, error) {
	if c.apiName == "" {
		return nil, dataverse.ErrSQLDisabled
	}

	resp, err := c.httpClient.Post(ctx, "/"+c.apiName, map[string]string{"querytext": query})
	if err != nil {
		return nil, fmt.Errorf("executing SQL query: %w", err)
	}

	var envelope struct {
		QueryResult *string `json:"queryresult"`
	}

	err = json.Unmarshal(resp.Body, &envelope)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL response: %w", err)
	}

	// A null or empty result means zero rows, not an error.
	if envelope.QueryResult == nil || *envelope.QueryResult == "" {
		return []dataverse.Record{}, nil
	}

	var rows []dataverse.Record

	err = json.Unmarshal([]byte(*envelope.QueryResult), &rows)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL result rows: %w", err)
	}

	return rows, nil
}

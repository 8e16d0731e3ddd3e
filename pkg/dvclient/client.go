// Package dvclient provides the main entry point for creating Dataverse Web API clients
package dvclient

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/powerplatform-go/dataverse/internal/client"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// New creates a new Dataverse client for the given organization.
func New(config *dataverse.Config) (dataverse.Client, error) {
	if config == nil {
		return nil, dataverse.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, dataverse.ErrBaseURLRequired
	}

	baseURL, err := normalizeBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	config.BaseURL = baseURL

	dataverseClient, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return dataverseClient, nil
}

// normalizeBaseURL turns an organization host or URL into the canonical
// https form without a trailing slash. The OAuth2 scope is derived from this
// value, so it must match the resource exactly.
func normalizeBaseURL(raw string) (string, error) {
	baseURL := strings.TrimSuffix(raw, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing organization URL: %w", err)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("%w: %s", dataverse.ErrNoHostInURL, raw)
	}

	return baseURL, nil
}

// NewWithToken creates a new client with an organization URL and a
// pre-acquired access token.
func NewWithToken(orgURL, token string) (dataverse.Client, error) {
	return New(&dataverse.Config{
		BaseURL:     orgURL,
		AccessToken: token,
	})
}

// NewWithClientCredentials creates a new client using an Entra ID app
// registration with the client credentials grant.
func NewWithClientCredentials(orgURL, tenantID, clientID, clientSecret string) (dataverse.Client, error) {
	return New(&dataverse.Config{
		BaseURL:      orgURL,
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

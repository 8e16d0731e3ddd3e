package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrTokenURLRequired  = errors.New("token URL is required")
	ErrClientIDRequired  = errors.New("client ID and secret are required")
	ErrTokenRequestError = errors.New("token request failed")
)

// DefaultLoginEndpoint is the public Entra ID authority.
const DefaultLoginEndpoint = "https://login.microsoftonline.com"

// OAuth2Config configures the client_credentials token manager.
type OAuth2Config struct {
	// TokenURL is the full token endpoint. If empty it is derived from TenantID.
	TokenURL string

	// TenantID is the Entra ID tenant, used when TokenURL is empty.
	TenantID string

	// ClientID is the application (client) id.
	ClientID string

	// ClientSecret is the client secret.
	ClientSecret string

	// Scope is the requested scope, e.g. "https://org.crm.dynamics.com/.default".
	Scope string

	// HTTPClient overrides the client used for token requests.
	HTTPClient *http.Client
}

// TokenEndpoint returns the configured or derived token URL.
func (c *OAuth2Config) TokenEndpoint() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}

	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", DefaultLoginEndpoint, c.TenantID)
}

// OAuth2TokenManager obtains tokens via the OAuth2 client_credentials grant
// and refreshes them shortly before expiry. Safe for concurrent use.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      *TokenStore
	httpClient *http.Client
	mu         sync.Mutex
}

// NewOAuth2TokenManager creates a token manager for the given config.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &OAuth2TokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: httpClient,
	}
}

// GetToken returns a valid access token, requesting a fresh one if the
// cached token is missing or near expiry.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.RefreshToken(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken requests a new token from the token endpoint.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if m.store.Get().Valid() {
		return nil
	}

	if m.config.ClientID == "" || m.config.ClientSecret == "" {
		return ErrClientIDRequired
	}

	endpoint := m.config.TokenEndpoint()
	if endpoint == "" {
		return ErrTokenURLRequired
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.config.ClientID)
	form.Set("client_secret", m.config.ClientSecret)
	form.Set("scope", m.config.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrTokenRequestError, resp.StatusCode, string(body))
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	m.store.Set(&token)

	return nil
}

// SetToken installs a token directly, e.g. from a previous session.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}

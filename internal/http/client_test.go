package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	dvhttp "github.com/powerplatform-go/dataverse/internal/http"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Static errors for err113 compliance.
var errSecretExpired = errors.New("client secret expired")

// MockTokenProvider for testing.
type MockTokenProvider struct {
	token string
	err   error
}

func (m *MockTokenProvider) GetToken(ctx context.Context) (string, error) {
	return m.token, m.err
}

// sequenceTokenProvider returns a different token per call.
type sequenceTokenProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *sequenceTokenProvider) GetToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	return fmt.Sprintf("token-%d", p.calls), nil
}

// MockLogger for testing.
type MockLogger struct {
	logs []map[string]interface{}
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "debug", "msg": msg, "fields": fields})
}

func (l *MockLogger) Info(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "info", "msg": msg, "fields": fields})
}

func (l *MockLogger) Warn(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "warn", "msg": msg, "fields": fields})
}

func (l *MockLogger) Error(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "error", "msg": msg, "fields": fields})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Do(t *testing.T) {
	t.Parallel()
	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/api/data/v9.2/accounts", request.URL.Path)
			assert.Equal(t, "GET", request.Method)
			assert.Equal(t, "Bearer test-token", request.Header.Get("Authorization"))
			assert.Equal(t, "application/json", request.Header.Get("Accept"))
			assert.Equal(t, "4.0", request.Header.Get("OData-Version"))
			assert.Equal(t, "4.0", request.Header.Get("OData-MaxVersion"))
			assert.NotEmpty(t, request.Header.Get("x-ms-client-request-id"))

			response := map[string]string{"accountid": "11111111-0000-0000-0000-000000000001", "name": "Contoso"}
			_ = json.NewEncoder(writer).Encode(response)
		}))
		defer server.Close()

		tokens := &MockTokenProvider{token: "test-token"}
		client := dvhttp.NewClient(server.URL, tokens)

		req := &dvhttp.Request{
			Method: "GET",
			Path:   "/accounts",
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var result map[string]string

		err = json.Unmarshal(resp.Body, &result)
		require.NoError(t, err)
		assert.Equal(t, "Contoso", result["name"])
	})

	t.Run("request with query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/api/data/v9.2/accounts", request.URL.Path)
			assert.Equal(t, "name eq 'Contoso'", request.URL.Query().Get("$filter"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil)

		req := &dvhttp.Request{
			Method: "GET",
			Path:   "/accounts",
			Query:  url.Values{"$filter": []string{"name eq 'Contoso'"}},
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("absolute continuation URL bypasses the API base", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/api/data/v9.2/accounts", request.URL.Path)
			assert.Equal(t, "abc", request.URL.Query().Get("$skiptoken"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil)

		req := &dvhttp.Request{
			Method: "GET",
			Path:   server.URL + "/api/data/v9.2/accounts?$skiptoken=abc",
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("request with body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "POST", request.Method)
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

			var body map[string]string

			_ = json.NewDecoder(request.Body).Decode(&body)
			assert.Equal(t, "Contoso", body["name"])

			writer.Header().Set("OData-EntityId", "https://org.example.com/api/data/v9.2/accounts(11111111-0000-0000-0000-000000000001)")
			writer.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil)

		req := &dvhttp.Request{
			Method: "POST",
			Path:   "/accounts",
			Body:   map[string]string{"name": "Contoso"},
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode)
		assert.Equal(t, "11111111-0000-0000-0000-000000000001", resp.EntityID())
	})

	t.Run("error response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("x-ms-service-request-id", "corr-123")
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"error":{"code":"0x80040217","message":"account With Id = x Does Not Exist"}}`))
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil)

		req := &dvhttp.Request{
			Method: "GET",
			Path:   "/accounts(missing)",
		}

		resp, err := client.Do(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, 404, resp.StatusCode)

		dvErr := &dataverse.Error{}
		require.ErrorAs(t, err, &dvErr)
		assert.Equal(t, 404, dvErr.StatusCode)
		assert.Equal(t, "0x80040217", dvErr.Code)
		assert.Equal(t, dataverse.SubcodeNotFound, dvErr.Subcode)
		assert.Equal(t, "corr-123", dvErr.CorrelationID)
		assert.False(t, dvErr.Transient)
		assert.True(t, dataverse.IsNotFound(err))
	})

	t.Run("token failure aborts before sending", func(t *testing.T) {
		t.Parallel()

		requests := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requests++
		}))
		defer server.Close()

		tokens := &MockTokenProvider{err: errSecretExpired}
		client := dvhttp.NewClient(server.URL, tokens)

		_, err := client.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)
		require.ErrorIs(t, err, errSecretExpired)
		assert.Contains(t, err.Error(), "acquiring access token")
		assert.Equal(t, 0, requests)
	})

	t.Run("custom headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "return=representation", request.Header.Get("Prefer"))
			assert.Equal(t, "*", request.Header.Get("If-Match"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil)

		req := &dvhttp.Request{
			Method: "PATCH",
			Path:   "/accounts(guid)",
			Body:   map[string]string{"name": "Updated"},
			Headers: map[string]string{
				"Prefer":   "return=representation",
				"If-Match": "*",
			},
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("with debug logging", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(writer).Encode(map[string]string{"result": "ok"})
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithLogger(logger), dvhttp.WithDebug(true))

		req := &dvhttp.Request{
			Method: "GET",
			Path:   "/WhoAmI",
		}

		_, err := client.Do(context.Background(), req)
		require.NoError(t, err)

		// Should have logged request and response
		assert.Len(t, logger.logs, 2)
		assert.Equal(t, "HTTP Request", logger.logs[0]["msg"])
		assert.Equal(t, "HTTP Response", logger.logs[1]["msg"])
	})
}

func TestClient_Methods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		fn     func(*dvhttp.Client, context.Context) (*dvhttp.Response, error)
	}{
		{
			name:   "GET",
			method: "GET",
			fn: func(c *dvhttp.Client, ctx context.Context) (*dvhttp.Response, error) {
				return c.Get(ctx, "/accounts", nil)
			},
		},
		{
			name:   "POST",
			method: "POST",
			fn: func(c *dvhttp.Client, ctx context.Context) (*dvhttp.Response, error) {
				return c.Post(ctx, "/accounts", map[string]string{"name": "Contoso"})
			},
		},
		{
			name:   "PATCH",
			method: "PATCH",
			fn: func(c *dvhttp.Client, ctx context.Context) (*dvhttp.Response, error) {
				return c.Patch(ctx, "/accounts", map[string]string{"name": "Contoso"})
			},
		},
		{
			name:   "DELETE",
			method: "DELETE",
			fn: func(c *dvhttp.Client, ctx context.Context) (*dvhttp.Response, error) {
				return c.Delete(ctx, "/accounts")
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, testCase.method, request.Method)
				assert.Equal(t, "/api/data/v9.2/accounts", request.URL.Path)
				writer.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			client := dvhttp.NewClient(server.URL, nil)
			resp, err := testCase.fn(client, context.Background())
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_RetryBehavior(t *testing.T) {
	t.Parallel()
	t.Run("retries on 503", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts++
			if attempts < 3 {
				writer.WriteHeader(http.StatusServiceUnavailable)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(5)))

		resp, err := client.Get(context.Background(), "/accounts", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 3, attempts)
	})

	t.Run("retries on rate limiting and honors Retry-After", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts++
			if attempts < 2 {
				writer.Header().Set("Retry-After", "0")
				writer.WriteHeader(http.StatusTooManyRequests)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(3)))

		resp, err := client.Get(context.Background(), "/accounts", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 2, attempts)
	})

	t.Run("does not retry on client errors", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts++

			writer.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(3)))

		resp, err := client.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, 1, attempts) // Should not retry
	})

	t.Run("does not retry on 500", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts++

			writer.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(3)))

		resp, err := client.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)
		assert.Equal(t, 500, resp.StatusCode)
		assert.Equal(t, 1, attempts)

		dvErr := &dataverse.Error{}
		require.ErrorAs(t, err, &dvErr)
		assert.False(t, dvErr.Transient)
	})

	t.Run("terminal 429 surfaces after budget is spent", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts++

			writer.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(3)))

		resp, err := client.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)
		assert.Equal(t, 429, resp.StatusCode)
		assert.Equal(t, 3, attempts)
		assert.True(t, dataverse.IsRateLimited(err))
		assert.True(t, dataverse.IsTransient(err))
	})

	t.Run("404 is retried only under metadata retry", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts++
			if attempts < 2 {
				writer.WriteHeader(http.StatusNotFound)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(3)))

		ctx := dvhttp.WithMetadataRetry(context.Background())
		resp, err := client.Get(ctx, "/EntityDefinitions", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 2, attempts)

		// Without the flag the first 404 is terminal.
		attempts = 0
		resp, err = client.Get(context.Background(), "/EntityDefinitions", nil)
		require.Error(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, 1, attempts)
	})

	t.Run("each attempt carries a fresh token", func(t *testing.T) {
		t.Parallel()

		var (
			mu   sync.Mutex
			seen []string
		)

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			mu.Lock()
			seen = append(seen, request.Header.Get("Authorization"))
			attempt := len(seen)
			mu.Unlock()

			if attempt < 2 {
				writer.WriteHeader(http.StatusServiceUnavailable)

				return
			}

			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, &sequenceTokenProvider{}, dvhttp.WithRetryPolicy(testPolicy(3)))

		resp, err := client.Get(context.Background(), "/accounts", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, []string{"Bearer token-1", "Bearer token-2"}, seen)
	})

	t.Run("transient retry disabled surfaces the first failure", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts++

			writer.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := dvhttp.NewClient(server.URL, nil,
			dvhttp.WithRetryPolicy(testPolicy(3)), dvhttp.WithTransientRetry(false))

		resp, err := client.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context is not transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			<-request.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(2)))

		_, err := client.Get(ctx, "/accounts", nil)
		require.Error(t, err)

		dvErr := &dataverse.Error{}
		require.ErrorAs(t, err, &dvErr)
		assert.Equal(t, dataverse.SubcodeCancelled, dvErr.Subcode)
		assert.False(t, dvErr.Transient)
		assert.False(t, dataverse.IsTransient(err))
	})

	t.Run("transport failure is transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {}))
		server.Close() // Refuse connections

		client := dvhttp.NewClient(server.URL, nil, dvhttp.WithRetryPolicy(testPolicy(2)))

		_, err := client.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)

		dvErr := &dataverse.Error{}
		require.ErrorAs(t, err, &dvErr)
		assert.Equal(t, dataverse.SubcodeNetwork, dvErr.Subcode)
		assert.True(t, dvErr.Transient)
	})
}

func testPolicy(maxAttempts int) *dvhttp.RetryPolicy {
	return &dvhttp.RetryPolicy{
		MaxAttempts:   maxAttempts,
		BaseDelay:     1 * time.Millisecond,
		MaxBackoff:    10 * time.Millisecond,
		DisableJitter: true,
	}
}

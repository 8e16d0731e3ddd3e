// Package http implements the resilient transport for the Dataverse Web API:
// request construction, authentication headers, retry with capped jittered
// backoff, and classification of failures into dataverse.Error values.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// Request represents an API request.
type Request struct {
	Method  string
	Path    string // joined to the API base, or a full continuation URL
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Response represents an API response with the body already drained.
type Response struct {
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
}

// EntityID returns the GUID from the OData-EntityId header of a create
// response, or the empty string.
func (r *Response) EntityID() string {
	value := r.Headers.Get(constants.HeaderEntityID)
	if value == "" {
		return ""
	}

	// Header form: https://org.crm.dynamics.com/api/data/v9.2/accounts(<guid>)
	start := strings.LastIndex(value, "(")
	end := strings.LastIndex(value, ")")

	if start == -1 || end == -1 || end < start {
		return ""
	}

	return value[start+1 : end]
}

// TokenProvider supplies Bearer tokens for outgoing requests.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// tokenError marks a token acquisition failure so it survives the
// retryablehttp error wrapping intact.
type tokenError struct {
	err error
}

func (e *tokenError) Error() string {
	return "acquiring access token: " + e.err.Error()
}

func (e *tokenError) Unwrap() error {
	return e.err
}

// Logger interface for the transport layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Client executes requests against one Dataverse environment. Reads and
// writes run on separate underlying clients so each gets its own per-attempt
// timeout.
type Client struct {
	baseURL     string
	apiBase     string
	tokens      TokenProvider
	readClient  *retryablehttp.Client
	writeClient *retryablehttp.Client
	policy      *RetryPolicy
	logger      Logger
	debug       bool
	userAgent   string
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithTransientRetry toggles retrying of transient failures. On by default.
func WithTransientRetry(enabled bool) Option {
	return func(c *Client) {
		c.policy.DisableTransientRetry = !enabled
	}
}

// WithTimeouts overrides the per-attempt read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *Client) {
		if read > 0 {
			c.readClient.HTTPClient.Timeout = read
		}

		if write > 0 {
			c.writeClient.HTTPClient.Timeout = write
		}
	}
}

// NewClient creates a client for the given organization base URL.
func NewClient(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	client := &Client{
		baseURL:     baseURL,
		apiBase:     baseURL + constants.APIPath,
		tokens:      tokens,
		policy:      DefaultRetryPolicy(),
		userAgent:   "dataverse-go-client/1.0",
		readClient:  newRetryableClient(constants.ReadTimeout),
		writeClient: newRetryableClient(constants.WriteTimeout),
	}

	for _, opt := range opts {
		opt(client)
	}

	for _, rc := range []*retryablehttp.Client{client.readClient, client.writeClient} {
		rc.RetryMax = client.policy.MaxAttempts - 1
		rc.RetryWaitMin = client.policy.BaseDelay
		rc.RetryWaitMax = client.policy.MaxBackoff
		rc.CheckRetry = client.policy.CheckRetry
		rc.Backoff = client.policy.Backoff
		// Tokens can expire between attempts, so every retry gets a fresh one.
		rc.PrepareRetry = client.prepareRetry
	}

	return client
}

func newRetryableClient(timeout time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &nethttp.Client{Timeout: timeout}
	rc.Logger = nil
	// Keep the final response instead of swallowing it, so terminal 429s
	// still surface their status, headers, and body.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return rc
}

// BaseURL returns the organization base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes a request with authentication, retries, and error
// classification applied. On non-2xx responses both the drained Response and
// a *dataverse.Error are returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	fullURL, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	c.setHeaders(httpReq, req, len(body) > 0, requestID)

	if err := c.authorize(ctx, httpReq.Header); err != nil {
		return nil, err
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":     req.Method,
			"url":        fullURL,
			"request_id": requestID,
		})
	}

	resp, err := c.clientFor(req.Method).Do(httpReq)
	if err != nil {
		var tokenErr *tokenError
		if errors.As(err, &tokenErr) {
			return nil, tokenErr
		}

		return nil, classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &dataverse.Error{
			Subcode:   dataverse.SubcodeDecode,
			Message:   fmt.Sprintf("reading response body: %v", err),
			Transient: true,
		}
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":     resp.StatusCode,
			"url":        fullURL,
			"request_id": requestID,
		})
	}

	if resp.StatusCode >= nethttp.StatusBadRequest {
		correlationID := resp.Header.Get(constants.HeaderServiceRequestID)
		retryAfter := ParseRetryAfter(resp.Header.Get(constants.HeaderRetryAfter))

		return response, dataverse.NewHTTPError(resp.StatusCode, respBody, correlationID, retryAfter)
	}

	return response, nil
}

// buildURL joins the request path onto the API base. Continuation URLs from
// @odata.nextLink are already absolute and pass through untouched.
func (c *Client) buildURL(req *Request) (string, error) {
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		return req.Path, nil
	}

	full := c.apiBase + req.Path

	parsed, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("parsing URL %q: %w", full, err)
	}

	if len(req.Query) > 0 {
		query := parsed.Query()
		for key, values := range req.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}

		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func (c *Client) setHeaders(httpReq *retryablehttp.Request, req *Request, hasBody bool, requestID string) {
	httpReq.Header.Set(constants.HeaderODataVersion, constants.ODataVersion)
	httpReq.Header.Set(constants.HeaderODataMaxVersion, constants.ODataVersion)
	httpReq.Header.Set("Accept", constants.ContentTypeJSON)
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(constants.HeaderClientRequestID, requestID)

	if hasBody {
		httpReq.Header.Set("Content-Type", constants.ContentTypeJSON)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
}

// authorize stamps a fresh Bearer token onto the request headers. Token
// acquisition failures abort the call rather than going out unauthenticated.
func (c *Client) authorize(ctx context.Context, header nethttp.Header) error {
	if c.tokens == nil {
		return nil
	}

	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return &tokenError{err: err}
	}

	if token != "" {
		header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}

	return nil
}

func (c *Client) prepareRetry(req *nethttp.Request) error {
	return c.authorize(req.Context(), req.Header)
}

// clientFor picks the read or write client by method so each attempt gets
// the right timeout.
func (c *Client) clientFor(method string) *retryablehttp.Client {
	if method == nethttp.MethodGet || method == nethttp.MethodHead {
		return c.readClient
	}

	return c.writeClient
}

// classifyTransportError wraps connection-level failures, which retryablehttp
// surfaces only after the attempt budget is spent. Deliberate cancellation is
// not transient; repeating an aborted call is never the right response.
func classifyTransportError(ctx context.Context, err error) *dataverse.Error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return &dataverse.Error{
			Subcode:   dataverse.SubcodeCancelled,
			Message:   err.Error(),
			Transient: false,
		}
	}

	subcode := dataverse.SubcodeNetwork
	if ctx.Err() != nil {
		subcode = dataverse.SubcodeTimeout
	}

	return &dataverse.Error{
		Subcode:   subcode,
		Message:   err.Error(),
		Transient: true,
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPost, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodDelete, Path: path})
}

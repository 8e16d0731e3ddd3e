package dataverse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Subcodes classify request failures beyond the raw HTTP status. They are
// stable strings suitable for logging and for programmatic handling.
const (
	SubcodeBadRequest         = "http_400"
	SubcodeUnauthorized       = "http_401"
	SubcodeForbidden          = "http_403"
	SubcodeNotFound           = "http_404"
	SubcodeMethodNotAllowed   = "http_405"
	SubcodeConflict           = "http_409"
	SubcodePreconditionFailed = "http_412"
	SubcodePayloadTooLarge    = "http_413"
	SubcodeTooManyRequests    = "http_429"
	SubcodeServerError        = "http_500"
	SubcodeNotImplemented     = "http_501"
	SubcodeBadGateway         = "http_502"
	SubcodeUnavailable        = "http_503"
	SubcodeGatewayTimeout     = "http_504"

	SubcodeNetwork        = "network"
	SubcodeTimeout        = "timeout"
	SubcodeCancelled      = "cancelled"
	SubcodeDecode         = "response_decode"
	SubcodeTableNotFound  = "metadata_table_not_found"
	SubcodeEntitySetEmpty = "metadata_entityset_not_found"
)

// Error represents a failed Dataverse Web API request.
type Error struct {
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int `json:"status_code"    yaml:"status_code"`

	// Code is the service error code from the OData error body, when present.
	Code string `json:"code,omitempty" yaml:"code,omitempty"`

	// Subcode classifies the failure (see the Subcode constants).
	Subcode string `json:"subcode"        yaml:"subcode"`

	// Message is the human-readable description.
	Message string `json:"message"        yaml:"message"`

	// CorrelationID is the service request id returned by the server, useful
	// when raising support tickets.
	CorrelationID string `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`

	// RetryAfter is the server-provided wait hint, if any.
	RetryAfter *time.Duration `json:"-" yaml:"-"`

	// Transient reports whether retrying the identical request may succeed.
	Transient bool `json:"transient" yaml:"transient"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("dataverse: %s (status %d, subcode %s)", e.Message, e.StatusCode, e.Subcode)
	}

	return fmt.Sprintf("dataverse: %s (subcode %s)", e.Message, e.Subcode)
}

// odataErrorBody mirrors the OData v4 error envelope.
type odataErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// transientStatuses are the only HTTP statuses worth retrying. A plain 500 is
// excluded: Dataverse surfaces deterministic plugin and validation failures
// as 500 and retrying them burns the attempt budget for nothing.
var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// IsTransientStatus reports whether the HTTP status is considered retryable.
func IsTransientStatus(status int) bool {
	return transientStatuses[status]
}

// SubcodeForStatus maps an HTTP status to its classification subcode.
func SubcodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return SubcodeBadRequest
	case http.StatusUnauthorized:
		return SubcodeUnauthorized
	case http.StatusForbidden:
		return SubcodeForbidden
	case http.StatusNotFound:
		return SubcodeNotFound
	case http.StatusMethodNotAllowed:
		return SubcodeMethodNotAllowed
	case http.StatusConflict:
		return SubcodeConflict
	case http.StatusPreconditionFailed:
		return SubcodePreconditionFailed
	case http.StatusRequestEntityTooLarge:
		return SubcodePayloadTooLarge
	case http.StatusTooManyRequests:
		return SubcodeTooManyRequests
	case http.StatusInternalServerError:
		return SubcodeServerError
	case http.StatusNotImplemented:
		return SubcodeNotImplemented
	case http.StatusBadGateway:
		return SubcodeBadGateway
	case http.StatusServiceUnavailable:
		return SubcodeUnavailable
	case http.StatusGatewayTimeout:
		return SubcodeGatewayTimeout
	default:
		return fmt.Sprintf("http_%d", status)
	}
}

// NewHTTPError builds an Error from a non-2xx response. The body is parsed as
// an OData error envelope when possible; otherwise the raw text becomes the
// message.
func NewHTTPError(status int, body []byte, correlationID string, retryAfter *time.Duration) *Error {
	message := http.StatusText(status)

	var envelope odataErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	} else if len(body) > 0 {
		message = string(body)
	}

	return &Error{
		StatusCode:    status,
		Code:          envelope.Error.Code,
		Subcode:       SubcodeForStatus(status),
		Message:       message,
		CorrelationID: correlationID,
		RetryAfter:    retryAfter,
		Transient:     IsTransientStatus(status),
	}
}

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrBaseURLRequired      = errors.New("organization base URL is required")
	ErrNoHostInURL          = errors.New("no host specified in URL")
	ErrTableNameRequired    = errors.New("table name is required")
	ErrRecordIDRequired     = errors.New("record id is required")
	ErrNoMoreRows           = errors.New("no more rows")
	ErrUpdateShapeMismatch  = errors.New("updates must contain one change set or one per record id")
	ErrEmptyRecordSet       = errors.New("record set is empty")
	ErrTableNotFound        = errors.New("table not found")
	ErrMissingEntitySetName = errors.New("table metadata has no entity set name")
	ErrMissingEntityID      = errors.New("response has no OData-EntityId header")
	ErrSQLDisabled          = errors.New("SQL passthrough is not enabled for this environment")
)

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	dvErr := &Error{}
	if errors.As(err, &dvErr) {
		return dvErr.StatusCode == http.StatusNotFound
	}

	return errors.Is(err, ErrTableNotFound)
}

// IsTransient checks if the error is worth retrying.
func IsTransient(err error) bool {
	dvErr := &Error{}
	if errors.As(err, &dvErr) {
		return dvErr.Transient
	}

	return false
}

// IsRateLimited checks if the error is a 429 throttling response.
func IsRateLimited(err error) bool {
	dvErr := &Error{}
	if errors.As(err, &dvErr) {
		return dvErr.StatusCode == http.StatusTooManyRequests
	}

	return false
}

// IsUnauthorized checks if the error is an authentication failure.
func IsUnauthorized(err error) bool {
	dvErr := &Error{}
	if errors.As(err, &dvErr) {
		return dvErr.StatusCode == http.StatusUnauthorized
	}

	return false
}

// IsForbidden checks if the error is an authorization failure.
func IsForbidden(err error) bool {
	dvErr := &Error{}
	if errors.As(err, &dvErr) {
		return dvErr.StatusCode == http.StatusForbidden
	}

	return false
}

package http

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// metadataRetryKey marks a request context so that 404 responses are treated
// as transient. Used for metadata lookups racing freshly created tables.
type metadataRetryKey struct{}

// WithMetadataRetry returns a context under which 404 responses are retried
// within the normal attempt budget.
func WithMetadataRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, metadataRetryKey{}, true)
}

func metadataRetryEnabled(ctx context.Context) bool {
	enabled, ok := ctx.Value(metadataRetryKey{}).(bool)

	return ok && enabled
}

// RetryPolicy decides which failures are retried and how long to wait
// between attempts.
type RetryPolicy struct {
	// MaxAttempts counts the first try plus retries.
	MaxAttempts int

	// BaseDelay seeds exponential backoff.
	BaseDelay time.Duration

	// MaxBackoff caps a computed delay before jitter.
	MaxBackoff time.Duration

	// DisableJitter makes delays deterministic, for tests.
	DisableJitter bool

	// DisableTransientRetry turns retrying off entirely; every failure is
	// terminal on the first attempt.
	DisableTransientRetry bool
}

// DefaultRetryPolicy returns the standard policy: 5 attempts, 500ms base,
// 60s cap, jitter on.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: constants.DefaultMaxAttempts,
		BaseDelay:   constants.DefaultBaseDelay,
		MaxBackoff:  constants.DefaultMaxBackoff,
	}
}

// FromConfig builds a policy from user configuration, filling defaults.
func FromConfig(config *dataverse.RetryConfig) *RetryPolicy {
	policy := DefaultRetryPolicy()
	if config == nil {
		return policy
	}

	if config.MaxAttempts > 0 {
		policy.MaxAttempts = config.MaxAttempts
	}

	if config.BaseDelay > 0 {
		policy.BaseDelay = config.BaseDelay
	}

	if config.MaxBackoff > 0 {
		policy.MaxBackoff = config.MaxBackoff
	}

	policy.DisableJitter = config.DisableJitter
	policy.DisableTransientRetry = config.DisableTransientRetry

	return policy
}

// CheckRetry implements retryablehttp.CheckRetry. Transport-level failures
// and the transient statuses (429, 502, 503, 504) are retried. A 404 is
// retried only under WithMetadataRetry. Everything else, including 500, is
// terminal. With DisableTransientRetry set nothing is retried at all.
func (p *RetryPolicy) CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if p.DisableTransientRetry {
		return false, nil
	}

	if err != nil {
		return true, nil
	}

	if resp == nil {
		return false, nil
	}

	if dataverse.IsTransientStatus(resp.StatusCode) {
		return true, nil
	}

	if resp.StatusCode == http.StatusNotFound && metadataRetryEnabled(ctx) {
		return true, nil
	}

	return false, nil
}

// Backoff implements retryablehttp.Backoff. The delay doubles per attempt
// from the base, is capped, and is multiplied by a jitter factor in
// [0.5, 1.0). When the response carries a Retry-After hint, the larger of
// the hint and the computed delay is used so the server's wish is never
// undercut.
func (p *RetryPolicy) Backoff(minDelay, maxDelay time.Duration, attemptNum int, resp *http.Response) time.Duration {
	delay := time.Duration(float64(minDelay) * math.Pow(constants.BackoffBase, float64(attemptNum)))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	if !p.DisableJitter {
		factor := constants.JitterMin + rand.Float64()*(1-constants.JitterMin) //nolint:gosec // jitter needs no crypto randomness
		delay = time.Duration(float64(delay) * factor)
	}

	if resp != nil {
		if hint := ParseRetryAfter(resp.Header.Get("Retry-After")); hint != nil && *hint > delay {
			delay = *hint
		}
	}

	return delay
}

// ParseRetryAfter parses a Retry-After header value, either delta seconds or
// an HTTP date. Returns nil when absent or unparseable.
func ParseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return nil
		}

		duration := time.Duration(seconds) * time.Second

		return &duration
	}

	if date, err := http.ParseTime(value); err == nil {
		duration := time.Until(date)
		if duration < 0 {
			duration = 0
		}

		return &duration
	}

	return nil
}

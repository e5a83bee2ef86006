package api

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default retry policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 250 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
)

// RetryPolicy configures which failed requests are retried and how long to
// wait between attempts. A policy is copied when a transport is built and is
// never mutated afterwards.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay is the backoff window for the first retry.
	BaseDelay time.Duration
	// MaxDelay caps both the backoff window and Retry-After hints.
	MaxDelay time.Duration
	// RetryableStatuses lists response status codes that may be retried.
	RetryableStatuses map[int]struct{}
	// RetryableMethods lists request methods that may be retried.
	RetryableMethods map[string]struct{}
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		RetryableStatuses: StatusSet(408, 429, 500, 502, 503, 504),
		RetryableMethods:  MethodSet(http.MethodGet),
	}
}

// StatusSet builds a status code set.
func StatusSet(codes ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// MethodSet builds an upper-cased method set.
func MethodSet(methods ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = struct{}{}
	}
	return set
}

// normalized returns a deep copy with out-of-range values fixed up.
func (p RetryPolicy) normalized() RetryPolicy {
	out := RetryPolicy{
		MaxAttempts:       max(p.MaxAttempts, 1),
		BaseDelay:         max(p.BaseDelay, 0),
		MaxDelay:          max(p.MaxDelay, 0),
		RetryableStatuses: make(map[int]struct{}, len(p.RetryableStatuses)),
		RetryableMethods:  make(map[string]struct{}, len(p.RetryableMethods)),
	}
	for c := range p.RetryableStatuses {
		out.RetryableStatuses[c] = struct{}{}
	}
	for m := range p.RetryableMethods {
		out.RetryableMethods[strings.ToUpper(m)] = struct{}{}
	}
	return out
}

// RetriesStatus reports whether statusCode is in the retryable set.
func (p RetryPolicy) RetriesStatus(statusCode int) bool {
	_, ok := p.RetryableStatuses[statusCode]
	return ok
}

// RetriesMethod reports whether method is in the retryable set.
func (p RetryPolicy) RetriesMethod(method string) bool {
	_, ok := p.RetryableMethods[strings.ToUpper(method)]
	return ok
}

// Jitter returns a uniformly distributed value in [0, n). n is always > 0.
type Jitter func(n int64) int64

// ComputeDelay returns a full-jitter backoff delay for the zero-based retry
// index: a uniform value in [0, min(maxDelay, base*2^attempt)].
func ComputeDelay(attempt int, base, maxDelay time.Duration, jitter Jitter) time.Duration {
	if base <= 0 || maxDelay <= 0 {
		return 0
	}
	attempt = max(attempt, 0)
	if jitter == nil {
		jitter = rand.Int64N
	}

	window := maxDelay
	if attempt < 63 && base <= maxDelay>>uint(attempt) {
		window = base << uint(attempt)
	}
	if window == math.MaxInt64 {
		return time.Duration(jitter(int64(window)))
	}
	return time.Duration(jitter(int64(window) + 1))
}

// ParseRetryAfter parses a Retry-After header value given either as a
// non-negative number of seconds or as an HTTP date. The result is clamped to
// [0, maxDelay]. ok is false when the value is missing or unparseable.
func ParseRetryAfter(value string, maxDelay time.Duration, now time.Time) (delay time.Duration, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	maxDelay = max(maxDelay, 0)

	if isDecimal(value) {
		secs, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsInf(secs, 0) || math.IsNaN(secs) {
			return 0, false
		}
		if secs >= maxDelay.Seconds() {
			return maxDelay, true
		}
		return time.Duration(secs * float64(time.Second)), true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	return min(max(at.Sub(now), 0), maxDelay), true
}

// isDecimal accepts "3", "1.5" and ".5" but not signs, exponents or hex.
func isDecimal(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/parlance-ai/client-go/internal/apierrors"
	"github.com/parlance-ai/client-go/internal/metrics"
)

// maxDrainBytes bounds how much of a discarded response body is read so the
// connection can be reused.
const maxDrainBytes = 64 << 10

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RetryTransport wraps a Doer with the retry policy. It returns the first 2xx
// response, or the last response when retrying stops so the caller can
// classify it. Transport failures are returned already classified.
type RetryTransport struct {
	base    Doer
	policy  RetryPolicy
	logger  zerolog.Logger
	sleep   Sleeper
	jitter  Jitter
	limiter *rate.Limiter
	metrics *metrics.Metrics
	now     func() time.Time
}

// TransportOption configures a RetryTransport.
type TransportOption func(*RetryTransport)

// WithLogger sets the logger used for retry decisions.
func WithLogger(logger zerolog.Logger) TransportOption {
	return func(t *RetryTransport) {
		t.logger = logger
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleep Sleeper) TransportOption {
	return func(t *RetryTransport) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithJitter replaces the random source used for backoff.
func WithJitter(jitter Jitter) TransportOption {
	return func(t *RetryTransport) {
		t.jitter = jitter
	}
}

// WithLimiter makes every attempt wait on a client-side rate limiter.
func WithLimiter(limiter *rate.Limiter) TransportOption {
	return func(t *RetryTransport) {
		t.limiter = limiter
	}
}

// WithMetrics records attempts and retries.
func WithMetrics(m *metrics.Metrics) TransportOption {
	return func(t *RetryTransport) {
		t.metrics = m
	}
}

// WithClock sets the clock used to evaluate Retry-After dates.
func WithClock(now func() time.Time) TransportOption {
	return func(t *RetryTransport) {
		if now != nil {
			t.now = now
		}
	}
}

// NewRetryTransport returns a RetryTransport sending through base. The policy
// is copied.
func NewRetryTransport(base Doer, policy RetryPolicy, opts ...TransportOption) *RetryTransport {
	t := &RetryTransport{
		base:   base,
		policy: policy.normalized(),
		logger: zerolog.Nop(),
		sleep:  SleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns a copy of the transport's retry policy.
func (t *RetryTransport) Policy() RetryPolicy {
	return t.policy.normalized()
}

// Do implements Doer.
func (t *RetryTransport) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	methodRetryable := t.policy.RetriesMethod(method)

	maxAttempts := t.policy.MaxAttempts
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		maxAttempts = 1
	}

	log := t.logger.With().
		Str("method", method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get(apierrors.HeaderRequestID)).
		Logger()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &apierrors.CanceledError{Err: err}
		}
		if err := t.wait(ctx); err != nil {
			return nil, err
		}

		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.KindNetwork, "failed to rewind request body", err)
		}

		start := t.now()
		resp, err := t.base.Do(attemptReq)
		elapsed := t.now().Sub(start)

		var delay time.Duration
		if err != nil {
			t.metrics.ObserveAttempt(method, 0, err, elapsed)
			classified := apierrors.ClassifyTransport(ctx, err)
			if apierrors.IsCanceled(classified) || !methodRetryable {
				return nil, classified
			}
			if attempt >= maxAttempts {
				log.Warn().Err(classified).Int("attempts", attempt).Msg("retries exhausted")
				return nil, classified
			}
			delay = ComputeDelay(attempt-1, t.policy.BaseDelay, t.policy.MaxDelay, t.jitter)
			log.Debug().Err(classified).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after transport failure")
			t.metrics.ObserveRetry(method, "transport")
		} else {
			t.metrics.ObserveAttempt(method, resp.StatusCode, nil, elapsed)
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			var eligible bool
			delay, eligible = t.retryDelay(attempt, methodRetryable, resp)
			if !eligible {
				return resp, nil
			}
			if attempt >= maxAttempts {
				log.Warn().Int("status", resp.StatusCode).Int("attempts", attempt).Msg("retries exhausted")
				return resp, nil
			}
			if ctx.Err() != nil {
				return resp, nil
			}
			log.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after response")
			t.metrics.ObserveRetry(method, "status")
			drainAndClose(resp.Body)
		}

		if err := t.sleep(ctx, delay); err != nil {
			return nil, &apierrors.CanceledError{Err: err}
		}
	}
}

// retryDelay decides whether a non-2xx response may be retried and how long to
// wait first. Invalid Retry-After values fall back to backoff. A method outside
// the retryable set only retries 429 responses that carry a valid Retry-After
// hint.
func (t *RetryTransport) retryDelay(attempt int, methodRetryable bool, resp *http.Response) (time.Duration, bool) {
	if !t.policy.RetriesStatus(resp.StatusCode) {
		return 0, false
	}
	hint, hasHint := ParseRetryAfter(resp.Header.Get("Retry-After"), t.policy.MaxDelay, t.now())

	if !methodRetryable {
		if resp.StatusCode == http.StatusTooManyRequests && hasHint {
			return hint, true
		}
		return 0, false
	}
	if hasHint {
		return hint, true
	}
	return ComputeDelay(attempt-1, t.policy.BaseDelay, t.policy.MaxDelay, t.jitter), true
}

func (t *RetryTransport) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &apierrors.CanceledError{Err: ctxErr}
		}
		return apierrors.Wrap(apierrors.KindRateLimit, "client rate limit", err)
	}
	return nil
}

// rewind returns the request to send for the given attempt. Later attempts get
// a fresh body from GetBody.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, body, maxDrainBytes)
	_ = body.Close()
}

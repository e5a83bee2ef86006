package parlance

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/parlance-ai/client-go/internal/api"
	"github.com/parlance-ai/client-go/internal/config"
)

const (
	defaultBaseURL = config.DefaultBaseURL
	defaultTimeout = 60 * time.Second
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer = api.Doer

// RetryPolicy configures which failed requests are retried and how long to
// wait between attempts.
type RetryPolicy = api.RetryPolicy

// DefaultRetryPolicy returns the default retry policy: 3 attempts, 250ms base
// delay, 30s cap, statuses 408, 429, 500, 502, 503 and 504, GET only.
func DefaultRetryPolicy() RetryPolicy {
	return api.DefaultRetryPolicy()
}

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	doer       Doer
	timeout    time.Duration
	orgID      string
	userAgent  string
	policy     RetryPolicy
	logger     zerolog.Logger
	registerer prometheus.Registerer

	rateLimit float64
	rateBurst int
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		policy:  DefaultRetryPolicy(),
		logger:  zerolog.Nop(),
	}
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithDoer replaces the HTTP client with any Doer. It takes precedence over
// WithHTTPClient and WithTimeout.
func WithDoer(doer Doer) Option {
	return func(c *clientConfig) {
		c.doer = doer
	}
}

// WithTimeout bounds how long each attempt of the default HTTP client may
// spend connecting and waiting for response headers. Response bodies,
// including interaction streams, are bounded only by the call's context.
// Default: 60 seconds
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithOrgID scopes resource paths to an organization.
func WithOrgID(orgID string) Option {
	return func(c *clientConfig) {
		c.orgID = orgID
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *clientConfig) {
		c.policy = policy
	}
}

// WithMaxAttempts sets the total number of attempts per call, including the
// first. Values below 1 are treated as 1.
// Default: 3
func WithMaxAttempts(n int) Option {
	return func(c *clientConfig) {
		c.policy.MaxAttempts = n
	}
}

// WithBackoff sets the base backoff window and the cap applied to both the
// backoff and Retry-After hints.
// Default: 250ms, 30s
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *clientConfig) {
		c.policy.BaseDelay = base
		c.policy.MaxDelay = maxDelay
	}
}

// WithRetryOn sets the HTTP status codes that trigger a retry.
// Default: [408, 429, 500, 502, 503, 504]
func WithRetryOn(statusCodes ...int) Option {
	return func(c *clientConfig) {
		c.policy.RetryableStatuses = api.StatusSet(statusCodes...)
	}
}

// WithRetryMethods sets the request methods that may be retried.
// Default: [GET]
func WithRetryMethods(methods ...string) Option {
	return func(c *clientConfig) {
		c.policy.RetryableMethods = api.MethodSet(methods...)
	}
}

// WithLogger sets the logger for retry and token refresh events.
// Default: disabled
func WithLogger(logger zerolog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithRateLimit caps outgoing attempts at rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *clientConfig) {
		c.rateLimit = rps
		c.rateBurst = burst
	}
}

// WithMetrics registers client metrics with reg. Each client needs its own
// registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// optionsFromConfig converts loaded configuration into options.
func optionsFromConfig(cfg *config.Config) []Option {
	opts := []Option{
		WithBaseURL(cfg.BaseURL),
		WithOrgID(cfg.OrgID),
		WithMaxAttempts(cfg.Retry.MaxAttempts),
		WithBackoff(cfg.Retry.BackoffBase, cfg.Retry.MaxDelay),
		WithRetryOn(cfg.Retry.Statuses...),
		WithRetryMethods(cfg.Retry.Methods...),
		WithLogger(cfg.Log.Logger(logOutput)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return opts
}

package parlance

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/parlance-ai/client-go/internal/api"
	"github.com/parlance-ai/client-go/internal/apierrors"
	"github.com/parlance-ai/client-go/internal/auth"
	"github.com/parlance-ai/client-go/internal/config"
	"github.com/parlance-ai/client-go/internal/metrics"
)

// logOutput receives logs of clients built from environment configuration.
var logOutput io.Writer = os.Stderr

// Credentials identify the caller to the token endpoint. UserID is optional.
type Credentials = auth.Credentials

// Client is the Parlance API client. It is safe for concurrent use.
type Client struct {
	apiClient  *api.Client
	tokens     *auth.TokenCache
	httpClient *http.Client // owned by the client, nil when supplied by the caller

	mu     sync.RWMutex
	closed bool
}

// New creates a new Parlance client with the given credentials.
func New(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	base, owned := buildDoer(cfg)

	var m *metrics.Metrics
	if cfg.registerer != nil {
		m = metrics.New(cfg.registerer)
	}

	transportOpts := []api.TransportOption{
		api.WithLogger(cfg.logger),
		api.WithMetrics(m),
	}
	if cfg.rateLimit > 0 {
		burst := max(cfg.rateBurst, 1)
		transportOpts = append(transportOpts, api.WithLimiter(rate.NewLimiter(rate.Limit(cfg.rateLimit), burst)))
	}
	transport := api.NewRetryTransport(base, cfg.policy, transportOpts...)

	// The token exchange goes straight to the base doer: it is neither
	// retried nor authenticated.
	exchanger, err := auth.NewHTTPExchanger(cfg.baseURL, creds, base, cfg.userAgent)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenCache(exchanger,
		auth.WithCacheLogger(cfg.logger),
		auth.WithCacheMetrics(m),
	)

	apiClient, err := api.New(cfg.baseURL, auth.NewInterceptor(tokens, transport),
		api.WithOrgID(cfg.orgID),
		api.WithUserAgent(cfg.userAgent),
		api.WithClientLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiClient:  apiClient,
		tokens:     tokens,
		httpClient: owned,
	}, nil
}

// buildDoer returns the base doer and, when the client created it, the
// *http.Client it owns.
func buildDoer(cfg *clientConfig) (Doer, *http.Client) {
	switch {
	case cfg.doer != nil:
		return cfg.doer, nil
	case cfg.httpClient != nil:
		return cfg.httpClient, nil
	default:
		hc := newHTTPClient(cfg.timeout)
		return hc, hc
	}
}

// newHTTPClient returns an HTTP client whose timeout bounds connecting and
// waiting for response headers. Reading the body is bounded only by the
// request context, so long interaction streams are not cut off.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// NewFromEnvironment creates a client from PARLANCE_* environment variables
// and a .env file in the working directory, if present. Options override
// the loaded settings.
func NewFromEnvironment(opts ...Option) (*Client, error) {
	return newFromConfig([]config.Option{config.WithEnvFile(".env")}, opts)
}

// NewFromFile is like NewFromEnvironment but first reads settings from a
// YAML file.
func NewFromFile(path string, opts ...Option) (*Client, error) {
	return newFromConfig([]config.Option{config.WithFile(path), config.WithEnvFile(".env")}, opts)
}

func newFromConfig(loadOpts []config.Option, opts []Option) (*Client, error) {
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, err
	}
	creds := Credentials{APIKey: cfg.APIKey, APIKeyID: cfg.APIKeyID, UserID: cfg.UserID}
	return New(creds, append(optionsFromConfig(cfg), opts...)...)
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.apiClient.BaseURL()
}

// OrgID returns the organization resource paths are scoped to, or "".
func (c *Client) OrgID() string {
	return c.apiClient.OrgID()
}

// CheckAuth forces a credential exchange and reports whether the
// credentials were accepted.
func (c *Client) CheckAuth(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	c.tokens.Invalidate("")
	_, err := c.tokens.Token(ctx)
	return err
}

// InvalidateToken discards the cached bearer token. The next call performs
// a new credential exchange.
func (c *Client) InvalidateToken() {
	c.tokens.Invalidate("")
}

// Do sends an authenticated request to path, relative to the base URL,
// through the retry pipeline. body is encoded as JSON when non-nil and the
// response is decoded into result when result is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if method == "" {
		return apierrors.New(apierrors.KindConfiguration, "method is required")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.apiClient.Do(ctx, method, path, body, result)
}

// Close releases idle connections of the client's own HTTP client. Calls
// made after Close return ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/parlance-ai/client-go/internal/apierrors"
	"github.com/parlance-ai/client-go/internal/metrics"
)

// DefaultExchangeTimeout bounds a single credential exchange.
const DefaultExchangeTimeout = 30 * time.Second

const refreshKey = "token"

// State is the lifecycle state of a TokenCache.
type State int

const (
	// StateAbsent means no token is cached.
	StateAbsent State = iota
	// StateValid means a token is cached and no exchange is running.
	StateValid
	// StateRefreshing means a credential exchange is in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// TokenCache caches the bearer token and coalesces refreshes so at most one
// credential exchange runs at a time, however many callers need a token.
type TokenCache struct {
	exchanger       Exchanger
	refreshAhead    time.Duration
	exchangeTimeout time.Duration
	now             func() time.Time
	logger          zerolog.Logger
	metrics         *metrics.Metrics

	sf singleflight.Group

	mu         sync.Mutex
	token      Token
	refreshing bool
}

// CacheOption configures a TokenCache.
type CacheOption func(*TokenCache)

// WithRefreshAhead sets how long before expiry a token is refreshed.
func WithRefreshAhead(d time.Duration) CacheOption {
	return func(c *TokenCache) {
		if d >= 0 {
			c.refreshAhead = d
		}
	}
}

// WithExchangeTimeout bounds each credential exchange.
func WithExchangeTimeout(d time.Duration) CacheOption {
	return func(c *TokenCache) {
		if d > 0 {
			c.exchangeTimeout = d
		}
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) CacheOption {
	return func(c *TokenCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger zerolog.Logger) CacheOption {
	return func(c *TokenCache) {
		c.logger = logger
	}
}

// WithCacheMetrics records exchange outcomes.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *TokenCache) {
		c.metrics = m
	}
}

// NewTokenCache returns an empty cache that refreshes through ex.
func NewTokenCache(ex Exchanger, opts ...CacheOption) *TokenCache {
	c := &TokenCache{
		exchanger:       ex,
		refreshAhead:    DefaultRefreshAhead,
		exchangeTimeout: DefaultExchangeTimeout,
		now:             time.Now,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a token that is not about to expire, exchanging credentials
// when needed. Concurrent callers share one exchange and all receive its
// result. A caller whose ctx ends stops waiting, but the exchange continues
// for the others.
func (c *TokenCache) Token(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, &apierrors.CanceledError{Err: err}
	}
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	ch := c.sf.DoChan(refreshKey, func() (any, error) {
		return c.refresh(ctx)
	})

	select {
	case <-ctx.Done():
		return Token{}, &apierrors.CanceledError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

// Invalidate drops the cached token if its value is bearer, so the next call
// exchanges again. An empty bearer drops whatever is cached.
func (c *TokenCache) Invalidate(bearer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Value == "" {
		return
	}
	if bearer != "" && bearer != c.token.Value {
		return
	}
	c.token = Token{}
	c.logger.Debug().Msg("bearer token invalidated")
}

// State reports the current lifecycle state.
func (c *TokenCache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.refreshing:
		return StateRefreshing
	case c.token.Value != "":
		return StateValid
	default:
		return StateAbsent
	}
}

func (c *TokenCache) cached() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.needsRefresh(c.now(), c.refreshAhead) {
		return Token{}, false
	}
	return c.token, true
}

// refresh runs inside the single flight. The exchange is detached from the
// triggering caller's cancellation and bounded by exchangeTimeout instead.
func (c *TokenCache) refresh(ctx context.Context) (Token, error) {
	c.mu.Lock()
	if !c.token.needsRefresh(c.now(), c.refreshAhead) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.refreshing = true
	c.mu.Unlock()

	exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.exchangeTimeout)
	defer cancel()

	start := c.now()
	tok, err := c.exchanger.Exchange(exCtx)
	if err == nil && tok.Value == "" {
		err = apierrors.ParseError(apierrors.StageResponse, "credential exchange returned an empty token", nil)
	}
	c.metrics.ObserveRefresh(err)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false

	if err != nil {
		c.token = Token{}
		c.logger.Warn().Err(err).Msg("credential exchange failed")
		return Token{}, err
	}

	c.token = tok
	event := c.logger.Debug().Dur("elapsed", c.now().Sub(start))
	if !tok.ExpiresAt.IsZero() {
		event = event.Time("expires_at", tok.ExpiresAt)
	}
	event.Msg("bearer token refreshed")
	return tok, nil
}

package auth

import (
	"net/http"

	"github.com/parlance-ai/client-go/internal/api"
)

// Interceptor stamps each request with a bearer token from the cache before
// handing it to next. A 401 response invalidates that token so the next call
// exchanges again; the failed request is not replayed.
type Interceptor struct {
	cache *TokenCache
	next  api.Doer
}

// NewInterceptor returns an Interceptor sending through next.
func NewInterceptor(cache *TokenCache, next api.Doer) *Interceptor {
	return &Interceptor{cache: cache, next: next}
}

// Do implements api.Doer.
func (i *Interceptor) Do(req *http.Request) (*http.Response, error) {
	tok, err := i.cache.Token(req.Context())
	if err != nil {
		return nil, err
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+tok.Value)

	resp, err := i.next.Do(authed)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		i.cache.Invalidate(tok.Value)
	}
	return resp, err
}

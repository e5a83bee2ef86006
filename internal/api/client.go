package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// Content types negotiated with the API.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeNDJSON = "application/x-ndjson"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "parlance-go"

// Client sends requests through the pipeline: the injected Doer (normally the
// auth interceptor over the retry transport), then error classification, then
// decoding.
type Client struct {
	baseURL      string
	doer         Doer
	userAgent    string
	orgID        string
	logger       zerolog.Logger
	newRequestID func() string
}

// ClientOption configures the API client.
type ClientOption func(*Client)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator replaces the X-Request-ID generator.
func WithRequestIDGenerator(fn func() string) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.newRequestID = fn
		}
	}
}

// WithOrgID scopes resource paths to an organization.
func WithOrgID(orgID string) ClientOption {
	return func(c *Client) {
		c.orgID = orgID
	}
}

// New creates a new API client.
func New(baseURL string, doer Doer, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apierrors.Wrap(apierrors.KindConfiguration, "base URL must be an absolute http(s) URL", err)
	}
	if doer == nil {
		return nil, apierrors.New(apierrors.KindConfiguration, "HTTP doer is required")
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		doer:         doer,
		userAgent:    DefaultUserAgent,
		logger:       zerolog.Nop(),
		newRequestID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OrgID returns the organization the client is scoped to, if any.
func (c *Client) OrgID() string {
	return c.orgID
}

// Do sends a JSON request and decodes the JSON response into result. A nil
// body sends no payload; a nil result discards the response body, which
// allows 204 responses.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apierrors.Wrap(apierrors.KindConfiguration, "failed to marshal request body", err)
		}
		payload = data
	}

	resp, err := c.send(ctx, method, path, ContentTypeJSON, payload, ContentTypeJSON)
	if err != nil {
		return err
	}
	return c.decode(resp, result)
}

// DoBinary sends a raw payload with the given content type and decodes the
// JSON response into result.
func (c *Client) DoBinary(ctx context.Context, method, path, contentType string, payload []byte, result any) error {
	resp, err := c.send(ctx, method, path, contentType, payload, ContentTypeJSON)
	if err != nil {
		return err
	}
	return c.decode(resp, result)
}

// OpenStream sends a request that answers with an NDJSON body. The caller owns
// the returned response body.
func (c *Client) OpenStream(ctx context.Context, method, path, contentType string, payload []byte) (*http.Response, error) {
	return c.send(ctx, method, path, contentType, payload, ContentTypeNDJSON)
}

func (c *Client) decode(resp *http.Response, result any) error {
	if result == nil {
		drainAndClose(resp.Body)
		return nil
	}
	return DecodeJSON(resp, result)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, payload []byte, accept string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConfiguration, "failed to create request", err)
	}

	requestID := c.newRequestID()
	req.Header.Set(apierrors.HeaderRequestID, requestID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, apierrors.ClassifyTransport(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errorFromResponse(resp, requestID)
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("kind", apiErr.Kind.String()).
			Str("request_id", apiErr.RequestID).
			Msg("request failed")
		return nil, apiErr
	}
	return resp, nil
}

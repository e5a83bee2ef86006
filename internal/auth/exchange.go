package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parlance-ai/client-go/internal/api"
	"github.com/parlance-ai/client-go/internal/apierrors"
)

// TokenPath is the credential exchange endpoint.
const TokenPath = "/v1/auth/token"

// Credential exchange headers.
const (
	HeaderAPIKey   = "x-api-key"
	HeaderAPIKeyID = "x-api-key-id"
	HeaderUserID   = "x-user-id"
)

// Exchanger trades long-lived credentials for a bearer token.
type Exchanger interface {
	Exchange(ctx context.Context) (Token, error)
}

// ExchangerFunc adapts a function to the Exchanger interface.
type ExchangerFunc func(ctx context.Context) (Token, error)

// Exchange calls f(ctx).
func (f ExchangerFunc) Exchange(ctx context.Context) (Token, error) {
	return f(ctx)
}

// HTTPExchanger performs the credential exchange over HTTP. It sends through
// the base doer, so the exchange itself is neither retried nor authenticated.
type HTTPExchanger struct {
	baseURL   string
	creds     Credentials
	doer      api.Doer
	userAgent string
	now       func() time.Time
}

// NewHTTPExchanger returns an exchanger posting creds to baseURL + TokenPath.
func NewHTTPExchanger(baseURL string, creds Credentials, doer api.Doer, userAgent string) (*HTTPExchanger, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if doer == nil {
		return nil, apierrors.New(apierrors.KindConfiguration, "HTTP doer is required")
	}
	if userAgent == "" {
		userAgent = api.DefaultUserAgent
	}
	return &HTTPExchanger{
		baseURL:   strings.TrimRight(baseURL, "/"),
		creds:     creds,
		doer:      doer,
		userAgent: userAgent,
		now:       time.Now,
	}, nil
}

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt"`
	ExpiresIn int64      `json:"expiresIn"`
}

// Exchange implements Exchanger.
func (e *HTTPExchanger) Exchange(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+TokenPath, http.NoBody)
	if err != nil {
		return Token{}, apierrors.Wrap(apierrors.KindConfiguration, "failed to create token request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderAPIKey, e.creds.APIKey)
	req.Header.Set(HeaderAPIKeyID, e.creds.APIKeyID)
	if e.creds.UserID != "" {
		req.Header.Set(HeaderUserID, e.creds.UserID)
	}
	req.Header.Set("Accept", api.ContentTypeJSON)
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set(apierrors.HeaderRequestID, requestID)

	resp, err := e.doer.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return Token{}, &apierrors.CanceledError{Err: ctx.Err()}
		}
		return Token{}, apierrors.Wrap(apierrors.KindAuthentication, "credential exchange failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		apiErr := apierrors.Classify(resp.StatusCode, resp.Header, body)
		if apiErr.RequestID == "" {
			apiErr.RequestID = requestID
		}
		return Token{}, apiErr
	}

	var out tokenResponse
	if err := api.DecodeJSON(resp, &out); err != nil {
		return Token{}, err
	}
	if out.Token == "" {
		return Token{}, apierrors.ParseError(apierrors.StageResponse, "token missing from exchange response", nil)
	}

	tok := Token{Value: out.Token}
	switch {
	case out.ExpiresAt != nil:
		tok.ExpiresAt = *out.ExpiresAt
	case out.ExpiresIn > 0:
		tok.ExpiresAt = e.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return tok, nil
}

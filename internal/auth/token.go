package auth

import (
	"time"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// DefaultRefreshAhead is how long before expiry a token is refreshed.
const DefaultRefreshAhead = 5 * time.Minute

// Token is a bearer token obtained from the credential exchange.
type Token struct {
	Value string
	// ExpiresAt is zero when the server did not report an expiry. Such tokens
	// are only replaced after an explicit invalidation.
	ExpiresAt time.Time
}

// needsRefresh reports whether the token expires within ahead of now.
func (t Token) needsRefresh(now time.Time, ahead time.Duration) bool {
	if t.Value == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt.Add(-ahead))
}

// Credentials is the long-lived key material exchanged for bearer tokens.
type Credentials struct {
	APIKey   string
	APIKeyID string
	// UserID is optional; the x-user-id header is omitted when empty.
	UserID string
}

// Validate checks that the required fields are present.
func (c Credentials) Validate() error {
	if c.APIKey == "" {
		return apierrors.New(apierrors.KindConfiguration, "API key is required")
	}
	if c.APIKeyID == "" {
		return apierrors.New(apierrors.KindConfiguration, "API key ID is required")
	}
	return nil
}

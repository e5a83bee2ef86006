package parlance

import (
	"errors"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// Error is returned for every API and transport failure. Its Kind tells
// which of the optional fields are set.
type Error = apierrors.Error

// Kind is the semantic category of an Error.
type Kind = apierrors.Kind

// FieldError is one validation message from a 400 response.
type FieldError = apierrors.FieldError

// CanceledError is returned when the caller's context ended the call.
type CanceledError = apierrors.CanceledError

// Error kinds.
const (
	KindConfiguration      = apierrors.KindConfiguration
	KindAuthentication     = apierrors.KindAuthentication
	KindAuthorization      = apierrors.KindAuthorization
	KindBadRequest         = apierrors.KindBadRequest
	KindNotFound           = apierrors.KindNotFound
	KindConflict           = apierrors.KindConflict
	KindRateLimit          = apierrors.KindRateLimit
	KindServerError        = apierrors.KindServerError
	KindServiceUnavailable = apierrors.KindServiceUnavailable
	KindNetwork            = apierrors.KindNetwork
	KindTimeout            = apierrors.KindTimeout
	KindParse              = apierrors.KindParse
	KindGeneric            = apierrors.KindGeneric
)

// Parse stages reported in Error.Stage.
const (
	StageJSON     = apierrors.StageJSON
	StageResponse = apierrors.StageResponse
)

// Sentinel errors for errors.Is() checks
var (
	// ErrConfiguration is matched when the client is misconfigured.
	ErrConfiguration = apierrors.ErrConfiguration

	// ErrUnauthorized is matched when credentials are missing, invalid or expired.
	ErrUnauthorized = apierrors.ErrUnauthorized

	// ErrForbidden is matched when the credentials lack permission.
	ErrForbidden = apierrors.ErrForbidden

	// ErrBadRequest is matched when the API rejected the request parameters.
	ErrBadRequest = apierrors.ErrBadRequest

	// ErrNotFound is matched when a resource does not exist.
	ErrNotFound = apierrors.ErrNotFound

	// ErrConflict is matched when the request conflicts with the resource state.
	ErrConflict = apierrors.ErrConflict

	// ErrRateLimited is matched when the API rate limit is exceeded.
	ErrRateLimited = apierrors.ErrRateLimited

	// ErrServer is matched by 500 responses.
	ErrServer = apierrors.ErrServer

	// ErrServiceUnavailable is matched by 503 responses.
	ErrServiceUnavailable = apierrors.ErrServiceUnavailable

	// ErrNetwork is matched by DNS, connection and other transport failures.
	ErrNetwork = apierrors.ErrNetwork

	// ErrTimeout is matched when the transport timed out.
	ErrTimeout = apierrors.ErrTimeout

	// ErrParse is matched when a response could not be decoded.
	ErrParse = apierrors.ErrParse

	// ErrCanceled is matched when the caller's context ended the call.
	ErrCanceled = apierrors.ErrCanceled

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	return apierrors.KindOf(err)
}

// IsRetryable reports whether err describes a transient condition worth
// retrying later: rate limiting, server errors, network failures or timeouts.
func IsRetryable(err error) bool {
	kind, ok := apierrors.KindOf(err)
	return ok && kind.Retryable()
}

// IsCanceled reports whether err is a cancellation.
func IsCanceled(err error) bool {
	return apierrors.IsCanceled(err)
}

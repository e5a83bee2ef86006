// Package apierrors provides the error taxonomy shared by the parlance client.
//
// Every non-2xx response and every transport failure is converted into exactly
// one *Error carrying a Kind. Cancellation is reported separately as a
// *CanceledError so callers never mistake an aborted call for a network fault.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the semantic category of an *Error.
type Kind int

const (
	// KindUnknown is the zero value and is never produced by the classifier.
	KindUnknown Kind = iota
	KindConfiguration
	KindAuthentication
	KindAuthorization
	KindBadRequest
	KindNotFound
	KindConflict
	KindRateLimit
	KindServerError
	KindServiceUnavailable
	KindNetwork
	KindTimeout
	KindParse
	KindGeneric
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindConfiguration:      "configuration",
	KindAuthentication:     "authentication",
	KindAuthorization:      "authorization",
	KindBadRequest:         "bad_request",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindRateLimit:          "rate_limit",
	KindServerError:        "server_error",
	KindServiceUnavailable: "service_unavailable",
	KindNetwork:            "network",
	KindTimeout:            "timeout",
	KindParse:              "parse",
	KindGeneric:            "generic",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether errors of this kind describe a transient condition.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindServerError, KindServiceUnavailable, KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// Sentinel errors for errors.Is() checks
var (
	// ErrConfiguration is matched by errors caused by invalid client configuration.
	ErrConfiguration = errors.New("invalid client configuration")

	// ErrUnauthorized is matched when credentials are missing, invalid or expired.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrForbidden is matched when the credentials lack permission for the call.
	ErrForbidden = errors.New("permission denied")

	// ErrBadRequest is matched when the API rejected the request parameters.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound is matched when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is matched when the request conflicts with the resource state.
	ErrConflict = errors.New("resource conflict")

	// ErrRateLimited is matched when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrServer is matched by 500 responses.
	ErrServer = errors.New("internal server error")

	// ErrServiceUnavailable is matched by 503 responses.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNetwork is matched by transport failures such as DNS or refused connections.
	ErrNetwork = errors.New("network error")

	// ErrTimeout is matched when the transport gave up waiting for the server.
	ErrTimeout = errors.New("request timeout")

	// ErrParse is matched when a response could not be decoded.
	ErrParse = errors.New("response parse error")

	// ErrCanceled is matched when the caller's context ended the call.
	ErrCanceled = errors.New("request canceled")
)

var kindSentinels = map[Kind]error{
	KindConfiguration:      ErrConfiguration,
	KindAuthentication:     ErrUnauthorized,
	KindAuthorization:      ErrForbidden,
	KindBadRequest:         ErrBadRequest,
	KindNotFound:           ErrNotFound,
	KindConflict:           ErrConflict,
	KindRateLimit:          ErrRateLimited,
	KindServerError:        ErrServer,
	KindServiceUnavailable: ErrServiceUnavailable,
	KindNetwork:            ErrNetwork,
	KindTimeout:            ErrTimeout,
	KindParse:              ErrParse,
}

// Parse stages.
const (
	StageJSON     = "json"
	StageResponse = "response"
)

// FieldError is a single validation message extracted from an error body.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// Error is the single error type produced for API and transport failures.
// Kind selects which of the optional fields are meaningful.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int

	// FieldErrors is populated for KindBadRequest responses and for
	// configuration validation failures.
	FieldErrors []FieldError

	// Stage is only populated for KindParse ("json" or "response").
	Stage string

	// Body and Header hold the raw HTTP error response, when there was one.
	Body   string
	Header http.Header

	RequestID string

	// Err is the underlying cause, if any.
	Err error
}

// New returns an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an *Error of the given kind caused by err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ParseError returns a KindParse error for the given decoding stage.
func ParseError(stage, message string, err error) *Error {
	return &Error{Kind: KindParse, Stage: stage, Message: message, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.StatusCode > 0:
		fmt.Fprintf(&b, "API error %d", e.StatusCode)
	case e.Stage != "":
		fmt.Fprintf(&b, "%s error at %s", e.Kind, e.Stage)
	default:
		fmt.Fprintf(&b, "%s error", e.Kind)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request_id: %s)", e.RequestID)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// Retryable reports whether the error's kind is transient.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// CanceledError reports that the caller's context ended the call, either before
// an attempt, during a backoff sleep, or while a request was in flight.
type CanceledError struct {
	Err error
}

func (e *CanceledError) Error() string {
	if e.Err == nil {
		return ErrCanceled.Error()
	}
	return fmt.Sprintf("%s: %v", ErrCanceled, e.Err)
}

// Unwrap returns the context error.
func (e *CanceledError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return KindUnknown, false
}

// IsCanceled reports whether err is a cancellation.
func IsCanceled(err error) bool {
	var canceled *CanceledError
	return errors.As(err, &canceled)
}

package apierrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "status code only",
			err:      &Error{Kind: KindServerError, StatusCode: 500},
			expected: "API error 500",
		},
		{
			name:     "with message",
			err:      &Error{Kind: KindBadRequest, StatusCode: 400, Message: "bad request"},
			expected: "API error 400: bad request",
		},
		{
			name:     "with message and request ID",
			err:      &Error{Kind: KindServiceUnavailable, StatusCode: 503, Message: "down", RequestID: "req-456"},
			expected: "API error 503: down (request_id: req-456)",
		},
		{
			name:     "transport failure with cause",
			err:      Wrap(KindNetwork, "request failed", errors.New("boom")),
			expected: "network error: request failed: boom",
		},
		{
			name:     "parse stage",
			err:      ParseError(StageJSON, "malformed line", nil),
			expected: "parse error at json: malformed line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	tests := []struct {
		kind   Kind
		target error
	}{
		{KindConfiguration, ErrConfiguration},
		{KindAuthentication, ErrUnauthorized},
		{KindAuthorization, ErrForbidden},
		{KindBadRequest, ErrBadRequest},
		{KindNotFound, ErrNotFound},
		{KindConflict, ErrConflict},
		{KindRateLimit, ErrRateLimited},
		{KindServerError, ErrServer},
		{KindServiceUnavailable, ErrServiceUnavailable},
		{KindNetwork, ErrNetwork},
		{KindTimeout, ErrTimeout},
		{KindParse, ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", New(tt.kind, "x"))
			assert.ErrorIs(t, err, tt.target)
			assert.NotErrorIs(t, err, ErrCanceled)
		})
	}

	t.Run("generic matches no sentinel", func(t *testing.T) {
		err := &Error{Kind: KindGeneric, StatusCode: 418}
		for _, sentinel := range kindSentinels {
			assert.NotErrorIs(t, err, sentinel)
		}
	})
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(KindAuthentication, "credential exchange failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestKind_Retryable(t *testing.T) {
	retryable := map[Kind]bool{
		KindRateLimit:          true,
		KindServerError:        true,
		KindServiceUnavailable: true,
		KindNetwork:            true,
		KindTimeout:            true,
	}

	for kind := KindUnknown; kind <= KindGeneric; kind++ {
		assert.Equal(t, retryable[kind], kind.Retryable(), "kind %s", kind)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "rate_limit", KindRateLimit.String())
	assert.Equal(t, "generic", KindGeneric.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestCanceledError(t *testing.T) {
	err := &CanceledError{Err: context.Canceled}

	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsCanceled(fmt.Errorf("call: %w", err)))
	assert.Equal(t, "request canceled: context canceled", err.Error())

	_, ok := KindOf(err)
	assert.False(t, ok)
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("ctx: %w", New(KindConflict, "exists")))
	assert.True(t, ok)
	assert.Equal(t, KindConflict, kind)

	kind, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, KindUnknown, kind)
}

func TestFieldError_String(t *testing.T) {
	assert.Equal(t, "name: required", FieldError{Field: "name", Message: "required"}.String())
	assert.Equal(t, "required", FieldError{Message: "required"}.String())
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// noSleep lets retry tests run without waiting.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport := NewRetryTransport(server.Client(), DefaultRetryPolicy(), WithSleeper(noSleep))
	client, err := New(server.URL, transport, opts...)
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		doer    Doer
	}{
		{"empty base URL", "", http.DefaultClient},
		{"relative base URL", "/v1", http.DefaultClient},
		{"unsupported scheme", "ftp://api.example.test", http.DefaultClient},
		{"nil doer", "https://api.example.test", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL, tt.doer)
			assert.ErrorIs(t, err, apierrors.ErrConfiguration)
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client, err := New("https://api.example.test/", http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test", client.BaseURL())
}

func TestClient_Do_SetsHeaders(t *testing.T) {
	var got http.Header
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", ContentTypeJSON)
		w.Write([]byte(`{"id":"c1"}`))
	}, WithUserAgent("parlance-test/1.0"), WithRequestIDGenerator(func() string { return "req-fixed" }))

	var out Conversation
	require.NoError(t, client.Do(context.Background(), http.MethodPost, "/v1/conversations", CreateConversationRequest{Title: "t"}, &out))

	assert.Equal(t, "c1", out.ID)
	assert.Equal(t, "req-fixed", got.Get(apierrors.HeaderRequestID))
	assert.Equal(t, "parlance-test/1.0", got.Get("User-Agent"))
	assert.Equal(t, ContentTypeJSON, got.Get("Accept"))
	assert.Equal(t, ContentTypeJSON, got.Get("Content-Type"))
}

func TestClient_Do_RequestIDStableAcrossRetries(t *testing.T) {
	var ids []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get(apierrors.HeaderRequestID))
		if len(ids) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"c1"}`))
	})

	var out Conversation
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/v1/conversations/c1", nil, &out))

	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
}

func TestClient_Do_ServerErrorAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
	})

	err := client.Do(context.Background(), http.MethodGet, "/v1/conversations", nil, &ConversationList{})

	assert.ErrorIs(t, err, apierrors.ErrServer)
	var apiErr *apierrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.NotEmpty(t, apiErr.RequestID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Do_PostRateLimitedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := client.Do(context.Background(), http.MethodPost, "/v1/conversations", CreateConversationRequest{}, &Conversation{})

	assert.ErrorIs(t, err, apierrors.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Do_BadRequestFieldErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(apierrors.HeaderRequestID, "srv-req")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"field":"title","message":"too long"}]}`))
	})

	err := client.Do(context.Background(), http.MethodPost, "/v1/conversations", CreateConversationRequest{}, &Conversation{})

	var apiErr *apierrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierrors.KindBadRequest, apiErr.Kind)
	assert.Equal(t, []apierrors.FieldError{{Field: "title", Message: "too long"}}, apiErr.FieldErrors)
	assert.Equal(t, "srv-req", apiErr.RequestID)
}

func TestClient_Do_NullPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	})

	err := client.Do(context.Background(), http.MethodGet, "/v1/conversations/c1", nil, &Conversation{})
	assert.ErrorIs(t, err, apierrors.ErrParse)
}

func TestClient_Do_NilResultAllowsNoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.Do(context.Background(), http.MethodDelete, "/v1/conversations/c1", nil, nil))
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	transport := NewRetryTransport(http.DefaultClient, DefaultRetryPolicy(), WithSleeper(noSleep))
	client, err := New(url, transport)
	require.NoError(t, err)

	err = client.Do(context.Background(), http.MethodGet, "/v1/conversations", nil, &ConversationList{})
	assert.ErrorIs(t, err, apierrors.ErrNetwork)
	assert.False(t, apierrors.IsCanceled(err))
}

func TestClient_Do_CanceledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Do(ctx, http.MethodGet, "/v1/conversations", nil, &ConversationList{})
	assert.ErrorIs(t, err, apierrors.ErrCanceled)
	assert.NotErrorIs(t, err, apierrors.ErrNetwork)
}

func TestClient_DoBinary(t *testing.T) {
	var gotType string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"id":"u1"}`))
	})

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, client.DoBinary(context.Background(), http.MethodPut, "/v1/uploads/u1", "audio/wav", []byte("RIFF"), &out))

	assert.Equal(t, "audio/wav", gotType)
	assert.Equal(t, []byte("RIFF"), gotBody)
	assert.Equal(t, "u1", out.ID)
}

func TestClient_OpenStream_Accept(t *testing.T) {
	var accept string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", ContentTypeNDJSON)
		w.Write([]byte("{\"type\":\"done\"}\n"))
	})

	resp, err := client.OpenStream(context.Background(), http.MethodPost, "/v1/stream", ContentTypeJSON, []byte(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, ContentTypeNDJSON, accept)
}

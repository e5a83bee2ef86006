package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

func TestResourcePath(t *testing.T) {
	client, err := New("https://api.example.test", http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, "/v1/conversations/a%2Fb", client.resourcePath("conversations", "a/b"))

	scoped, err := New("https://api.example.test", http.DefaultClient, WithOrgID("org-1"))
	require.NoError(t, err)
	assert.Equal(t, "/v1/orgs/org-1/conversations", scoped.resourcePath("conversations"))
	assert.Equal(t, "org-1", scoped.OrgID())
}

func TestConversations(t *testing.T) {
	var method, path, query string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path, query = r.Method, r.URL.Path, r.URL.RawQuery
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			var req CreateConversationRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(Conversation{ID: "c1", Title: req.Title})
		default:
			if strings.HasSuffix(r.URL.Path, "/conversations") {
				json.NewEncoder(w).Encode(ConversationList{Conversations: []Conversation{{ID: "c1"}}, NextCursor: "n"})
				return
			}
			json.NewEncoder(w).Encode(Conversation{ID: "c1"})
		}
	}, WithOrgID("org-1"))
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		conv, err := client.CreateConversation(ctx, CreateConversationRequest{Title: "Support"})
		require.NoError(t, err)
		assert.Equal(t, "Support", conv.Title)
		assert.Equal(t, http.MethodPost, method)
		assert.Equal(t, "/v1/orgs/org-1/conversations", path)
	})

	t.Run("get", func(t *testing.T) {
		conv, err := client.GetConversation(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", conv.ID)
		assert.Equal(t, "/v1/orgs/org-1/conversations/c1", path)
	})

	t.Run("list", func(t *testing.T) {
		list, err := client.ListConversations(ctx, ListConversationsParams{Limit: 10, Cursor: "abc"})
		require.NoError(t, err)
		assert.Len(t, list.Conversations, 1)
		assert.Equal(t, "n", list.NextCursor)
		assert.Equal(t, "cursor=abc&limit=10", query)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, client.DeleteConversation(ctx, "c1"))
		assert.Equal(t, http.MethodDelete, method)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := client.GetConversation(ctx, " ")
		assert.ErrorIs(t, err, apierrors.ErrConfiguration)
		assert.ErrorIs(t, client.DeleteConversation(ctx, ""), apierrors.ErrConfiguration)
	})
}

func TestInteract(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conversations/c1/interactions", r.URL.Path)
		var req InteractionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)

		w.Header().Set("Content-Type", ContentTypeNDJSON)
		io.WriteString(w, "{\"type\":\"transcript\",\"turnId\":\"t1\",\"text\":\"hel\"}\n\n")
		io.WriteString(w, "{\"type\":\"transcript\",\"turnId\":\"t1\",\"text\":\"hello\",\"final\":true}\n")
		io.WriteString(w, `{"type":"done","data":{"tokens":3}}`)
	})

	stream, err := client.Interact(context.Background(), "c1", InteractionRequest{Text: "hello"})
	require.NoError(t, err)

	events, err := stream.Collect()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "hel", events[0].Text)
	assert.True(t, events[1].Final)
	assert.Equal(t, "done", events[2].Type)
	assert.JSONEq(t, `{"tokens":3}`, string(events[2].Data))
}

func TestInteract_ErrorResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"conversation not found"}`))
	})

	_, err := client.Interact(context.Background(), "missing", InteractionRequest{Text: "hi"})
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestInteractAudio_DetectsContentType(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)

	var gotType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		assert.Equal(t, "/v1/conversations/c1/interactions/audio", r.URL.Path)
		io.WriteString(w, "{\"type\":\"done\"}\n")
	})

	stream, err := client.InteractAudio(context.Background(), "c1", wav, "")
	require.NoError(t, err)
	events, err := stream.Collect()
	require.NoError(t, err)

	assert.Len(t, events, 1)
	assert.Equal(t, "audio/wav", gotType)
}

func TestInteractAudio_EmptyPayload(t *testing.T) {
	client, err := New("https://api.example.test", http.DefaultClient)
	require.NoError(t, err)

	_, err = client.InteractAudio(context.Background(), "c1", nil, "")
	assert.ErrorIs(t, err, apierrors.ErrConfiguration)
}

func TestDetectAudioType(t *testing.T) {
	assert.Equal(t, "text/plain", DetectAudioType([]byte("hello world")))
	assert.Equal(t, "audio/wav", DetectAudioType(append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)))
}

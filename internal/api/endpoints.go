package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// resourcePath joins escaped segments under /v1, or /v1/orgs/{orgId} when the
// client is scoped to an organization.
func (c *Client) resourcePath(segments ...string) string {
	var b strings.Builder
	b.WriteString("/v1")
	if c.orgID != "" {
		b.WriteString("/orgs/")
		b.WriteString(url.PathEscape(c.orgID))
	}
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func requireID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return apierrors.New(apierrors.KindConfiguration, name+" is required")
	}
	return nil
}

// CreateConversation creates a conversation.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	var result Conversation
	if err := c.Do(ctx, http.MethodPost, c.resourcePath("conversations"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetConversation retrieves a conversation by ID.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if err := requireID("conversation id", id); err != nil {
		return nil, err
	}
	var result Conversation
	if err := c.Do(ctx, http.MethodGet, c.resourcePath("conversations", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListConversations lists conversations one page at a time.
func (c *Client) ListConversations(ctx context.Context, params ListConversationsParams) (*ConversationList, error) {
	path := c.resourcePath("conversations")

	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result ConversationList
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteConversation deletes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if err := requireID("conversation id", id); err != nil {
		return err
	}
	return c.Do(ctx, http.MethodDelete, c.resourcePath("conversations", id), nil, nil)
}

// Interact sends a text turn and returns the streamed response events.
func (c *Client) Interact(ctx context.Context, conversationID string, req InteractionRequest) (*Stream[InteractionEvent], error) {
	if err := requireID("conversation id", conversationID); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConfiguration, "failed to marshal request body", err)
	}

	path := c.resourcePath("conversations", conversationID, "interactions")
	resp, err := c.OpenStream(ctx, http.MethodPost, path, ContentTypeJSON, payload)
	if err != nil {
		return nil, err
	}
	return NewStream[InteractionEvent](ctx, resp.Body), nil
}

// InteractAudio sends an audio turn and returns the streamed response events.
// An empty contentType is detected from the audio bytes.
func (c *Client) InteractAudio(ctx context.Context, conversationID string, audio []byte, contentType string) (*Stream[InteractionEvent], error) {
	if err := requireID("conversation id", conversationID); err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, apierrors.New(apierrors.KindConfiguration, "audio payload is empty")
	}
	if contentType == "" {
		contentType = DetectAudioType(audio)
	}

	path := c.resourcePath("conversations", conversationID, "interactions", "audio")
	resp, err := c.OpenStream(ctx, http.MethodPost, path, contentType, audio)
	if err != nil {
		return nil, err
	}
	return NewStream[InteractionEvent](ctx, resp.Body), nil
}

// DetectAudioType sniffs the MIME type of an audio payload, without parameters.
func DetectAudioType(audio []byte) string {
	mtype := mimetype.Detect(audio).String()
	if i := strings.IndexByte(mtype, ';'); i >= 0 {
		mtype = strings.TrimSpace(mtype[:i])
	}
	return mtype
}

package parlance

import (
	"context"

	"github.com/parlance-ai/client-go/internal/api"
)

// Conversation is a conversation resource.
type Conversation = api.Conversation

// CreateConversationRequest holds the fields of a new conversation.
type CreateConversationRequest = api.CreateConversationRequest

// ConversationList is one page of conversations. NextCursor is empty on the
// last page.
type ConversationList = api.ConversationList

// ListConversationsParams selects a page of conversations.
type ListConversationsParams = api.ListConversationsParams

// CreateConversation creates a conversation. POST requests are not retried
// unless the retry policy includes POST or the server sends Retry-After.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.apiClient.CreateConversation(ctx, req)
}

// GetConversation retrieves a conversation by ID.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.apiClient.GetConversation(ctx, id)
}

// ListConversations returns one page of conversations.
func (c *Client) ListConversations(ctx context.Context, params ListConversationsParams) (*ConversationList, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.apiClient.ListConversations(ctx, params)
}

// DeleteConversation deletes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.apiClient.DeleteConversation(ctx, id)
}

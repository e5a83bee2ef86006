package api

import (
	"encoding/json"
	"time"
)

// Conversation represents a conversation resource.
type Conversation struct {
	ID        string            `json:"id"`
	Title     string            `json:"title,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// CreateConversationRequest represents the POST /conversations request.
type CreateConversationRequest struct {
	Title    string            `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ConversationList represents the GET /conversations response.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
	NextCursor    string         `json:"nextCursor,omitempty"`
}

// ListConversationsParams holds the GET /conversations query parameters.
type ListConversationsParams struct {
	Limit  int
	Cursor string
}

// InteractionRequest represents the POST /conversations/{id}/interactions request.
type InteractionRequest struct {
	Text     string            `json:"text"`
	Locale   string            `json:"locale,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InteractionEvent is one record of an interaction stream.
type InteractionEvent struct {
	Type   string          `json:"type"`
	TurnID string          `json:"turnId,omitempty"`
	Text   string          `json:"text,omitempty"`
	Final  bool            `json:"final,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

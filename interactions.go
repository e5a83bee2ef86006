package parlance

import (
	"context"

	"github.com/parlance-ai/client-go/internal/api"
)

// Stream iterates over newline-delimited JSON records of a streamed response.
// Callers must Close it, or drain it with Next until it returns false.
type Stream[T any] = api.Stream[T]

// InteractionRequest is a text turn.
type InteractionRequest = api.InteractionRequest

// InteractionEvent is one record of an interaction stream.
type InteractionEvent = api.InteractionEvent

// Interact sends a text turn to a conversation and streams the response.
//
//	stream, err := client.Interact(ctx, convID, parlance.InteractionRequest{Text: "hello"})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Current().Text)
//	}
//	return stream.Err()
func (c *Client) Interact(ctx context.Context, conversationID string, req InteractionRequest) (*Stream[InteractionEvent], error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.apiClient.Interact(ctx, conversationID, req)
}

// InteractAudio sends an audio turn to a conversation and streams the
// response. An empty contentType is detected from the audio bytes.
func (c *Client) InteractAudio(ctx context.Context, conversationID string, audio []byte, contentType string) (*Stream[InteractionEvent], error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.apiClient.InteractAudio(ctx, conversationID, audio, contentType)
}

// Package parlance provides a Go client for the Parlance conversational API.
//
// The client exchanges an API key for a short-lived bearer token, caches it
// and refreshes it on demand. Concurrent callers share a single exchange.
// Failed requests are retried with full-jitter exponential backoff, honoring
// Retry-After, and every failure is reported as an *Error with a Kind.
//
// Basic usage:
//
//	client, err := parlance.New(parlance.Credentials{
//	    APIKey:   os.Getenv("PARLANCE_API_KEY"),
//	    APIKeyID: os.Getenv("PARLANCE_API_KEY_ID"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	conv, err := client.CreateConversation(ctx, parlance.CreateConversationRequest{Title: "demo"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stream, err := client.Interact(ctx, conv.ID, parlance.InteractionRequest{Text: "hello"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//	for event, err := range stream.All() {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Print(event.Text)
//	}
//
// Errors can be matched by sentinel or by kind:
//
//	if errors.Is(err, parlance.ErrRateLimited) {
//	    // back off
//	}
//	if kind, ok := parlance.KindOf(err); ok && kind == parlance.KindNotFound {
//	    // ...
//	}
package parlance

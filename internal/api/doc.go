// Package api provides the request pipeline used by the parlance client. It
// handles request construction, retries with full-jitter exponential backoff,
// error classification, and decoding of JSON and NDJSON responses.
//
// # Pipeline
//
// A logical call flows through these stages:
//
//   - [Client] builds the request and assigns an X-Request-ID that is reused
//     across every attempt of the call.
//   - The injected [Doer] sends it. In the public client this is the auth
//     interceptor wrapping a [RetryTransport].
//   - Non-2xx responses are classified into an *apierrors.Error.
//   - 2xx responses are decoded with [DecodeJSON] or wrapped in a [Stream].
//
// # Retry Behavior
//
// By default only GET requests are retried, up to 3 attempts in total, on
// these status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// Other methods are retried only on 429 with a valid Retry-After header. The
// wait before retry n is drawn uniformly from [0, min(MaxDelay, BaseDelay*2^n)]
// unless the server sent a Retry-After hint. Cancelling the request context
// interrupts the wait.
//
// # Streams
//
// [Stream] reads newline-delimited JSON lazily:
//
//	stream, err := client.Interact(ctx, id, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    handle(stream.Current())
//	}
//	return stream.Err()
//
// # Thread Safety
//
// [Client] and [RetryTransport] are safe for concurrent use. A [Stream] is
// consumed by one goroutine.
package api

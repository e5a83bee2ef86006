package api

import (
	"io"
	"net/http"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// errorFromResponse classifies a non-2xx response and closes its body. The
// request's own X-Request-ID is used when the server does not echo one.
func errorFromResponse(resp *http.Response, requestID string) *apierrors.Error {
	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
	}

	apiErr := apierrors.Classify(resp.StatusCode, resp.Header, body)
	if apiErr.RequestID == "" {
		apiErr.RequestID = requestID
	}
	return apiErr
}

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// maxErrorBodyBytes bounds the part of an error response body that is read
// for classification. Successful bodies are read in full.
const maxErrorBodyBytes = 1 << 20

var jsonNull = []byte("null")

// DecodeJSON reads resp's body into out and closes it. A missing, blank or
// null payload is a "response" stage parse error; malformed JSON is a "json"
// stage parse error.
func DecodeJSON(resp *http.Response, out any) error {
	if resp == nil || resp.Body == nil {
		return apierrors.ParseError(apierrors.StageResponse, "response has no body", nil)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierrors.ClassifyTransport(requestContext(resp), err)
	}
	return decodeBytes(data, out)
}

func decodeBytes(data []byte, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return apierrors.ParseError(apierrors.StageResponse, "response payload is empty", nil)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierrors.ParseError(apierrors.StageJSON, "invalid response body", err)
	}
	return nil
}

package apierrors

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// HeaderRequestID is the header carrying the per-call request id.
const HeaderRequestID = "X-Request-ID"

// maxMessageLen bounds the raw-text fallback used as an error message.
const maxMessageLen = 512

// KindForStatus maps a non-2xx HTTP status code to its Kind.
func KindForStatus(statusCode int) Kind {
	switch statusCode {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindAuthentication
	case http.StatusForbidden:
		return KindAuthorization
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusInternalServerError:
		return KindServerError
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	default:
		return KindGeneric
	}
}

// Classify converts a non-2xx response into an *Error. It never fails: bodies
// that are not JSON degrade to their raw text, empty bodies to the status text.
func Classify(statusCode int, header http.Header, body []byte) *Error {
	e := &Error{
		Kind:       KindForStatus(statusCode),
		StatusCode: statusCode,
		Body:       string(body),
		Header:     header,
	}

	details := extractDetails(body)
	e.Message = details.message
	if e.Kind == KindBadRequest {
		e.FieldErrors = details.fields
	}
	e.RequestID = details.requestID
	if e.RequestID == "" && header != nil {
		e.RequestID = header.Get(HeaderRequestID)
	}
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}
	return e
}

type bodyDetails struct {
	message   string
	fields    []FieldError
	requestID string
}

func extractDetails(body []byte) bodyDetails {
	var d bodyDetails

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return d
	}
	if !gjson.ValidBytes(trimmed) {
		d.message = truncate(string(trimmed))
		return d
	}

	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		if root.Type == gjson.String {
			d.message = truncate(root.String())
		} else {
			d.message = truncate(string(trimmed))
		}
		return d
	}

	if errs := root.Get("errors"); errs.IsArray() {
		d.fields = append(d.fields, fieldErrors(errs)...)
	}

	detail := root.Get("detail")
	switch {
	case detail.Type == gjson.String:
		d.message = detail.String()
		d.fields = append(d.fields, FieldError{Message: detail.String()})
	case detail.IsArray():
		d.fields = append(d.fields, fieldErrors(detail)...)
	}

	if d.message == "" {
		d.message = firstString(root, "message", "error.message", "error", "title")
	}
	if d.message == "" && len(d.fields) > 0 {
		d.message = d.fields[0].String()
	}
	d.requestID = firstString(root, "request_id", "requestId")
	return d
}

// fieldErrors accepts both ["msg", ...] and [{"field": ..., "message": ...}, ...]
// shapes, including FastAPI-style {"loc": [...], "msg": ...} entries.
func fieldErrors(list gjson.Result) []FieldError {
	var out []FieldError
	list.ForEach(func(_, item gjson.Result) bool {
		switch {
		case item.Type == gjson.String:
			out = append(out, FieldError{Message: item.String()})
		case item.IsObject():
			fe := FieldError{
				Field:   firstString(item, "field", "path", "param"),
				Message: firstString(item, "message", "msg", "detail"),
			}
			if fe.Field == "" {
				if loc := item.Get("loc"); loc.IsArray() {
					var parts []string
					for _, p := range loc.Array() {
						parts = append(parts, p.String())
					}
					fe.Field = strings.Join(parts, ".")
				}
			}
			if fe.Message == "" {
				fe.Message = truncate(item.Raw)
			}
			out = append(out, fe)
		}
		return true
	})
	return out
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// ClassifyTransport converts an error returned while sending a request or
// reading its body. Errors that are already classified pass through unchanged.
// A done ctx always yields a *CanceledError, never a network error.
func ClassifyTransport(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var canceled *CanceledError
	if errors.As(err, &canceled) {
		return err
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return err
	}

	if ctx != nil && ctx.Err() != nil {
		return &CanceledError{Err: ctx.Err()}
	}
	if errors.Is(err, context.Canceled) {
		return &CanceledError{Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Wrap(KindTimeout, "request timed out", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Wrap(KindNetwork, "name resolution failed", err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Wrap(KindNetwork, "connection refused", err)
	}
	return Wrap(KindNetwork, "request failed", err)
}

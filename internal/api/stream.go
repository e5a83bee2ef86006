package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// Stream decodes a newline-delimited JSON body one record at a time. Records
// are produced only as the consumer pulls them, and the body is read exactly
// once. The body is released when the stream ends, fails, or is closed.
//
// A Stream is not safe for concurrent use, except that Close may be called
// from another goroutine to abort a blocked read.
type Stream[T any] struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *bufio.Reader

	current T
	err     error
	done    bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream returns a Stream over body. A nil body yields no records.
func NewStream[T any](ctx context.Context, body io.ReadCloser) *Stream[T] {
	s := &Stream[T]{ctx: ctx, body: body}
	if body == nil {
		s.done = true
		return s
	}
	s.reader = bufio.NewReader(body)
	return s
}

// Next advances to the next record. It returns false at the end of the body or
// on the first error; check Err afterwards.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}
	if s.closed.Load() {
		s.finish()
		return false
	}
	if s.err != nil {
		s.finish()
		return false
	}

	for {
		if err := s.ctx.Err(); err != nil {
			s.fail(&apierrors.CanceledError{Err: err})
			return false
		}

		line, readErr := s.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)

		if len(line) > 0 {
			var record T
			if err := json.Unmarshal(line, &record); err != nil {
				s.fail(apierrors.ParseError(apierrors.StageJSON, "malformed stream record", err))
				return false
			}
			s.current = record
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				// the read error surfaces on the next call
				s.err = apierrors.ClassifyTransport(s.ctx, readErr)
			} else if readErr != nil {
				s.finish()
			}
			return true
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || s.closed.Load() {
				s.finish()
			} else {
				s.fail(apierrors.ClassifyTransport(s.ctx, readErr))
			}
			return false
		}
	}
}

// Current returns the record read by the last successful call to Next.
func (s *Stream[T]) Current() T {
	return s.current
}

// Err returns the error that stopped the stream, if any.
func (s *Stream[T]) Err() error {
	if s.done {
		return s.err
	}
	return nil
}

// Close releases the body. It is safe to call more than once. Next returns
// false without an error once the stream is closed.
func (s *Stream[T]) Close() error {
	s.closed.Store(true)
	s.closeOnce.Do(func() {
		if s.body != nil {
			s.closeErr = s.body.Close()
		}
	})
	return s.closeErr
}

// All returns an iterator over the remaining records. Iteration stops after
// yielding the first error. Breaking out of the loop closes the stream.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.current, nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect drains the stream into a slice.
func (s *Stream[T]) Collect() ([]T, error) {
	var out []T
	for v, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Stream[T]) finish() {
	s.done = true
	s.reader = nil
	_ = s.Close()
}

func (s *Stream[T]) fail(err error) {
	if s.err == nil {
		s.err = err
	}
	s.finish()
}

// requestContext returns the context of the request behind resp.
func requestContext(resp *http.Response) context.Context {
	if resp != nil && resp.Request != nil {
		return resp.Request.Context()
	}
	return context.Background()
}

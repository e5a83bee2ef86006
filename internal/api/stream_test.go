package api

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

type record map[string]int

// trackingBody records whether Close was called.
type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func newBody(s string) *trackingBody {
	return &trackingBody{Reader: strings.NewReader(s)}
}

func TestStream_Records(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []record
	}{
		{"newline terminated", "{\"a\":1}\n{\"b\":2}\n", []record{{"a": 1}, {"b": 2}}},
		{"trailing partial line", `{"a":1}`, []record{{"a": 1}}},
		{"blank lines skipped", "\n  \n{\"a\":1}\r\n\n{\"b\":2}", []record{{"a": 1}, {"b": 2}}},
		{"empty body", "", nil},
		{"whitespace only", "\n\n  \n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := newBody(tt.input)
			got, err := NewStream[record](context.Background(), body).Collect()

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, 1, body.closed)
		})
	}
}

func TestStream_MalformedLine(t *testing.T) {
	body := newBody("{\"a\":1}\n{bad}\n{\"c\":3}\n")
	s := NewStream[record](context.Background(), body)

	require.True(t, s.Next())
	assert.Equal(t, record{"a": 1}, s.Current())

	assert.False(t, s.Next())
	err := s.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrParse)

	var apiErr *apierrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierrors.StageJSON, apiErr.Stage)

	assert.False(t, s.Next(), "stream must not resume after an error")
	assert.Equal(t, 1, body.closed)
}

func TestStream_NilBody(t *testing.T) {
	s := NewStream[record](context.Background(), nil)

	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
	assert.NoError(t, s.Close())
}

func TestStream_EarlyBreakReleasesBody(t *testing.T) {
	body := newBody("{\"a\":1}\n{\"b\":2}\n{\"c\":3}\n")
	s := NewStream[record](context.Background(), body)

	var seen int
	for _, err := range s.All() {
		require.NoError(t, err)
		seen++
		break
	}

	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, body.closed)
}

func TestStream_AllYieldsError(t *testing.T) {
	s := NewStream[record](context.Background(), newBody("{\"a\":1}\nnot json\n"))

	var records []record
	var errs []error
	for v, err := range s.All() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, v)
	}

	assert.Equal(t, []record{{"a": 1}}, records)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], apierrors.ErrParse)
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	body := newBody("{\"a\":1}\n")
	s := NewStream[record](context.Background(), body)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, body.closed)
}

func TestStream_NextAfterCloseEndsCleanly(t *testing.T) {
	body := newBody("{\"a\":1}\n{\"b\":2}\n{\"c\":3}\n")
	s := NewStream[record](context.Background(), body)

	require.True(t, s.Next())
	assert.Equal(t, record{"a": 1}, s.Current())
	require.NoError(t, s.Close())

	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, body.closed)
}

func TestStream_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	body := newBody("{\"a\":1}\n{\"b\":2}\n")
	s := NewStream[record](ctx, body)

	require.True(t, s.Next())
	cancel()

	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), apierrors.ErrCanceled)
	assert.Equal(t, 1, body.closed)
}

// failingReader returns data followed by a non-EOF error.
type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, errors.New("connection reset by peer")
	}
	r.read = true
	return copy(p, r.data), nil
}

func TestStream_ReadFailureAfterPartialRecord(t *testing.T) {
	body := &trackingBody{Reader: &failingReader{data: "{\"a\":1}\n{\"b\":2}"}}
	s := NewStream[record](context.Background(), body)

	got, err := s.Collect()
	assert.Equal(t, []record{{"a": 1}, {"b": 2}}, got)
	assert.ErrorIs(t, err, apierrors.ErrNetwork)
	assert.Equal(t, 1, body.closed)
}

// ABOUTME: Pull-based reader yielding parsed JSON payloads from an event-stream body
// ABOUTME: Handles UTF-8 sequences split across reads and skips unparseable frames

package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const defaultReadSize = 4096

// ErrNotObject is reported to the skip hook when a payload is valid text but
// not a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// SkipFunc observes a frame that was dropped because its payload did not parse.
type SkipFunc func(payload string, err error)

type options struct {
	logger   *slog.Logger
	onSkip   SkipFunc
	readSize int
}

// Option configures a Reader.
type Option func(*options)

// WithLogger sets the logger used for skipped-frame diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSkipHook registers a callback invoked for every skipped frame.
func WithSkipHook(fn SkipFunc) Option {
	return func(o *options) {
		o.onSkip = fn
	}
}

// WithReadSize sets how many bytes are requested from the source per read.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// Reader lazily decodes frames from an io.Reader into values of type T.
// The sequence is finite and cannot be restarted.
type Reader[T any] struct {
	src     io.Reader
	dec     Decoder
	buf     []byte
	pending []string
	err     error
	skipped int
	logger  *slog.Logger
	onSkip  SkipFunc
}

// NewReader wraps r. Bytes are decoded as UTF-8 (a leading byte order mark is
// dropped, invalid sequences become U+FFFD) before framing.
func NewReader[T any](r io.Reader, opts ...Option) *Reader[T] {
	o := options{readSize: defaultReadSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Reader[T]{
		src:    transform.NewReader(r, unicode.UTF8BOM.NewDecoder()),
		buf:    make([]byte, o.readSize),
		logger: o.logger.With("component", "sse"),
		onSkip: o.onSkip,
	}
}

// Next returns the next payload that parsed successfully. It returns io.EOF
// once the source is exhausted; an unterminated trailing frame is discarded.
// Any other read error is returned as is and repeated on later calls.
func (r *Reader[T]) Next() (T, error) {
	var zero T
	for {
		for len(r.pending) > 0 {
			payload := r.pending[0]
			r.pending = r.pending[1:]

			v, err := parsePayload[T](payload)
			if err != nil {
				r.skip(payload, err)
				continue
			}
			return v, nil
		}

		if r.err != nil {
			return zero, r.err
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Feed(string(r.buf[:n]))...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("reading stream: %w", err)
			} else {
				err = io.EOF
				if tail := r.dec.Pending(); tail != "" {
					r.logger.Debug("dropping unterminated frame", "bytes", len(tail))
					r.dec.Reset()
				}
			}
			r.err = err
		}
	}
}

// All returns the remaining payloads as a sequence. Iteration stops after
// the first non-EOF error, which is yielded with the zero value.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Skipped reports how many frames were dropped because they did not parse.
func (r *Reader[T]) Skipped() int {
	return r.skipped
}

func (r *Reader[T]) skip(payload string, err error) {
	r.skipped++
	r.logger.Debug("skipping unparseable frame",
		"error", err,
		"payload", truncate(payload, 120))
	if r.onSkip != nil {
		r.onSkip(payload, err)
	}
}

func parsePayload[T any](payload string) (T, error) {
	var v T
	data := bytes.TrimLeft([]byte(payload), " \t\r\n")
	if len(data) == 0 || data[0] != '{' {
		return v, ErrNotObject
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// truncate shortens a string to maxLen bytes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

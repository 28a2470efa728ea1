package pipeline

import (
	"errors"
	"fmt"
)

// ErrConcurrentPull is returned when Next is called on a ChunkedSource while a
// previous call is still outstanding. It signals a programming error in the
// caller and should not be treated as recoverable.
var ErrConcurrentPull = errors.New("concurrent pull on chunked source")

// ErrClosed is returned by pulls issued after a stream has been closed.
var ErrClosed = errors.New("stream closed")

// ErrNotBinary is returned by the AssemblySink when a chunk cannot be
// converted into a byte buffer.
var ErrNotBinary = errors.New("chunk is not a binary payload")

// ReadError reports a failed read of the underlying Source. It ends the
// stream for that Source.
type ReadError struct {
	Source string
	Offset uint
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s at offset %d: %s", e.Source, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// DecodeError reports corrupt or truncated compressed data.
type DecodeError struct {
	Source string
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s stream from %s: %s", e.Format, e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PreprocessError is returned by AssemblySink writes when the preprocess hook
// rejects a chunk. The sink's buffer is left unchanged, so the same chunk may
// be written again.
type PreprocessError struct {
	Err error
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("preprocessing chunk: %s", e.Err)
}

func (e *PreprocessError) Unwrap() error {
	return e.Err
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

const kibibyte uint = 1024

// MinChunkSize is the smallest chunk size that the default chunk size policy
// will choose. It keeps huge files from being read in pathologically many
// tiny slices.
const MinChunkSize uint = 200 * kibibyte

// chunksPerSource is the number of slices the default policy aims to split a
// Source into.
const chunksPerSource uint = 1000

// Source is a sized binary blob that can be read in arbitrary ranges without
// loading it entirely into memory.
type Source interface {
	io.ReaderAt
	// Name identifies the Source in logs and errors.
	Name() string
	// Size is the total number of bytes in the Source.
	Size() uint
}

// ChunkStream is implemented by every stage of the pipeline. Next returns the
// next chunk of the stream, or io.EOF once the stream has ended.
type ChunkStream interface {
	Next(ctx context.Context) ([]byte, error)
}

// HeaderFunc generates framing blocks that are emitted before any data from
// the Source itself.
type HeaderFunc func(ctx context.Context, src Source) ([][]byte, error)

// SourceOption configures a ChunkedSource.
type SourceOption func(*ChunkedSource)

// WithChunkSize overrides the default chunk size policy. Sizes of zero are
// ignored.
func WithChunkSize(size uint) SourceOption {
	return func(c *ChunkedSource) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithHeaders registers a generator for header blocks. Generation starts
// immediately and the source serves no pulls until it has finished.
func WithHeaders(generate HeaderFunc) SourceOption {
	return func(c *ChunkedSource) {
		c.generate = generate
	}
}

// WithReadObserver registers a function that is called with the number of
// bytes consumed from the Source after every successful read. Header blocks
// are not reported.
func WithReadObserver(observe func(n uint)) SourceOption {
	return func(c *ChunkedSource) {
		c.observe = observe
	}
}

// DefaultChunkSize computes the chunk size used for a Source of the given size
// when no explicit size is configured.
func DefaultChunkSize(size uint) uint {
	chunkSize := size / chunksPerSource
	if chunkSize < MinChunkSize {
		return MinChunkSize
	}
	return chunkSize
}

// headerResult carries the outcome of header generation.
type headerResult struct {
	blocks [][]byte
	err    error
}

// readResult carries the outcome of one asynchronous ReadAt call.
type readResult struct {
	data []byte
	n    int
	err  error
}

// ChunkedSource reads a Source sequentially in fixed-size slices. It is a pull
// based producer: nothing is read until Next is called, and at most one call
// to Next may be outstanding at a time.
//
// ChunkedSource starts out not ready when header generation is configured. A
// pull issued in that state waits for generation to finish and is then served
// normally, header blocks first.
type ChunkedSource struct {
	source    Source
	name      string
	size      uint
	offset    uint
	chunkSize uint
	pulls     uint

	generate HeaderFunc
	observe  func(uint)

	ready   chan headerResult
	isReady bool
	headers [][]byte
	cancel  context.CancelFunc

	busy atomic.Bool
	err  error
}

// NewChunkedSource creates a ChunkedSource that reads src. The Source is only
// borrowed; it is never closed by the ChunkedSource.
func NewChunkedSource(src Source, opts ...SourceOption) *ChunkedSource {
	c := &ChunkedSource{
		source:    src,
		name:      src.Name(),
		size:      src.Size(),
		chunkSize: DefaultChunkSize(src.Size()),
		ready:     make(chan headerResult, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.generate == nil {
		c.ready <- headerResult{}
		return c
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func(generate HeaderFunc) {
		blocks, err := generate(ctx, src)
		c.ready <- headerResult{blocks: blocks, err: err}
	}(c.generate)
	return c
}

// Name returns the name of the underlying Source.
func (c *ChunkedSource) Name() string {
	return c.name
}

// Size returns the size of the underlying Source.
func (c *ChunkedSource) Size() uint {
	return c.size
}

// ChunkSize returns the size of the slices read from the Source.
func (c *ChunkedSource) ChunkSize() uint {
	return c.chunkSize
}

// Offset returns the current read position within the Source.
func (c *ChunkedSource) Offset() uint {
	return c.offset
}

// Pulls returns how many reads have been issued against the Source.
func (c *ChunkedSource) Pulls() uint {
	return c.pulls
}

// Next returns the next chunk of the Source. Header blocks come first, then
// the Source's bytes in order. It returns io.EOF when the whole Source has
// been read, at which point the Source reference is released.
//
// Cancelling ctx closes the ChunkedSource; the read in flight, if any, is
// discarded.
func (c *ChunkedSource) Next(ctx context.Context) ([]byte, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s: %w", c.name, ErrConcurrentPull)
	}
	defer c.busy.Store(false)

	if c.err != nil {
		return nil, c.err
	}
	if !c.isReady {
		// This call holds the single pending slot until the source is ready.
		select {
		case res := <-c.ready:
			c.isReady = true
			if res.err != nil {
				c.err = fmt.Errorf("generating headers for %s: %w", c.name, res.err)
				c.release()
				return nil, c.err
			}
			c.headers = res.blocks
		case <-ctx.Done():
			c.Close()
			return nil, ctx.Err()
		}
	}
	if len(c.headers) > 0 {
		block := c.headers[0]
		c.headers = c.headers[1:]
		return block, nil
	}
	if c.offset >= c.size {
		c.err = io.EOF
		c.release()
		return nil, io.EOF
	}

	start := c.offset
	end := start + c.chunkSize
	if end > c.size {
		end = c.size
	}
	results := make(chan readResult, 1)
	go func(src Source) {
		data := make([]byte, end-start)
		n, err := src.ReadAt(data, int64(start))
		results <- readResult{data: data, n: n, err: err}
	}(c.source)
	c.pulls++

	select {
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	case res := <-results:
		if res.n < len(res.data) || (res.err != nil && !errors.Is(res.err, io.EOF)) {
			err := res.err
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			c.err = &ReadError{Source: c.name, Offset: start, Err: err}
			c.release()
			return nil, c.err
		}
		c.offset += uint(res.n)
		if c.observe != nil {
			c.observe(uint(res.n))
		}
		return res.data[:res.n], nil
	}
}

// Close stops the ChunkedSource. Later pulls return ErrClosed unless the
// stream had already ended. Close must not be called concurrently with Next.
func (c *ChunkedSource) Close() error {
	if c.err == nil {
		c.err = ErrClosed
	}
	c.release()
	return nil
}

// release drops the reference to the Source and stops header generation.
func (c *ChunkedSource) release() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.source = nil
	c.headers = nil
}

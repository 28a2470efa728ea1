package pipeline

import (
	"context"
	"encoding/hex"
	"hash"
	"time"

	"github.com/zeebo/blake3"
)

// Count represents basic statistics about the data that has passed through a
// Counter. It records the total Bytes of data that it has seen, as well as
// the number of chunks and the duration since the Counter was started.
type Count struct {
	Bytes   uint
	Chunks  uint
	Elapsed time.Duration
}

// Rate returns the rate of data flow in bytes per second
func (c Count) Rate() float64 {
	if c.Elapsed <= 0 {
		return 0
	}
	return float64(c.Bytes) / c.Elapsed.Seconds()
}

// RateKiBPS returns the rate of data flow in kibibytes per second
func (c Count) RateKiBPS() float64 {
	return c.Rate() / 1024
}

// RateMiBPS returns the rate of data flow in mebibytes per second
func (c Count) RateMiBPS() float64 {
	return c.RateKiBPS() / 1024
}

// Counter wraps a ChunkStream and keeps a Count and a BLAKE3 digest of every
// chunk that passes through it.
type Counter struct {
	stream  ChunkStream
	started time.Time
	current Count
	digest  hash.Hash
}

// NewCounter starts counting the chunks pulled from stream.
func NewCounter(stream ChunkStream) *Counter {
	return &Counter{
		stream:  stream,
		started: time.Now(),
		digest:  blake3.New(),
	}
}

func (c *Counter) Next(ctx context.Context) ([]byte, error) {
	chunk, err := c.stream.Next(ctx)
	if err != nil {
		c.current.Elapsed = time.Since(c.started)
		return nil, err
	}
	c.current.Bytes += uint(len(chunk))
	c.current.Chunks++
	c.current.Elapsed = time.Since(c.started)
	c.digest.Write(chunk)
	return chunk, nil
}

// Count returns the statistics collected so far.
func (c *Counter) Count() Count {
	return c.current
}

// Digest returns the hex encoded BLAKE3 hash of the bytes seen so far.
func (c *Counter) Digest() string {
	return hex.EncodeToString(c.digest.Sum(nil))
}

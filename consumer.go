package swiftlystream

import "sync"

// DefaultChannelBuffer is the number of chunks a ChannelConsumer holds before
// Deliver blocks.
const DefaultChannelBuffer = 64

// Consumer is the engine that decoded chunks are pushed into.
//
// Deliver is called once per decoded chunk, in stream order, with the chunk
// and its length. The chunk must not be retained after Deliver returns,
// since the pipeline does not copy it. Done is called once every Source has
// been ingested.
type Consumer interface {
	Deliver(chunk []byte, length int)
	Done()
}

// ConsumerFuncs adapts a pair of functions to the Consumer interface. Either
// may be nil.
type ConsumerFuncs struct {
	OnChunk func(chunk []byte, length int)
	OnDone  func()
}

func (c ConsumerFuncs) Deliver(chunk []byte, length int) {
	if c.OnChunk != nil {
		c.OnChunk(chunk, length)
	}
}

func (c ConsumerFuncs) Done() {
	if c.OnDone != nil {
		c.OnDone()
	}
}

// ChannelConsumer copies every delivered chunk onto a buffered channel and
// closes the channel when ingestion is done. Deliver blocks while the
// channel is full, so a slow reader slows the pipeline down rather than
// letting chunks pile up.
type ChannelConsumer struct {
	chunks chan []byte
	once   sync.Once
}

// NewChannelConsumer creates a ChannelConsumer whose channel holds up to
// buffer chunks. A buffer of zero or less uses DefaultChannelBuffer.
func NewChannelConsumer(buffer int) *ChannelConsumer {
	if buffer <= 0 {
		buffer = DefaultChannelBuffer
	}
	return &ChannelConsumer{chunks: make(chan []byte, buffer)}
}

// Chunks returns the channel that delivered chunks are sent on.
func (c *ChannelConsumer) Chunks() <-chan []byte {
	return c.chunks
}

func (c *ChannelConsumer) Deliver(chunk []byte, length int) {
	// the reader may hold on to chunks long after Deliver returns
	c.chunks <- append([]byte(nil), chunk[:length]...)
}

func (c *ChannelConsumer) Done() {
	c.once.Do(func() {
		close(c.chunks)
	})
}

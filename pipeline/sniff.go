package pipeline

import (
	"context"
	"io"
)

// SniffOption configures a Sniffer.
type SniffOption func(*Sniffer)

// WithFormats sets the compressed formats the Sniffer recognizes.
func WithFormats(formats ...Format) SniffOption {
	return func(s *Sniffer) {
		if len(formats) > 0 {
			s.formats = formats
		}
	}
}

// WithDecodeOptions passes options through to the DecodeTransform the
// Sniffer commits to.
func WithDecodeOptions(opts ...DecodeOption) SniffOption {
	return func(s *Sniffer) {
		s.decodeOpts = append(s.decodeOpts, opts...)
	}
}

type sniffPhase uint8

const (
	phaseSniffing sniffPhase = iota
	phaseCommitted
)

// Sniffer decides how a stream is encoded by looking at its first few bytes
// and then decodes the whole stream accordingly.
//
// While sniffing, chunks pulled from the wrapped stream are held back until
// enough bytes have been seen to classify the stream. The Sniffer then
// commits to a single DecodeTransform, which replays the held chunks before
// pulling anything else. The decision is never revisited.
type Sniffer struct {
	stream     ChunkStream
	name       string
	formats    []Format
	prefixLen  int
	decodeOpts []DecodeOption

	phase     sniffPhase
	held      [][]byte
	seen      int
	format    Format
	transform *DecodeTransform
}

// NewSniffer wraps stream. If stream has a Name method, it is used to label
// decode errors.
func NewSniffer(stream ChunkStream, opts ...SniffOption) *Sniffer {
	s := &Sniffer{
		stream:  stream,
		name:    "stream",
		formats: DefaultFormats,
	}
	if named, ok := stream.(interface{ Name() string }); ok {
		s.name = named.Name()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.prefixLen = PrefixLen(s.formats...)
	return s
}

// Format returns the format the stream was classified as. The second result
// is false until classification has happened.
func (s *Sniffer) Format() (Format, bool) {
	return s.format, s.phase == phaseCommitted
}

// Next returns the next decoded chunk, classifying the stream first if that
// has not happened yet.
func (s *Sniffer) Next(ctx context.Context) ([]byte, error) {
	if s.phase == phaseSniffing {
		if err := s.sniff(ctx); err != nil {
			return nil, err
		}
	}
	return s.transform.Next(ctx)
}

// sniff pulls until the prefix is available or the stream ends, then commits.
func (s *Sniffer) sniff(ctx context.Context) error {
	var rest ChunkStream = s.stream
	for s.seen < s.prefixLen {
		chunk, err := s.stream.Next(ctx)
		if err == io.EOF {
			rest = exhausted{}
			break
		}
		if err != nil {
			return err
		}
		s.held = append(s.held, chunk)
		s.seen += len(chunk)
	}

	prefix := make([]byte, 0, s.prefixLen)
	for _, chunk := range s.held {
		prefix = append(prefix, chunk...)
		if len(prefix) >= s.prefixLen {
			break
		}
	}
	s.format = Detect(prefix, s.formats...)
	s.transform = NewDecodeTransform(s.name, s.format, s.held, rest, s.decodeOpts...)
	s.held = nil
	s.phase = phaseCommitted
	return nil
}

// Close releases the decoder, if one was created.
func (s *Sniffer) Close() error {
	if s.transform != nil {
		return s.transform.Close()
	}
	s.held = nil
	return nil
}

// exhausted is a stream that has already ended.
type exhausted struct{}

func (exhausted) Next(context.Context) ([]byte, error) {
	return nil, io.EOF
}

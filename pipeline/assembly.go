package pipeline

import (
	"bytes"
	"encoding"
	"fmt"
	"io"

	"github.com/mattetti/filebuffer"
)

// Artifact is the single in-memory object produced by an AssemblySink. It
// can be read like a file and also serves as a Source.
type Artifact struct {
	*filebuffer.Buffer
	name      string
	mediaType string
	size      uint
}

// Name returns the name the sink was configured with, if any.
func (a *Artifact) Name() string {
	return a.name
}

// MediaType returns the media type the sink was configured with. It is an
// opaque tag and is never validated.
func (a *Artifact) MediaType() string {
	return a.mediaType
}

// Size returns the number of bytes in the Artifact.
func (a *Artifact) Size() uint {
	return a.size
}

// PreprocessFunc transforms a chunk before the AssemblySink buffers it.
// Returning an empty slice drops the chunk.
type PreprocessFunc func(chunk []byte) ([]byte, error)

// SinkOption configures an AssemblySink.
type SinkOption func(*AssemblySink)

// WithMediaType sets the media type recorded on produced Artifacts.
func WithMediaType(mediaType string) SinkOption {
	return func(s *AssemblySink) {
		s.mediaType = mediaType
	}
}

// WithArtifactName sets the name recorded on produced Artifacts.
func WithArtifactName(name string) SinkOption {
	return func(s *AssemblySink) {
		s.name = name
	}
}

// WithPreprocess installs a hook that runs on every chunk before it is
// buffered.
func WithPreprocess(preprocess PreprocessFunc) SinkOption {
	return func(s *AssemblySink) {
		if preprocess != nil {
			s.preprocess = preprocess
		}
	}
}

// WithProgress registers a listener for the running byte count, which is
// reported after every accepted chunk, including one that preprocessing
// emptied.
func WithProgress(listener func(received uint)) SinkOption {
	return func(s *AssemblySink) {
		s.progress = append(s.progress, listener)
	}
}

// WithArtifactListener registers a listener that is told about every
// completed Artifact, after the completion callback.
func WithArtifactListener(listener func(*Artifact)) SinkOption {
	return func(s *AssemblySink) {
		s.listeners = append(s.listeners, listener)
	}
}

func passthrough(chunk []byte) ([]byte, error) {
	return chunk, nil
}

// AssemblySink collects chunks pushed into it and joins them into one
// Artifact when Finish is called. After an Artifact has been produced the
// sink is empty again and can be reused.
//
// AssemblySink is not safe for concurrent use.
type AssemblySink struct {
	buffers  [][]byte
	received uint

	name       string
	mediaType  string
	preprocess PreprocessFunc
	onComplete func(*Artifact)
	progress   []func(uint)
	listeners  []func(*Artifact)
}

// NewAssemblySink creates a sink that hands every completed Artifact to
// onComplete. onComplete may be nil.
func NewAssemblySink(onComplete func(*Artifact), opts ...SinkOption) *AssemblySink {
	s := &AssemblySink{
		onComplete: onComplete,
		preprocess: passthrough,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WriteChunk buffers a single chunk. Byte slices, strings, *bytes.Buffer,
// encoding.BinaryMarshaler values and io.Readers are accepted. If the
// preprocess hook fails, a *PreprocessError is returned and nothing is
// buffered.
func (s *AssemblySink) WriteChunk(chunk any) error {
	data, err := toBytes(chunk)
	if err != nil {
		return err
	}
	processed, err := s.preprocess(data)
	if err != nil {
		return &PreprocessError{Err: err}
	}
	if len(processed) > 0 {
		s.buffers = append(s.buffers, append([]byte(nil), processed...))
		s.received += uint(len(processed))
	}
	for _, listener := range s.progress {
		listener(s.received)
	}
	return nil
}

// Write implements io.Writer. Each call buffers one chunk.
func (s *AssemblySink) Write(p []byte) (int, error) {
	if err := s.WriteChunk(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Received returns the number of bytes buffered since the last Artifact.
func (s *AssemblySink) Received() uint {
	return s.received
}

// Finish joins the buffered chunks into an Artifact, hands it to the
// completion callback and listeners, and resets the sink. If nothing has been
// buffered, no Artifact is produced and Finish returns nil.
func (s *AssemblySink) Finish() *Artifact {
	if len(s.buffers) == 0 {
		s.reset()
		return nil
	}
	data := make([]byte, 0, s.received)
	for _, buffer := range s.buffers {
		data = append(data, buffer...)
	}
	artifact := &Artifact{
		Buffer:    filebuffer.New(data),
		name:      s.name,
		mediaType: s.mediaType,
		size:      uint(len(data)),
	}
	s.reset()
	if s.onComplete != nil {
		s.onComplete(artifact)
	}
	for _, listener := range s.listeners {
		listener(artifact)
	}
	return artifact
}

// Close finishes the sink so that it can be used as an io.WriteCloser.
func (s *AssemblySink) Close() error {
	s.Finish()
	return nil
}

func (s *AssemblySink) reset() {
	s.buffers = nil
	s.received = 0
}

// toBytes coerces a chunk into a byte slice.
func toBytes(chunk any) ([]byte, error) {
	switch value := chunk.(type) {
	case []byte:
		return value, nil
	case string:
		return []byte(value), nil
	case *bytes.Buffer:
		return value.Bytes(), nil
	case encoding.BinaryMarshaler:
		data, err := value.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotBinary, err)
		}
		return data, nil
	case io.Reader:
		data, err := io.ReadAll(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotBinary, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotBinary, chunk)
	}
}

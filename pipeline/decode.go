package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// DefaultOutputSize is the largest chunk a compressed DecodeTransform emits
// unless configured otherwise.
const DefaultOutputSize = 64 * kibibyte

// DecodeOption configures a DecodeTransform.
type DecodeOption func(*DecodeTransform)

// WithOutputSize sets the largest chunk a compressed DecodeTransform emits.
// Plain transforms forward chunks unchanged and ignore it.
func WithOutputSize(size uint) DecodeOption {
	return func(d *DecodeTransform) {
		if size > 0 {
			d.outputSize = size
		}
	}
}

// DecodeTransform turns a stream of raw chunks into a stream of decoded
// chunks. Which strategy it applies is fixed by its Format: FormatPlain
// forwards every chunk as is, the compressed formats decompress the stream.
// Either way the caller sees the same Next and Close operations.
//
// Compressed output chunks do not line up with input chunks. The decoder may
// pull several input chunks before it can emit anything.
type DecodeTransform struct {
	name       string
	format     Format
	input      *chunkReader
	outputSize uint

	decoder io.Reader
	closer  func() error
	// verify runs once the decoder reports the end of its input and fails
	// streams the decoder accepted although they end early.
	verify func() error
	err    error
}

// NewDecodeTransform creates a transform for format. The replay chunks are
// decoded before anything is pulled from stream.
func NewDecodeTransform(name string, format Format, replay [][]byte, stream ChunkStream, opts ...DecodeOption) *DecodeTransform {
	d := &DecodeTransform{
		name:       name,
		format:     format,
		input:      &chunkReader{stream: stream, pending: replay},
		outputSize: DefaultOutputSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Format returns the strategy the transform applies.
func (d *DecodeTransform) Format() Format {
	return d.format
}

// Next returns the next decoded chunk, or io.EOF once the stream has been
// fully decoded and any buffered output has been flushed.
func (d *DecodeTransform) Next(ctx context.Context) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.input.ctx = ctx
	if d.format == FormatPlain {
		chunk, err := d.input.next()
		if err != nil {
			d.err = err
			return nil, err
		}
		return chunk, nil
	}

	if d.decoder == nil {
		if err := d.open(); err != nil {
			return nil, d.fail(err)
		}
	}
	output := make([]byte, d.outputSize)
	var (
		n   int
		err error
	)
	for n < len(output) && err == nil {
		var read int
		read, err = d.decoder.Read(output[n:])
		n += read
	}
	switch {
	case err == nil:
		return output, nil
	case err == io.EOF && d.verified():
		d.err = io.EOF
		d.closeDecoder()
		if n == 0 {
			return nil, io.EOF
		}
		return output[:n], nil
	default:
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		failure := d.fail(err)
		if n == 0 {
			return nil, failure
		}
		// Hand over what was decoded before the failure; the error follows
		// on the next call.
		return output[:n], nil
	}
}

// open creates the decompressor. Creating it reads the format's header, so
// it happens on the first pull rather than at construction.
func (d *DecodeTransform) open() error {
	switch d.format {
	case FormatGzip:
		reader, err := gzip.NewReader(d.input)
		if err != nil {
			return err
		}
		reader.Multistream(false)
		d.decoder = &gzipMembers{input: d.input, reader: reader}
		d.closer = reader.Close
	case FormatZstd:
		reader, err := zstd.NewReader(d.input, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return err
		}
		d.decoder = reader
		d.closer = func() error {
			reader.Close()
			return nil
		}
	case FormatLZ4:
		frames := &lz4Frames{src: d.input, want: 4}
		d.decoder = lz4.NewReader(frames)
		d.verify = frames.complete
	default:
		return fmt.Errorf("unsupported format %s", d.format)
	}
	return nil
}

func (d *DecodeTransform) verified() bool {
	return d.verify == nil || d.verify() == nil
}

// fail makes err terminal. Errors that came from the input stream are kept
// as they are; everything else is a decode error.
func (d *DecodeTransform) fail(err error) error {
	if d.input.err != nil && d.input.err != io.EOF {
		d.err = d.input.err
	} else {
		d.err = &DecodeError{Source: d.name, Format: d.format, Err: err}
	}
	d.closeDecoder()
	return d.err
}

func (d *DecodeTransform) closeDecoder() {
	if d.closer != nil {
		d.closer()
		d.closer = nil
	}
}

// Close releases the decompressor. Later calls to Next return ErrClosed
// unless the stream had already ended.
func (d *DecodeTransform) Close() error {
	if d.err == nil {
		d.err = ErrClosed
	}
	d.closeDecoder()
	d.input.pending = nil
	return nil
}

// chunkReader adapts a ChunkStream to io.Reader so that decompressors can
// pull input in whatever amounts they need.
type chunkReader struct {
	ctx     context.Context
	stream  ChunkStream
	pending [][]byte
	current []byte
	err     error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := r.fill(); err != nil {
		return 0, err
	}
	n := copy(p, r.current)
	r.current = r.current[n:]
	return n, nil
}

// ReadByte lets the gzip reader consume input directly. Without it the reader
// buffers ahead, and bytes following a gzip member would be lost.
func (r *chunkReader) ReadByte() (byte, error) {
	if err := r.fill(); err != nil {
		return 0, err
	}
	b := r.current[0]
	r.current = r.current[1:]
	return b, nil
}

func (r *chunkReader) fill() error {
	for len(r.current) == 0 {
		if len(r.pending) > 0 {
			r.current = r.pending[0]
			r.pending = r.pending[1:]
			continue
		}
		if r.err != nil {
			return r.err
		}
		r.current, r.err = r.stream.Next(r.ctx)
	}
	return nil
}

// startsWith reports whether the unread input begins with prefix, without
// consuming it.
func (r *chunkReader) startsWith(prefix []byte) (bool, error) {
	peeked := make([]byte, len(prefix))
	n, err := io.ReadFull(r, peeked)
	if n > 0 {
		if len(r.current) > 0 {
			r.pending = append([][]byte{r.current}, r.pending...)
		}
		r.current = peeked[:n]
	}
	switch err {
	case nil:
		return bytes.Equal(peeked, prefix), nil
	case io.EOF, io.ErrUnexpectedEOF:
		return false, nil
	default:
		return false, err
	}
}

// next returns the next whole input chunk.
func (r *chunkReader) next() ([]byte, error) {
	if len(r.current) > 0 {
		chunk := r.current
		r.current = nil
		return chunk, nil
	}
	if len(r.pending) > 0 {
		chunk := r.pending[0]
		r.pending = r.pending[1:]
		return chunk, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	chunk, err := r.stream.Next(r.ctx)
	if err != nil {
		r.err = err
		return nil, err
	}
	return chunk, nil
}

// gzipMembers decodes gzip members one after another for as long as the input
// starts another member. Whatever follows the last member, typically zero
// padding, is read and discarded.
type gzipMembers struct {
	input  *chunkReader
	reader *gzip.Reader
}

func (g *gzipMembers) Read(p []byte) (int, error) {
	n, err := g.reader.Read(p)
	if err != io.EOF {
		return n, err
	}
	more, err := g.input.startsWith(FormatGzip.Magic())
	if err != nil {
		return n, err
	}
	if !more {
		if _, err := io.Copy(io.Discard, g.input); err != nil {
			return n, err
		}
		return n, io.EOF
	}
	if err := g.reader.Reset(g.input); err != nil {
		return n, err
	}
	g.reader.Multistream(false)
	return n, nil
}

const (
	lz4FrameMagic     = 0x184D2204
	lz4SkippableMagic = 0x184D2A50
	lz4SkippableMask  = 0xFFFFFFF0

	lz4BlockChecksum   = 0x10
	lz4ContentSize     = 0x08
	lz4ContentChecksum = 0x04
	lz4DictID          = 0x01
	lz4Uncompressed    = 0x80000000
)

type lz4Field int

const (
	lz4Magic lz4Field = iota
	lz4Descriptor
	lz4DescriptorTail
	lz4BlockSize
	lz4BlockData
	lz4Checksum
	lz4SkipSize
	lz4SkipData
	lz4Unknown
)

// lz4Frames follows the frame layout of the bytes the lz4 reader consumes.
// The reader treats a stream that stops right before a frame's content
// checksum as complete; lz4Frames notices because the frame is left open.
type lz4Frames struct {
	src   io.Reader
	field lz4Field
	want  int
	buf   []byte
	flags byte
}

func (f *lz4Frames) Read(p []byte) (int, error) {
	n, err := f.src.Read(p)
	f.observe(p[:n])
	return n, err
}

func (f *lz4Frames) observe(p []byte) {
	for len(p) > 0 && f.field != lz4Unknown {
		if f.field == lz4BlockData || f.field == lz4SkipData {
			skip := min(f.want, len(p))
			f.want -= skip
			p = p[skip:]
			if f.want == 0 {
				f.field, f.want = lz4Magic, 4
			}
			continue
		}
		take := min(f.want-len(f.buf), len(p))
		f.buf = append(f.buf, p[:take]...)
		p = p[take:]
		if len(f.buf) == f.want {
			f.advance()
		}
	}
}

func (f *lz4Frames) advance() {
	field := f.buf
	f.buf = f.buf[:0]
	switch f.field {
	case lz4Magic:
		magic := binary.LittleEndian.Uint32(field)
		switch {
		case magic == lz4FrameMagic:
			f.field, f.want = lz4Descriptor, 2
		case magic&lz4SkippableMask == lz4SkippableMagic:
			f.field, f.want = lz4SkipSize, 4
		default:
			f.field = lz4Unknown
		}
	case lz4Descriptor:
		f.flags = field[0]
		tail := 1
		if f.flags&lz4ContentSize != 0 {
			tail += 8
		}
		if f.flags&lz4DictID != 0 {
			tail += 4
		}
		f.field, f.want = lz4DescriptorTail, tail
	case lz4DescriptorTail:
		f.field, f.want = lz4BlockSize, 4
	case lz4BlockSize:
		size := int(binary.LittleEndian.Uint32(field) &^ lz4Uncompressed)
		switch {
		case size > 0:
			if f.flags&lz4BlockChecksum != 0 {
				size += 4
			}
			f.field, f.want = lz4BlockData, size
		case f.flags&lz4ContentChecksum != 0:
			f.field, f.want = lz4Checksum, 4
		default:
			f.field, f.want = lz4Magic, 4
		}
	case lz4Checksum:
		f.field, f.want = lz4Magic, 4
	case lz4SkipSize:
		f.want = int(binary.LittleEndian.Uint32(field))
		if f.want == 0 {
			f.field, f.want = lz4Magic, 4
		} else {
			f.field = lz4SkipData
		}
	}
}

// complete returns io.ErrUnexpectedEOF unless the consumed input ended on a
// frame boundary.
func (f *lz4Frames) complete() error {
	if f.field == lz4Unknown || (f.field == lz4Magic && len(f.buf) == 0) {
		return nil
	}
	return io.ErrUnexpectedEOF
}

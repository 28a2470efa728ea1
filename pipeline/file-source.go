package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattetti/filebuffer"
)

// FileSource is a Source backed by a file on disk.
type FileSource struct {
	file *os.File
	name string
	size uint
}

// NewFileSource wraps an open file. The caller keeps ownership of the file.
func NewFileSource(file *os.File) (*FileSource, error) {
	if file == nil {
		return nil, errors.New("unable to read from a nil file")
	}
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get stats about local data file %s: %w", file.Name(), err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", file.Name())
	}
	return &FileSource{
		file: file,
		name: filepath.Base(file.Name()),
		size: uint(info.Size()),
	}, nil
}

// OpenFileSource opens the file at path as a Source. Close the returned
// FileSource once it is no longer needed.
func OpenFileSource(path string) (*FileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := NewFileSource(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return src, nil
}

func (f *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

func (f *FileSource) Name() string {
	return f.name
}

func (f *FileSource) Size() uint {
	return f.size
}

// Close closes the underlying file.
func (f *FileSource) Close() error {
	return f.file.Close()
}

// BufferSource is an in-memory Source.
type BufferSource struct {
	buffer *filebuffer.Buffer
	name   string
	size   uint
}

// NewBufferSource creates a Source over data. The slice is not copied and must
// not be modified while the Source is in use.
func NewBufferSource(name string, data []byte) *BufferSource {
	return &BufferSource{
		buffer: filebuffer.New(data),
		name:   name,
		size:   uint(len(data)),
	}
}

func (b *BufferSource) ReadAt(p []byte, off int64) (int, error) {
	return b.buffer.ReadAt(p, off)
}

func (b *BufferSource) Name() string {
	return b.name
}

func (b *BufferSource) Size() uint {
	return b.size
}

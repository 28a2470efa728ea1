package swiftlystream

import (
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/ibmjstart/swiftlystream/auth"
	"github.com/ibmjstart/swiftlystream/pipeline"
)

// ObjectSource reads an object held in object storage as a Source. Every
// ReadAt becomes a ranged request, so only the slices the pipeline asks for
// are ever downloaded.
type ObjectSource struct {
	connection auth.Destination
	container  string
	objectName string
	size       uint
}

// NewObjectSource looks up the size of objectName and returns a Source over
// it.
func NewObjectSource(connection auth.Destination, container, objectName string) (*ObjectSource, error) {
	if container == "" || objectName == "" {
		return nil, errors.New("both a container and an object name are required")
	}
	size, err := connection.ObjectSize(container, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s/%s: %w", container, objectName, err)
	}
	return &ObjectSource{
		connection: connection,
		container:  container,
		objectName: objectName,
		size:       size,
	}, nil
}

// ObjectSources returns a Source for every named object in container, in the
// order given. When no names are given, every object in the container is
// used in the order the destination lists them.
func ObjectSources(connection auth.Destination, container string, objectNames ...string) ([]pipeline.Source, error) {
	if len(objectNames) == 0 {
		names, err := connection.FileNames(container)
		if err != nil {
			return nil, fmt.Errorf("failed to list container %s: %w", container, err)
		}
		objectNames = names
	}
	sources := make([]pipeline.Source, 0, len(objectNames))
	for _, name := range objectNames {
		source, err := NewObjectSource(connection, container, name)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// ReadAt reads len(p) bytes of the object starting at off.
func (o *ObjectSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if uint(off) >= o.size {
		return 0, io.EOF
	}
	length := uint(len(p))
	if remaining := o.size - uint(off); length > remaining {
		length = remaining
	}
	body, err := o.connection.ReadRange(o.container, o.objectName, uint(off), length)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	n, err := io.ReadFull(body, p[:length])
	if err != nil {
		return n, err
	}
	if length < uint(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// Name returns the base name of the object.
func (o *ObjectSource) Name() string {
	return path.Base(o.objectName)
}

func (o *ObjectSource) Size() uint {
	return o.size
}

// Ensure that ObjectSource implements the Source interface at compile-time
var _ pipeline.Source = &ObjectSource{}

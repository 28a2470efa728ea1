package mock

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ibmjstart/swiftlystream/auth"
)

// Object is an object held in memory by a BufferDestination.
type Object struct {
	Contents    []byte
	Hash        string
	ContentType string
}

// closableBuffer collects the data of an object being created and stores it
// in the destination when closed.
type closableBuffer struct {
	contents    bytes.Buffer
	destination *BufferDestination
	container   string
	objectName  string
	hash        string
	contentType string
}

func (c *closableBuffer) Close() error {
	c.destination.Put(c.container, c.objectName, c.contents.Bytes())
	c.destination.mutex.Lock()
	defer c.destination.mutex.Unlock()
	object := c.destination.Containers[c.container][c.objectName]
	object.Hash = c.hash
	object.ContentType = c.contentType
	return nil
}

func (c *closableBuffer) Write(p []byte) (int, error) {
	return c.contents.Write(p)
}

// BufferDestination implements the Destination and keeps the observed
// containers and objects in memory for later retrieval and testing. It is
// safe for concurrent use.
type BufferDestination struct {
	mutex      sync.Mutex
	Containers map[string]map[string]*Object
	// RangeReads counts the calls made to ReadRange.
	RangeReads int
}

// NewBufferDestination creates a new instance of BufferDestination
func NewBufferDestination() *BufferDestination {
	return &BufferDestination{Containers: make(map[string]map[string]*Object)}
}

// Put stores data as an object, replacing any object with the same name.
func (b *BufferDestination) Put(container, objectName string, data []byte) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	objects, exists := b.Containers[container]
	if !exists {
		objects = make(map[string]*Object)
		b.Containers[container] = objects
	}
	objects[objectName] = &Object{Contents: append([]byte(nil), data...)}
}

// Get returns a stored object, or nil when there is none.
func (b *BufferDestination) Get(container, objectName string) *Object {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.Containers[container][objectName]
}

func (b *BufferDestination) lookup(container, objectName string) (*Object, error) {
	object, exists := b.Containers[container][objectName]
	if !exists {
		return nil, fmt.Errorf("object %s/%s not found", container, objectName)
	}
	return object, nil
}

// CreateFile returns a writer whose contents are stored under objectName once
// it is closed.
func (b *BufferDestination) CreateFile(container, objectName string, checkHash bool, hash, contentType string) (io.WriteCloser, error) {
	return &closableBuffer{
		destination: b,
		container:   container,
		objectName:  objectName,
		hash:        hash,
		contentType: contentType,
	}, nil
}

// ObjectSize returns the length of a stored object.
func (b *BufferDestination) ObjectSize(container, objectName string) (uint, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	object, err := b.lookup(container, objectName)
	if err != nil {
		return 0, err
	}
	return uint(len(object.Contents)), nil
}

// ReadRange returns up to length bytes of a stored object starting at offset.
func (b *BufferDestination) ReadRange(container, objectName string, offset, length uint) (io.ReadCloser, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.RangeReads++
	object, err := b.lookup(container, objectName)
	if err != nil {
		return nil, err
	}
	size := uint(len(object.Contents))
	if offset > size {
		return nil, fmt.Errorf("range %d-%d not satisfiable for %s/%s", offset, offset+length, container, objectName)
	}
	end := offset + length
	if end > size {
		end = size
	}
	return io.NopCloser(bytes.NewReader(object.Contents[offset:end])), nil
}

// FileNames returns the sorted names of the objects in a container.
func (b *BufferDestination) FileNames(container string) ([]string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	names := make([]string, 0, len(b.Containers[container]))
	for name := range b.Containers[container] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AuthUrl returns the empty string.
func (b *BufferDestination) AuthUrl() string {
	return ""
}

// AuthToken returns the empty string.
func (b *BufferDestination) AuthToken() string {
	return ""
}

var _ auth.Destination = &BufferDestination{}

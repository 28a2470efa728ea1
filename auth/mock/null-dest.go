package mock

import (
	"bytes"
	"io"

	"github.com/ibmjstart/swiftlystream/auth"
)

// NullDestination implements the Destination interface but always returns
// the zero values of its methods.
type NullDestination struct{}

func NewNullDestination() NullDestination {
	return NullDestination{}
}

type nullWriteCloser uint8

func (n nullWriteCloser) Close() error {
	return nil
}

func (n nullWriteCloser) Write(p []byte) (int, error) {
	return len(p), nil
}

func (n NullDestination) CreateFile(container, objectName string, checkHash bool, hash, contentType string) (io.WriteCloser, error) {
	return nullWriteCloser(0), nil
}

// ObjectSize always returns zero.
func (n NullDestination) ObjectSize(container, objectName string) (uint, error) {
	return 0, nil
}

// ReadRange returns a reader with no data.
func (n NullDestination) ReadRange(container, objectName string, offset, length uint) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

// FileNames returns an empty string slice and nil.
func (n NullDestination) FileNames(container string) ([]string, error) {
	return []string{}, nil
}

// AuthUrl returns the empty string.
func (n NullDestination) AuthUrl() string {
	return ""
}

// AuthToken returns the empty string.
func (n NullDestination) AuthToken() string {
	return ""
}

// Check that NullDestination fulfills the destination interface at compile-time
var _ auth.Destination = NullDestination{}

package mock

import (
	"errors"
	"io"

	"github.com/ibmjstart/swiftlystream/auth"
)

// ErrDestination is returned by every method of ErrorDestination.
var ErrDestination = errors.New("mock: destination unavailable")

// ErrorDestination implements the Destination interface but always returns
// the error values of its methods.
type ErrorDestination struct{}

// NewErrorDestination creates a destination that always errors out.
func NewErrorDestination() ErrorDestination {
	return ErrorDestination{}
}

// CreateFile always returns an io.WriteCloser that does nothing and ErrDestination.
func (e ErrorDestination) CreateFile(container, objectName string, checkHash bool, hash, contentType string) (io.WriteCloser, error) {
	return nullWriteCloser(0), ErrDestination
}

// ObjectSize always returns ErrDestination.
func (e ErrorDestination) ObjectSize(container, objectName string) (uint, error) {
	return 0, ErrDestination
}

// ReadRange always returns ErrDestination.
func (e ErrorDestination) ReadRange(container, objectName string, offset, length uint) (io.ReadCloser, error) {
	return nil, ErrDestination
}

// FileNames returns an empty string slice and ErrDestination.
func (e ErrorDestination) FileNames(container string) ([]string, error) {
	return []string{}, ErrDestination
}

func (e ErrorDestination) AuthUrl() string {
	return ""
}

func (e ErrorDestination) AuthToken() string {
	return ""
}

// Ensure that ErrorDestination implements the Destination interface at compile-time
var _ auth.Destination = ErrorDestination{}

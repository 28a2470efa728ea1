package auth

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/ncw/swift"
)

// Destination defines an object store that sources can be read from and
// artifacts can be written to.
type Destination interface {
	CreateFile(container, objectName string, checkHash bool, hash, contentType string) (io.WriteCloser, error)
	ObjectSize(container, objectName string) (uint, error)
	ReadRange(container, objectName string, offset, length uint) (io.ReadCloser, error)
	FileNames(container string) ([]string, error)
	AuthUrl() string
	AuthToken() string
}

// SwiftDestination implements the Destination interface for OpenStack Swift.
type SwiftDestination struct {
	SwiftConnection *swift.Connection
}

// CreateFile begins the process of creating a file in the destination. Write data to
// the returned WriteCloser and then close it to upload the data. Be sure to handle errors.
func (s *SwiftDestination) CreateFile(container, objectName string, checkHash bool, hash, contentType string) (io.WriteCloser, error) {
	return s.SwiftConnection.ObjectCreate(container, objectName, checkHash, hash, contentType, nil)
}

// ObjectSize returns the size in bytes of an object already in the destination.
func (s *SwiftDestination) ObjectSize(container, objectName string) (uint, error) {
	info, _, err := s.SwiftConnection.Object(container, objectName)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s/%s: %w", container, objectName, err)
	}
	return uint(info.Bytes), nil
}

// ReadRange opens length bytes of an object starting at offset. The caller
// must close the returned reader.
func (s *SwiftDestination) ReadRange(container, objectName string, offset, length uint) (io.ReadCloser, error) {
	if length == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	headers := swift.Headers{
		"Range": fmt.Sprintf("bytes=%d-%d", offset, offset+length-1),
	}
	file, _, err := s.SwiftConnection.ObjectOpen(container, objectName, false, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s/%s at %d: %w", container, objectName, offset, err)
	}
	return file, nil
}

// FileNames returns a slice of the names of all files already in the destination container.
func (s *SwiftDestination) FileNames(container string) ([]string, error) {
	return s.SwiftConnection.ObjectNamesAll(container, nil)
}

// AuthUrl retrieves the Authentication URL for this destination.
func (s *SwiftDestination) AuthUrl() string {
	return s.SwiftConnection.StorageUrl
}

// AuthToken returns the authentication token for this destination.
func (s *SwiftDestination) AuthToken() string {
	return s.SwiftConnection.AuthToken
}

// Ensure that SwiftDestination implements the Destination interface at compile-time
var _ Destination = &SwiftDestination{}

// GetAuthVersion extracts the OpenStack auth version from the end of an authURL.
func getAuthVersion(url string) (int, error) {
	// Extract auth version from auth URL
	authVersionRegex, err := regexp.Compile(".*/v([0-9])[.0-9]*/?$")
	if err != nil {
		return 0, errors.New("unable to compile auth version regex")
	}
	matches := authVersionRegex.FindStringSubmatch(url)
	if len(matches) < 2 {
		return 0, fmt.Errorf("unable to extract an auth version number from url %s", url)
	}
	authVersionNumber, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("unable to convert version number %s to an integer", matches[1])
	}
	return authVersionNumber, nil
}

// Authenticate logs in to OpenStack object storage and returns a connection to the
// object store. The url MUST have its auth version at the end: https://example.com/v{1,2,3}
func Authenticate(username, apiKey, authURL, domain, tenant string) (Destination, error) {
	version, err := getAuthVersion(authURL)
	if err != nil {
		return &SwiftDestination{}, err
	}
	connection := swift.Connection{
		UserName:    username,
		ApiKey:      apiKey,
		AuthUrl:     authURL,
		Domain:      domain,
		Tenant:      tenant,
		AuthVersion: version,
	}
	err = connection.Authenticate()
	if err != nil {
		return &SwiftDestination{SwiftConnection: &connection}, fmt.Errorf("failed to authenticate with object storage: %w", err)
	}
	return &SwiftDestination{SwiftConnection: &connection}, nil
}

// AuthenticateWithToken builds a Destination from a storage URL and a token
// obtained elsewhere. No request is made until the Destination is used.
func AuthenticateWithToken(authToken, storageURL string) (Destination, error) {
	if authToken == "" || storageURL == "" {
		return &SwiftDestination{}, errors.New("both a token and a storage url are required")
	}
	connection := swift.Connection{
		AuthToken:  authToken,
		StorageUrl: storageURL,
	}
	return &SwiftDestination{SwiftConnection: &connection}, nil
}

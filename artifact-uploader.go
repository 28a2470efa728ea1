package swiftlystream

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ibmjstart/swiftlystream/auth"
	"github.com/ibmjstart/swiftlystream/pipeline"
)

const maxObjectSize uint = 1000 * 1000 * 1000 * 5

// ArtifactUploader stores assembled Artifacts as single objects in object
// storage. Its Complete method can be handed straight to an AssemblySink.
type ArtifactUploader struct {
	connection auth.Destination
	container  string
	objectName string
	mutex      sync.Mutex
	uploaded   []string
	err        error
}

// NewArtifactUploader creates an uploader that writes into container.
// Artifacts without a name of their own are stored as objectName.
func NewArtifactUploader(connection auth.Destination, container, objectName string) (*ArtifactUploader, error) {
	if container == "" {
		return nil, errors.New("a container is required to upload artifacts")
	}
	return &ArtifactUploader{
		connection: connection,
		container:  container,
		objectName: objectName,
	}, nil
}

// Upload stores artifact as a single object and verifies its md5 hash.
func (u *ArtifactUploader) Upload(artifact *pipeline.Artifact) error {
	name := artifact.Name()
	if name == "" {
		name = u.objectName
	}
	if name == "" {
		return errors.New("artifact has no name and no default object name is set")
	}
	data, err := readArtifact(artifact)
	if err != nil {
		return err
	}

	hash := hashSource(data)

	fileCreator, err := u.connection.CreateFile(u.container, name, true, hash, artifact.MediaType())
	if err != nil {
		return fmt.Errorf("failed to create object %s: %w", name, err)
	}

	_, err = fileCreator.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}

	err = fileCreator.Close()
	if err != nil {
		return fmt.Errorf("failed to close object creator: %w", err)
	}

	u.mutex.Lock()
	u.uploaded = append(u.uploaded, name)
	u.mutex.Unlock()
	return nil
}

// Complete uploads artifact and records the first error it sees, which Err
// reports later.
func (u *ArtifactUploader) Complete(artifact *pipeline.Artifact) {
	err := u.Upload(artifact)
	if err == nil {
		return
	}
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.err == nil {
		u.err = err
	}
}

// Err returns the first error recorded by Complete.
func (u *ArtifactUploader) Err() error {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.err
}

// Uploaded returns the names of the objects stored so far.
func (u *ArtifactUploader) Uploaded() []string {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return append([]string(nil), u.uploaded...)
}

func hashSource(sourceData []byte) string {
	hashBytes := md5.Sum(sourceData)
	hash := hex.EncodeToString(hashBytes[:])

	return hash
}

func readArtifact(artifact *pipeline.Artifact) ([]byte, error) {
	if artifact.Size() > maxObjectSize {
		return nil, fmt.Errorf("%s is too large to upload as a single object (max 5GB)", artifact.Name())
	}
	data := make([]byte, artifact.Size())
	_, err := io.ReadFull(io.NewSectionReader(artifact, 0, int64(artifact.Size())), data)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

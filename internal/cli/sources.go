package cli

import (
	"errors"

	"github.com/ibmjstart/swiftlystream"
	"github.com/ibmjstart/swiftlystream/auth"
	"github.com/ibmjstart/swiftlystream/pipeline"
)

// openSources resolves the command arguments into Sources. With a Swift
// container configured the arguments name objects in it, otherwise they are
// local paths. The returned closers must be closed once ingestion is over.
func openSources(args []string) ([]pipeline.Source, []interface{ Close() error }, error) {
	if cfg.Swift.Container != "" {
		destination, err := connect()
		if err != nil {
			return nil, nil, err
		}
		sources, err := swiftlystream.ObjectSources(destination, cfg.Swift.Container, args...)
		return sources, nil, err
	}
	if len(args) == 0 {
		return nil, nil, errors.New("no files given")
	}
	sources := make([]pipeline.Source, 0, len(args))
	closers := make([]interface{ Close() error }, 0, len(args))
	for _, path := range args {
		source, err := pipeline.OpenFileSource(path)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		sources = append(sources, source)
		closers = append(closers, source)
	}
	return sources, closers, nil
}

func connect() (auth.Destination, error) {
	destination, err := cfg.Swift.Connect()
	if err != nil {
		return nil, err
	}
	logger.Debug("connected to object storage", "storage_url", destination.AuthUrl())
	return destination, nil
}

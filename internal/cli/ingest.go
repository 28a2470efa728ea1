package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ibmjstart/swiftlystream"
	"github.com/ibmjstart/swiftlystream/pipeline"
)

var (
	outputPath string
	assembleTo string
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Stream files through the decoder and write out the result",
		Long: `Stream files through the decoder and write out the result.

Files are read one after another in the order given. Gzip compressed files are
decompressed on the fly. The decoded stream is written to --output, or with
--assemble-to it is collected and uploaded as a single object to the
configured object storage container.`,
		RunE: runIngest,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Where to write the decoded stream (- for stdout)")
	cmd.Flags().StringVar(&assembleTo, "assemble-to", "", "Upload the decoded stream as this object instead of writing it out")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	sources, closers, err := openSources(args)
	if err != nil {
		return err
	}
	defer closeAll(closers)

	writer, finish, err := openOutput(cmd)
	if err != nil {
		return err
	}

	opts, err := cfg.IngesterOptions(logger)
	if err != nil {
		return err
	}
	opts = append(opts, swiftlystream.WithProgress(func(progress pipeline.Progress) {
		logger.Info(progress.Message, "source", progress.Name, "percent", progress.Percent)
	}))
	consumer := swiftlystream.NewChannelConsumer(swiftlystream.DefaultChannelBuffer)
	ingester, err := swiftlystream.NewIngester(consumer, opts...)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(cmd.Context())
	group.Go(func() error {
		// the channel has to be closed even when ingestion stops early so
		// that the writer below can return
		defer consumer.Done()
		_, err := ingester.Ingest(ctx, sources)
		return err
	})
	group.Go(func() error {
		return writeChunks(consumer.Chunks(), writer)
	})

	err = group.Wait()
	var batchErr *swiftlystream.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return err
	}
	if finishErr := finish(); finishErr != nil {
		return finishErr
	}
	return err
}

// writeChunks writes every chunk received on chunks to w. It returns on the
// first write error, which cancels ingestion; the chunks still in flight are
// drained in the background so that the producer is never blocked.
func writeChunks(chunks <-chan []byte, w io.Writer) error {
	for chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			go func() {
				for range chunks {
				}
			}()
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

// openOutput returns the writer the decoded stream goes to and a function
// that completes the output once everything has been written.
func openOutput(cmd *cobra.Command) (io.Writer, func() error, error) {
	if assembleTo != "" {
		return openAssembly()
	}
	if outputPath == "-" {
		buffered := bufio.NewWriter(cmd.OutOrStdout())
		return buffered, buffered.Flush, nil
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, err
	}
	buffered := bufio.NewWriter(file)
	return buffered, func() error {
		if err := buffered.Flush(); err != nil {
			_ = file.Close()
			return err
		}
		return file.Close()
	}, nil
}

// openAssembly collects the decoded stream into an Artifact and uploads it
// to the configured container.
func openAssembly() (io.Writer, func() error, error) {
	if cfg.Swift.Container == "" {
		return nil, nil, errors.New("--assemble-to needs a swift container")
	}
	destination, err := connect()
	if err != nil {
		return nil, nil, err
	}
	uploader, err := swiftlystream.NewArtifactUploader(destination, cfg.Swift.Container, assembleTo)
	if err != nil {
		return nil, nil, err
	}
	sink := pipeline.NewAssemblySink(uploader.Complete,
		pipeline.WithMediaType(cfg.MediaType),
		pipeline.WithArtifactName(assembleTo),
		pipeline.WithArtifactListener(func(artifact *pipeline.Artifact) {
			logger.Info("artifact assembled", "name", artifact.Name(), "size", pipeline.FormatBytes(uint64(artifact.Size())))
		}),
	)
	return sink, func() error {
		if artifact := sink.Finish(); artifact == nil {
			logger.Warn("nothing to upload, the decoded stream was empty")
			return nil
		}
		if err := uploader.Err(); err != nil {
			return err
		}
		logger.Info("artifact uploaded", "container", cfg.Swift.Container, "objects", uploader.Uploaded())
		return nil
	}, nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibmjstart/swiftlystream/pipeline"
)

func newSniffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sniff [paths...]",
		Short: "Print the detected compression format of each file",
		RunE:  runSniff,
	}

	return cmd
}

func runSniff(cmd *cobra.Command, args []string) error {
	sources, closers, err := openSources(args)
	if err != nil {
		return err
	}
	defer closeAll(closers)

	formats, err := cfg.ParsedFormats()
	if err != nil {
		return err
	}
	for _, source := range sources {
		chunked := pipeline.NewChunkedSource(source)
		sniffer := pipeline.NewSniffer(chunked, pipeline.WithFormats(formats...))
		_, err := sniffer.Next(cmd.Context())
		format, decided := sniffer.Format()
		_ = sniffer.Close()
		_ = chunked.Close()
		if !decided {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %v\n", source.Name(), err)
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", source.Name(), format)
	}
	return nil
}

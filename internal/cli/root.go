package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibmjstart/swiftlystream/config"
)

var (
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
)

// NewRootCmd builds the swiftlystream command tree. The configuration named
// by SWIFTLYSTREAM_CONFIG supplies the flag defaults.
func NewRootCmd() (*cobra.Command, error) {
	loaded, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg = loaded

	rootCmd := &cobra.Command{
		Use:           "swiftlystream",
		Short:         "Stream large, possibly compressed files chunk by chunk",
		Long:          "Reads local files or object storage objects in bounded chunks, decompresses them when needed and writes the decoded stream out",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := cfg.ApplyFile(configPath, cmd.Flags()); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			configured, err := cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logger = configured
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file (overrides "+config.EnvVar+")")
	cfg.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newSniffCmd())
	return rootCmd, nil
}

// Execute runs the command tree until it finishes or ctx is cancelled.
func Execute(ctx context.Context) error {
	rootCmd, err := NewRootCmd()
	if err != nil {
		return err
	}
	return rootCmd.ExecuteContext(ctx)
}

// closeAll closes every source that holds an open file.
func closeAll(closers []interface{ Close() error }) {
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			logger.Warn("closing source", "error", err)
		}
	}
}

// Main runs the CLI with the process arguments and exits. An interrupt
// cancels the running command.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Execute(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

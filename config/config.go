// Package config provides configuration loading for swiftlystream.
//
// Configuration is loaded from a single YAML file named by the
// SWIFTLYSTREAM_CONFIG environment variable or the --config flag. Running
// without a file uses Default. Command-line flags registered with AddFlags
// override the values read from the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ibmjstart/swiftlystream"
	"github.com/ibmjstart/swiftlystream/auth"
	"github.com/ibmjstart/swiftlystream/pipeline"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "SWIFTLYSTREAM_CONFIG"

// Config is the configuration for an ingestion run.
type Config struct {
	// ChunkSize is the number of bytes read from a source per pull.
	// Zero derives it from each source's size.
	ChunkSize uint `yaml:"chunk_size"`

	// OutputSize caps the size of decompressed chunks.
	// Default: 65536
	OutputSize uint `yaml:"output_size"`

	// Formats lists the compression formats that are detected and decoded.
	// Values: gzip, zstd, lz4, or plain to pass every source through as is
	// Default: [gzip]
	Formats []string `yaml:"formats"`

	// OnError decides what happens when a source fails.
	// Values: "halt" (stop the batch), "skip" (continue with the next source)
	// Default: halt
	OnError string `yaml:"on_error"`

	// MediaType tags assembled artifacts.
	MediaType string `yaml:"media_type"`

	// StatusInterval is how often the batch status is logged. Zero disables it.
	StatusInterval string `yaml:"status_interval"`

	Log LogConfig `yaml:"log"`

	Swift SwiftConfig `yaml:"swift"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is "text" or "json".
	// Default: text
	Format string `yaml:"format"`
}

// SwiftConfig holds OpenStack Object Storage credentials. Either the
// username/api key pair or a token with its storage URL is used.
type SwiftConfig struct {
	AuthURL    string `yaml:"auth_url"`
	User       string `yaml:"user"`
	APIKey     string `yaml:"api_key"`
	Domain     string `yaml:"domain"`
	Tenant     string `yaml:"tenant"`
	Token      string `yaml:"token"`
	StorageURL string `yaml:"storage_url"`

	// Container holds the objects to ingest and receives assembled artifacts.
	Container string `yaml:"container"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		OutputSize: uint(pipeline.DefaultOutputSize),
		Formats:    []string{"gzip"},
		OnError:    "halt",
		MediaType:  "application/octet-stream",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by SWIFTLYSTREAM_CONFIG, or
// returns Default when it is not set.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// AddFlags registers command-line overrides for the configuration. Flags
// default to the values already in c, so call it after loading the file.
func (c *Config) AddFlags(flags *pflag.FlagSet) {
	flags.UintVar(&c.ChunkSize, "chunk-size", c.ChunkSize, "bytes read from a source per pull (0 = derive from size)")
	flags.UintVar(&c.OutputSize, "output-size", c.OutputSize, "maximum size of a decompressed chunk")
	flags.StringSliceVar(&c.Formats, "formats", c.Formats, "compression formats to detect (gzip, zstd, lz4)")
	flags.StringVar(&c.OnError, "on-error", c.OnError, "what to do when a source fails: halt or skip")
	flags.StringVar(&c.MediaType, "media-type", c.MediaType, "media type of assembled artifacts")
	flags.StringVar(&c.StatusInterval, "status-interval", c.StatusInterval, "how often to log batch status (e.g. 30s)")
	flags.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn, error")
	flags.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: text or json")
	flags.StringVar(&c.Swift.AuthURL, "swift-auth-url", c.Swift.AuthURL, "object storage auth url ending in its version, e.g. /v3")
	flags.StringVar(&c.Swift.User, "swift-user", c.Swift.User, "object storage user name")
	flags.StringVar(&c.Swift.Container, "swift-container", c.Swift.Container, "object storage container")
}

// Validate reports every invalid value in c.
func (c *Config) Validate() error {
	var errs []error
	if c.OutputSize == 0 {
		errs = append(errs, errors.New("output_size must be greater than zero"))
	}
	if _, err := c.ParsedFormats(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ErrorPolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Interval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ParsedFormats converts Formats into pipeline formats.
func (c *Config) ParsedFormats() ([]pipeline.Format, error) {
	formats := make([]pipeline.Format, 0, len(c.Formats))
	for _, name := range c.Formats {
		format, err := pipeline.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, format)
	}
	return formats, nil
}

// ErrorPolicy converts OnError into an ingestion error policy.
func (c *Config) ErrorPolicy() (swiftlystream.ErrorPolicy, error) {
	return swiftlystream.ParseErrorPolicy(c.OnError)
}

// Interval parses StatusInterval. An empty value disables status logging.
func (c *Config) Interval() (time.Duration, error) {
	if c.StatusInterval == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(c.StatusInterval)
	if err != nil {
		return 0, fmt.Errorf("status_interval: %w", err)
	}
	if interval < 0 {
		return 0, fmt.Errorf("status_interval must not be negative, got %s", interval)
	}
	return interval, nil
}

// IngesterOptions translates the configuration into Ingester options.
func (c *Config) IngesterOptions(logger *slog.Logger) ([]swiftlystream.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	formats, _ := c.ParsedFormats()
	policy, _ := c.ErrorPolicy()
	interval, _ := c.Interval()
	opts := []swiftlystream.Option{
		swiftlystream.WithLogger(logger),
		swiftlystream.WithFormats(formats...),
		swiftlystream.WithOutputSize(c.OutputSize),
		swiftlystream.WithErrorPolicy(policy),
		swiftlystream.WithStatusInterval(interval),
	}
	if c.ChunkSize > 0 {
		opts = append(opts, swiftlystream.WithChunkSize(c.ChunkSize))
	}
	return opts, nil
}

// NewLogger builds a logger writing to w with the configured level and format.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return slog.New(slog.NewTextHandler(w, options)), nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Configured reports whether enough credentials are present to connect.
func (s SwiftConfig) Configured() bool {
	return (s.Token != "" && s.StorageURL != "") || (s.AuthURL != "" && s.User != "" && s.APIKey != "")
}

// Connect authenticates with object storage, preferring a token when one is
// configured.
func (s SwiftConfig) Connect() (auth.Destination, error) {
	if s.Token != "" {
		return auth.AuthenticateWithToken(s.Token, s.StorageURL)
	}
	if !s.Configured() {
		return nil, errors.New("swift: auth_url, user and api_key are required")
	}
	return auth.Authenticate(s.User, s.APIKey, s.AuthURL, s.Domain, s.Tenant)
}

// flagFields copies the value behind each flag registered by AddFlags.
var flagFields = map[string]func(dst, src *Config){
	"chunk-size":      func(dst, src *Config) { dst.ChunkSize = src.ChunkSize },
	"output-size":     func(dst, src *Config) { dst.OutputSize = src.OutputSize },
	"formats":         func(dst, src *Config) { dst.Formats = src.Formats },
	"on-error":        func(dst, src *Config) { dst.OnError = src.OnError },
	"media-type":      func(dst, src *Config) { dst.MediaType = src.MediaType },
	"status-interval": func(dst, src *Config) { dst.StatusInterval = src.StatusInterval },
	"log-level":       func(dst, src *Config) { dst.Log.Level = src.Log.Level },
	"log-format":      func(dst, src *Config) { dst.Log.Format = src.Log.Format },
	"swift-auth-url":  func(dst, src *Config) { dst.Swift.AuthURL = src.Swift.AuthURL },
	"swift-user":      func(dst, src *Config) { dst.Swift.User = src.Swift.User },
	"swift-container": func(dst, src *Config) { dst.Swift.Container = src.Swift.Container },
}

// ApplyFile replaces c with the contents of the config file at path, keeping
// the values of any flags in flags that were set on the command line.
func (c *Config) ApplyFile(path string, flags *pflag.FlagSet) error {
	loaded, err := LoadFile(path)
	if err != nil {
		return err
	}
	fromFlags := *c
	*c = *loaded
	if flags == nil {
		return nil
	}
	flags.Visit(func(flag *pflag.Flag) {
		if apply, ok := flagFields[flag.Name]; ok {
			apply(c, &fromFlags)
		}
	})
	return nil
}

package swiftlystream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ibmjstart/swiftlystream/pipeline"
)

// ErrorPolicy decides what an Ingester does when a Source fails.
type ErrorPolicy uint8

const (
	// HaltOnError stops the batch at the first failing Source. The Consumer
	// is not told that ingestion is done.
	HaltOnError ErrorPolicy = iota
	// SkipOnError records the failure, moves on to the next Source and
	// still signals Done at the end of the batch.
	SkipOnError
)

func (p ErrorPolicy) String() string {
	switch p {
	case HaltOnError:
		return "halt"
	case SkipOnError:
		return "skip"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", uint8(p))
	}
}

// ParseErrorPolicy converts "halt" or "skip" into an ErrorPolicy.
func ParseErrorPolicy(name string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "halt":
		return HaltOnError, nil
	case "skip":
		return SkipOnError, nil
	default:
		return HaltOnError, fmt.Errorf("unknown error policy %q", name)
	}
}

// FileResult describes how one Source was ingested.
type FileResult struct {
	Name string
	// Format is the format the Source was classified as.
	Format pipeline.Format
	// BytesRead counts the raw bytes read from the Source.
	BytesRead uint
	// Count describes the decoded stream that reached the Consumer.
	Count pipeline.Count
	// Digest is the hex BLAKE3 digest of the decoded stream.
	Digest string
	Err    error
}

// BatchError lists the Sources that were skipped under SkipOnError.
type BatchError struct {
	Failed []FileResult
}

func (e *BatchError) Error() string {
	messages := make([]string, 0, len(e.Failed))
	for _, result := range e.Failed {
		messages = append(messages, fmt.Sprintf("%s: %v", result.Name, result.Err))
	}
	return fmt.Sprintf("%d file(s) failed: %s", len(e.Failed), strings.Join(messages, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, result := range e.Failed {
		errs = append(errs, result.Err)
	}
	return errs
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithErrorPolicy sets what happens when a Source fails. The default is
// HaltOnError.
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(in *Ingester) {
		in.policy = policy
	}
}

// WithLogger sets the logger for ingestion events. By default nothing is
// logged.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingester) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithProgress registers a per-file progress listener.
func WithProgress(notify pipeline.ProgressFunc) Option {
	return func(in *Ingester) {
		in.progress = notify
	}
}

// WithStatusInterval logs the batch Status every interval while a batch is
// running.
func WithStatusInterval(interval time.Duration) Option {
	return func(in *Ingester) {
		in.statusInterval = interval
	}
}

// WithChunkSize fixes the number of bytes read from a Source per pull. By
// default it is derived from the size of each Source.
func WithChunkSize(size uint) Option {
	return func(in *Ingester) {
		in.sourceOpts = append(in.sourceOpts, pipeline.WithChunkSize(size))
	}
}

// WithHeaders emits generated header blocks ahead of every Source's data.
func WithHeaders(generate pipeline.HeaderFunc) Option {
	return func(in *Ingester) {
		in.sourceOpts = append(in.sourceOpts, pipeline.WithHeaders(generate))
	}
}

// WithFormats sets the compression formats that are recognized and decoded.
func WithFormats(formats ...pipeline.Format) Option {
	return func(in *Ingester) {
		in.sniffOpts = append(in.sniffOpts, pipeline.WithFormats(formats...))
	}
}

// WithOutputSize caps the size of decompressed chunks.
func WithOutputSize(size uint) Option {
	return func(in *Ingester) {
		in.sniffOpts = append(in.sniffOpts, pipeline.WithDecodeOptions(pipeline.WithOutputSize(size)))
	}
}

// Ingester streams an ordered batch of Sources into a Consumer. Sources are
// ingested one at a time and every chunk of a Source is delivered before the
// first chunk of the next. An Ingester must not run two batches at once.
type Ingester struct {
	consumer       Consumer
	logger         *slog.Logger
	progress       pipeline.ProgressFunc
	policy         ErrorPolicy
	statusInterval time.Duration
	sourceOpts     []pipeline.SourceOption
	sniffOpts      []pipeline.SniffOption
	tracker        *pipeline.ProgressTracker

	statusMutex sync.Mutex
	status      *Status
}

// NewIngester creates an Ingester that feeds consumer.
func NewIngester(consumer Consumer, opts ...Option) (*Ingester, error) {
	if consumer == nil {
		return nil, errors.New("a consumer is required")
	}
	in := &Ingester{
		consumer: consumer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		policy:   HaltOnError,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.policy != HaltOnError && in.policy != SkipOnError {
		return nil, fmt.Errorf("invalid error policy %s", in.policy)
	}
	in.tracker = pipeline.NewProgressTracker("", 0, in.progress)
	return in, nil
}

// Status returns the Status of the running or most recent batch, or nil if
// Ingest has never been called.
func (in *Ingester) Status() *Status {
	in.statusMutex.Lock()
	defer in.statusMutex.Unlock()
	return in.status
}

// Ingest streams every Source into the Consumer in order and calls the
// Consumer's Done method once the last one has ended.
//
// Under HaltOnError the first failure is returned together with the results
// gathered so far, and Done is not called. Under SkipOnError failures are
// collected into a *BatchError that is returned after Done. If ctx is
// cancelled, nothing more is delivered, Done is not called and ctx.Err() is
// returned.
func (in *Ingester) Ingest(ctx context.Context, sources []pipeline.Source) ([]FileResult, error) {
	var totalBytes uint
	for _, source := range sources {
		totalBytes += source.Size()
	}
	output := make(chan string)
	status := NewStatus(uint(len(sources)), totalBytes, output)
	in.statusMutex.Lock()
	in.status = status
	in.statusMutex.Unlock()

	stopReporting := in.reportStatus(status, output)
	status.Start()
	defer func() {
		status.Stop()
		stopReporting()
		in.logger.Info(status.String())
	}()
	in.logger.Info("ingestion started", "files", len(sources), "bytes", totalBytes, "policy", in.policy.String())

	results := make([]FileResult, 0, len(sources))
	var failed []FileResult
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			in.logger.Warn("ingestion cancelled", "error", err)
			return results, err
		}
		result := in.ingestSource(ctx, source, status)
		results = append(results, result)
		if result.Err == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			in.logger.Warn("ingestion cancelled", "source", result.Name, "error", err)
			return results, err
		}
		if in.policy == HaltOnError {
			return results, fmt.Errorf("ingesting %s: %w", result.Name, result.Err)
		}
		failed = append(failed, result)
	}
	in.consumer.Done()
	if len(failed) > 0 {
		return results, &BatchError{Failed: failed}
	}
	return results, nil
}

// ingestSource runs one Source through the pipeline and delivers its decoded
// chunks.
func (in *Ingester) ingestSource(ctx context.Context, source pipeline.Source, status *Status) FileResult {
	result := FileResult{Name: source.Name()}
	logger := in.logger.With("source", result.Name)

	in.tracker.Reset(source.Name(), source.Size())
	in.tracker.Start()
	opts := append([]pipeline.SourceOption{
		pipeline.WithReadObserver(func(n uint) {
			in.tracker.Add(n)
			status.Read(n)
		}),
	}, in.sourceOpts...)
	chunked := pipeline.NewChunkedSource(source, opts...)
	defer chunked.Close()
	sniffer := pipeline.NewSniffer(chunked, in.sniffOpts...)
	defer sniffer.Close()
	counter := pipeline.NewCounter(sniffer)

	logger.Info("stream started", "size", source.Size(), "chunk_size", chunked.ChunkSize())
	for {
		chunk, err := counter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			result.Err = err
			break
		}
		if len(chunk) == 0 {
			continue
		}
		in.consumer.Deliver(chunk, len(chunk))
	}

	result.Format, _ = sniffer.Format()
	result.BytesRead = chunked.Offset()
	result.Count = counter.Count()
	result.Digest = counter.Digest()
	if result.Err != nil {
		logger.Error("stream failed", "format", result.Format.String(), "bytes", result.BytesRead, "error", result.Err)
		return result
	}
	status.FileComplete()
	logger.Info("stream finished",
		"format", result.Format.String(),
		"bytes", result.BytesRead,
		"decoded", result.Count.Bytes,
		"chunks", result.Count.Chunks,
		"digest", result.Digest)
	return result
}

// reportStatus logs whatever the Status prints, and prints it every
// statusInterval when one is set. The returned function stops both.
func (in *Ingester) reportStatus(status *Status, output chan string) func() {
	var printers, readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for line := range output {
			in.logger.Info(line)
		}
	}()
	done := make(chan struct{})
	if in.statusInterval > 0 {
		printers.Add(1)
		go func() {
			defer printers.Done()
			ticker := time.NewTicker(in.statusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					status.Print()
				case <-done:
					return
				}
			}
		}()
	}
	return func() {
		close(done)
		printers.Wait()
		close(output)
		readers.Wait()
	}
}

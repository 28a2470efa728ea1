package swiftlystream

import (
	"fmt"
	"time"
)

// currentStatus is a snapshot of an ingestion batch.
type currentStatus struct {
	totalFiles     uint
	filesIngested  uint
	totalBytes     uint
	bytesRead      uint
	ingestStarted  time.Time
	ingestDuration time.Duration
}

// percentComplete computes the percentage of the source bytes that have been read.
func (s *currentStatus) percentComplete() float64 {
	if s.totalBytes <= 0 {
		if s.totalFiles > 0 && s.filesIngested < s.totalFiles {
			return 0.0
		}
		return 100.0
	}
	return float64(s.bytesRead) / float64(s.totalBytes) * 100
}

// timeRemaining estimates how long reading the rest of the batch takes at the
// observed rate.
func (s *currentStatus) timeRemaining() time.Duration {
	rate := s.rate()
	if rate <= 0 {
		return 0
	}
	finishedIn := float64(s.totalBytes-s.bytesRead) / rate
	return time.Duration(finishedIn) * time.Second
}

// rate computes the observed read rate in bytes per second.
func (s *currentStatus) rate() float64 {
	if s.ingestStarted == (time.Time{}) {
		return 0.0
	} else if s.ingestDuration != (time.Duration(0)) {
		return float64(s.bytesRead) / s.ingestDuration.Seconds()
	}
	elapsed := time.Since(s.ingestStarted)
	return float64(s.bytesRead) / elapsed.Seconds()
}

func (s *currentStatus) String() string {
	if s.ingestStarted == (time.Time{}) {
		return "Ingestion not started yet"
	} else if s.ingestDuration != time.Duration(0) {
		return fmt.Sprintf(
			"Ingested %d/%d files in %s at approximately %2.2f MB/sec",
			s.filesIngested,
			s.totalFiles,
			s.ingestDuration,
			s.rate()/(1000*1000))
	}
	return fmt.Sprintf(
		"[%s] %3.2f%% Read\t%d/%d files\tAverage Read Speed %03.2f MB/sec\t%s Remaining",
		time.Now().Format(time.RFC3339),
		s.percentComplete(),
		s.filesIngested,
		s.totalFiles,
		s.rate()/(1000*1000),
		s.timeRemaining())
}

// Status tracks the progress of a whole ingestion batch. It is safe to query
// from any goroutine while the batch runs and after it has finished.
type Status struct {
	current       currentStatus
	final         currentStatus
	outputChannel chan string
	bytesRead     chan uint
	fileCompleted chan struct{}
	requestStatus chan chan *currentStatus
	signalStart   chan struct{}
	signalStop    chan struct{}
	finished      chan struct{}
}

// NewStatus creates a new Status for totalFiles sources holding totalBytes
// bytes between them. Print writes to output.
func NewStatus(totalFiles, totalBytes uint, output chan string) *Status {
	stat := &Status{
		outputChannel: output,
		bytesRead:     make(chan uint),
		fileCompleted: make(chan struct{}),
		requestStatus: make(chan chan *currentStatus),
		signalStart:   make(chan struct{}),
		signalStop:    make(chan struct{}),
		finished:      make(chan struct{}),
		current: currentStatus{
			totalFiles: totalFiles,
			totalBytes: totalBytes,
		},
	}
	go func(s *Status) {
		for {
			select {
			case <-s.signalStart:
				s.current.ingestStarted = time.Now()
				s.signalStart = nil
			case <-s.signalStop:
				s.current.ingestDuration = time.Since(s.current.ingestStarted)
				if s.current.ingestDuration == 0 {
					s.current.ingestDuration = time.Nanosecond
				}
				s.final = s.current
				close(s.finished)
				return
			case n := <-s.bytesRead:
				s.current.bytesRead += n
			case <-s.fileCompleted:
				s.current.filesIngested++
			case sendBack := <-s.requestStatus:
				snapshot := s.current
				sendBack <- &snapshot
			}
		}
	}(stat)
	return stat
}

// Start begins timing the batch.
func (s *Status) Start() {
	select {
	case s.signalStart <- struct{}{}:
	case <-s.finished:
	}
}

// Stop finalizes the duration of the batch. After Stop the Status no longer
// changes.
func (s *Status) Stop() {
	select {
	case s.signalStop <- struct{}{}:
	case <-s.finished:
	}
}

// Read records that n more source bytes have been read.
func (s *Status) Read(n uint) {
	select {
	case s.bytesRead <- n:
	case <-s.finished:
	}
}

// FileComplete marks that one source has been fully ingested.
func (s *Status) FileComplete() {
	select {
	case s.fileCompleted <- struct{}{}:
	case <-s.finished:
	}
}

// getCurrent retrieves a pointer to a copy of the current status.
func (s *Status) getCurrent() *currentStatus {
	stat := make(chan *currentStatus, 1)
	select {
	case s.requestStatus <- stat:
		return <-stat
	case <-s.finished:
		final := s.final
		return &final
	}
}

// FilesIngested returns how many sources have been fully ingested.
func (s *Status) FilesIngested() uint {
	return s.getCurrent().filesIngested
}

// TotalFiles returns how many sources are in the batch.
func (s *Status) TotalFiles() uint {
	return s.getCurrent().totalFiles
}

// BytesRead returns how many source bytes have been read so far.
func (s *Status) BytesRead() uint {
	return s.getCurrent().bytesRead
}

// TotalBytes returns the combined size of every source in the batch.
func (s *Status) TotalBytes() uint {
	return s.getCurrent().totalBytes
}

// Rate computes the observed read rate in bytes / second.
func (s *Status) Rate() float64 {
	return s.getCurrent().rate()
}

// RateMBPS computes the observed read rate in megabytes / second.
func (s *Status) RateMBPS() float64 {
	return s.Rate() / 1e6
}

// TimeRemaining estimates the amount of time remaining in the batch.
func (s *Status) TimeRemaining() time.Duration {
	return s.getCurrent().timeRemaining()
}

// PercentComplete returns how much of the batch has been read.
func (s *Status) PercentComplete() float64 {
	return s.getCurrent().percentComplete()
}

// String creates a status message from the current state of the status.
func (s *Status) String() string {
	return s.getCurrent().String()
}

// Print sends the current status of the batch to the output channel.
func (s *Status) Print() {
	s.outputChannel <- s.String()
}

package pipeline

import (
	"fmt"
	"math"
)

const (
	kilobyteF = 1024.0
	megabyteF = kilobyteF * 1024
	gigabyteF = megabyteF * 1024
)

// Progress is a single progress notification for one Source.
type Progress struct {
	Name    string
	Loaded  uint
	Total   uint
	Percent int
	Message string
}

// ProgressFunc receives progress notifications. It is called synchronously
// from the pipeline, so it should return quickly.
type ProgressFunc func(Progress)

// ProgressTracker turns a running byte count into coarse progress
// notifications. A notification is only sent when the rounded percentage
// reaches a new even value, so at most 51 are sent per Source.
type ProgressTracker struct {
	name   string
	total  uint
	loaded uint
	last   int
	notify ProgressFunc
}

// NewProgressTracker creates a tracker for a Source of total bytes. notify may
// be nil.
func NewProgressTracker(name string, total uint, notify ProgressFunc) *ProgressTracker {
	return &ProgressTracker{
		name:   name,
		total:  total,
		notify: notify,
	}
}

// Reset prepares the tracker for a new Source.
func (p *ProgressTracker) Reset(name string, total uint) {
	p.name = name
	p.total = total
	p.loaded = 0
	p.last = 0
}

// Start sends the initial notification. That is zero percent, except for an
// empty Source, which is complete before anything is read.
func (p *ProgressTracker) Start() {
	p.last = p.Percent()
	p.send(p.last)
}

// Add records n more bytes consumed and reports whether a notification was
// sent.
func (p *ProgressTracker) Add(n uint) bool {
	p.loaded += n
	if p.loaded > p.total {
		p.loaded = p.total
	}
	percent := p.Percent()
	if percent%2 != 0 || percent == p.last {
		return false
	}
	p.last = percent
	p.send(percent)
	return true
}

// Percent returns the rounded percentage of bytes consumed. Empty Sources are
// always complete.
func (p *ProgressTracker) Percent() int {
	if p.total == 0 {
		return 100
	}
	return int(math.Round(float64(p.loaded) / float64(p.total) * 100))
}

// Loaded returns the number of bytes consumed so far.
func (p *ProgressTracker) Loaded() uint {
	return p.loaded
}

func (p *ProgressTracker) send(percent int) {
	if p.notify == nil {
		return
	}
	p.notify(Progress{
		Name:    p.name,
		Loaded:  p.loaded,
		Total:   p.total,
		Percent: percent,
		Message: fmt.Sprintf("> processed %s / %s", FormatBytes(uint64(p.loaded)), FormatBytes(uint64(p.total))),
	})
}

// FormatBytes renders a byte count for display using base-1024 units.
// Counts below one kilobyte are printed exactly, larger ones with two
// decimal places.
func FormatBytes(bytes uint64) string {
	size := float64(bytes)
	switch {
	case size < kilobyteF:
		return fmt.Sprintf("%d Bytes", bytes)
	case size < megabyteF:
		return fmt.Sprintf("%.2f KB", size/kilobyteF)
	case size < gigabyteF:
		return fmt.Sprintf("%.2f MB", size/megabyteF)
	default:
		return fmt.Sprintf("%.2f GB", size/gigabyteF)
	}
}

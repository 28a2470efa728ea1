package pipeline

import (
	"bytes"
	"fmt"
	"strings"
)

// Format identifies how a byte stream is encoded. It is decided once per
// stream by a Sniffer and never changes afterwards.
type Format uint8

const (
	// FormatPlain is any stream that does not start with a known
	// compression magic number. It is passed through unchanged.
	FormatPlain Format = iota
	// FormatGzip is a gzip stream, possibly with several members.
	FormatGzip
	// FormatZstd is a zstandard frame.
	FormatZstd
	// FormatLZ4 is an LZ4 frame.
	FormatLZ4
)

// DefaultFormats are the compressed formats a Sniffer recognizes unless
// configured otherwise.
var DefaultFormats = []Format{FormatGzip}

var magicNumbers = map[Format][]byte{
	FormatGzip: {0x1f, 0x8b},
	FormatZstd: {0x28, 0xb5, 0x2f, 0xfd},
	FormatLZ4:  {0x04, 0x22, 0x4d, 0x18},
}

func (f Format) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	case FormatLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}

// Compressed reports whether the stream must be decompressed before it is
// delivered.
func (f Format) Compressed() bool {
	return f != FormatPlain
}

// Magic returns the leading bytes that identify the format, or nil for
// FormatPlain.
func (f Format) Magic() []byte {
	return magicNumbers[f]
}

// ParseFormat parses a format from its string representation.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "plain", "none":
		return FormatPlain, nil
	case "gzip", "gz":
		return FormatGzip, nil
	case "zstd", "zst":
		return FormatZstd, nil
	case "lz4":
		return FormatLZ4, nil
	default:
		return 0, fmt.Errorf("unknown format: %q", name)
	}
}

// Detect classifies a stream from its leading bytes. Only the given formats
// are considered, DefaultFormats if none are given. A prefix that matches none
// of them, including one that is too short to hold a magic number, is
// FormatPlain.
func Detect(prefix []byte, formats ...Format) Format {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	for _, format := range formats {
		magic := format.Magic()
		if len(magic) > 0 && bytes.HasPrefix(prefix, magic) {
			return format
		}
	}
	return FormatPlain
}

// PrefixLen is the number of leading bytes Detect needs to tell the given
// formats apart.
func PrefixLen(formats ...Format) int {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	longest := 0
	for _, format := range formats {
		if n := len(format.Magic()); n > longest {
			longest = n
		}
	}
	return longest
}

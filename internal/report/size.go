package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize parses a payload size such as "56", "1KiB" or "1.5KB".
// Supported formats:
//   - Decimal units: 100B, 10KB (1KB = 1000 bytes)
//   - Binary units: 10KiB (1KiB = 1024 bytes)
//   - Plain number: 1024 (interpreted as bytes)
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format '%s': %w", s, err)
	}
	if bytes > 1<<31-1 {
		return 0, fmt.Errorf("size '%s' is too large", s)
	}

	return int(bytes), nil
}

// FormatSize formats bytes using IEC binary units (KiB, MiB...).
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return humanize.IBytes(uint64(bytes))
}

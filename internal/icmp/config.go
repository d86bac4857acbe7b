package icmp

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Config holds the parameters of an echo probe.
type Config struct {
	// Timeout bounds the wait for each reply. Zero waits forever.
	// Default is 1 second.
	Timeout time.Duration

	// TTL is applied to outgoing packets, 1-255. Default is 48.
	TTL int

	// Size is the payload length in bytes. Default is 32.
	Size int

	// Pattern is tiled over the payload. Empty means a zero payload.
	Pattern []byte
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: time.Second,
		TTL:     48,
		Size:    32,
	}
}

// TimeoutMs returns the timeout in whole milliseconds, as Open expects it.
func (c Config) TimeoutMs() int {
	return int(c.Timeout / time.Millisecond)
}

// Validate checks the probe parameters.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.TTL < 1 || c.TTL > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidTTL, c.TTL)
	}
	if c.Size < 0 || c.Size > MaxPayloadSize {
		return fmt.Errorf("%w: %d", ErrInvalidSize, c.Size)
	}
	return nil
}

// ParsePattern decodes a hex payload pattern such as "ab cd ef" or
// "0xabcdef". The empty string yields an empty pattern.
func ParsePattern(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, nil
	}

	pattern, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", s, err)
	}
	return pattern, nil
}

// FormatPattern is the inverse of ParsePattern.
func FormatPattern(p []byte) string {
	return hex.EncodeToString(p)
}

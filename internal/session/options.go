package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/postalsys/pinger/internal/icmp"
)

// Options configures one ping session.
type Options struct {
	// Host is the numeric IPv4 destination.
	Host string

	// Timeout bounds the wait for each reply. Zero waits forever.
	Timeout time.Duration

	// Interval is the pause between the starts of consecutive probes.
	Interval time.Duration

	TTL  int
	Size int

	// Pattern is tiled over each payload. Empty means zeros.
	Pattern []byte

	// Count stops the session after that many probes. Zero runs until stopped.
	Count int
}

// DefaultOptions returns the default options for host.
func DefaultOptions(host string) Options {
	probe := icmp.DefaultConfig()
	return Options{
		Host:     host,
		Timeout:  probe.Timeout,
		Interval: time.Second,
		TTL:      probe.TTL,
		Size:     probe.Size,
	}
}

// Validate checks everything but the host, which is resolved when the
// session starts and reported through the listener.
func (o Options) Validate() error {
	probe := icmp.Config{Timeout: o.Timeout, TTL: o.TTL, Size: o.Size}
	if err := probe.Validate(); err != nil {
		return err
	}
	if o.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	if o.Count < 0 {
		return fmt.Errorf("count must not be negative: %d", o.Count)
	}
	return nil
}

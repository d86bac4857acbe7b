package icmp

import "errors"

var (
	// ErrSocket is returned when a socket cannot be created or configured.
	ErrSocket = errors.New("socket error")

	// ErrSend is returned when an echo request cannot be sent.
	ErrSend = errors.New("send error")

	// ErrTimeout is returned when no reply arrives within the receive timeout.
	ErrTimeout = errors.New("timeout waiting for echo reply")

	// ErrInvalidHandle is returned for handles that have no destination binding.
	ErrInvalidHandle = errors.New("invalid socket handle")

	// ErrClock is returned when the monotonic clock went backwards during a probe.
	ErrClock = errors.New("monotonic clock violation")

	ErrInvalidTTL     = errors.New("ttl must be between 1 and 255")
	ErrInvalidTimeout = errors.New("timeout must not be negative")
	ErrInvalidSize    = errors.New("invalid payload size")
	ErrInvalidAddress = errors.New("invalid IPv4 address")

	// ErrUnsupported is returned on platforms without ICMP datagram sockets.
	ErrUnsupported = errors.New("ICMP datagram sockets not supported on this platform")
)

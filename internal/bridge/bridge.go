// Package bridge exposes the integer-coded open, ping and close calls used
// by existing embedders. Every call goes through one process-wide
// icmp.Manager.
//
// Any negative return is a failure: SocketError and SendError are both -1,
// SendTimeout is -2. Callers that need to tell failures apart should use
// icmp.Manager directly.
package bridge

import (
	"sync"

	"github.com/postalsys/pinger/internal/icmp"
)

// Legacy sentinel codes.
const (
	SocketError = icmp.CodeSocketError
	SendError   = icmp.CodeSendError
	SendTimeout = icmp.CodeTimeout
)

var (
	mu  sync.RWMutex
	mgr *icmp.Manager
)

// Default returns the process-wide manager, creating it on first use.
func Default() *icmp.Manager {
	mu.RLock()
	m := mgr
	mu.RUnlock()
	if m != nil {
		return m
	}

	mu.Lock()
	defer mu.Unlock()
	if mgr == nil {
		mgr = icmp.NewManager()
	}
	return mgr
}

// SetDefault replaces the process-wide manager. Handles opened through the
// previous manager are not carried over.
func SetDefault(m *icmp.Manager) {
	mu.Lock()
	defer mu.Unlock()
	mgr = m
}

// OpenSocket opens a socket bound to host (numeric IPv4) and returns its
// handle, or SocketError.
func OpenSocket(host string, timeoutMs, ttl int) int {
	h, err := Default().Open(host, timeoutMs, ttl)
	if err != nil {
		return SocketError
	}
	return int(h)
}

// CloseSocket closes handle. Unknown handles are ignored.
func CloseSocket(handle int) {
	_ = Default().Close(icmp.Handle(handle))
}

// Ping sends one echo request on handle and returns the round-trip time in
// milliseconds, SendError or SendTimeout. An unknown handle yields
// SendError.
func Ping(handle int, sequence uint16, size int, pattern []byte) int {
	return Default().Probe(icmp.Handle(handle), sequence, size, pattern).Code()
}

package icmp

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/postalsys/pinger/internal/logging"
)

// recvSlack is extra receive buffer room for platforms that deliver the IP
// header (up to 60 bytes) in front of the ICMP message.
const recvSlack = 60

// Observer is notified of socket and probe events. internal/metrics
// implements it.
type Observer interface {
	SocketOpened()
	SocketClosed()
	ProbeCompleted(r Result, bytesSent int)
}

type nopObserver struct{}

func (nopObserver) SocketOpened()              {}
func (nopObserver) SocketClosed()              {}
func (nopObserver) ProbeCompleted(Result, int) {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Managers only log at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.With(slog.String(logging.KeyComponent, "icmp"))
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithRegistry makes the manager use r instead of a private registry.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithIdentifier overrides the echo identifier (default: the process ID).
func WithIdentifier(id uint16) Option {
	return func(m *Manager) {
		m.id = id
	}
}

// WithSocketOps replaces the OS socket layer. icmptest provides a fake.
func WithSocketOps(ops SocketOps) Option {
	return func(m *Manager) {
		m.ops = ops
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager opens, probes and closes ICMP echo sockets.
//
// Opens and closes of different handles may run concurrently. Probes on the
// same handle are serialized; probes on different handles run in parallel.
type Manager struct {
	registry *Registry
	ops      SocketOps
	observer Observer
	logger   *slog.Logger
	id       uint16
	now      func() time.Time
}

// ManagerStats is a snapshot of manager state.
type ManagerStats struct {
	OpenSockets int `json:"open_sockets"`
}

// NewManager creates a manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry: NewRegistry(),
		ops:      defaultSocketOps(),
		observer: nopObserver{},
		logger:   logging.NopLogger(),
		id:       ProcessIdentifier(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the manager's registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Stats returns a snapshot of the manager state.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{OpenSockets: m.registry.Len()}
}

// Open creates an ICMP socket bound to host, a numeric IPv4 address.
// timeoutMs bounds each probe's wait for a reply (0 waits forever) and ttl
// is applied to outgoing packets. Every failure wraps ErrSocket, and no
// descriptor is left open on failure.
func (m *Manager) Open(host string, timeoutMs, ttl int) (Handle, error) {
	if timeoutMs < 0 {
		return InvalidHandle, fmt.Errorf("%w: %w: %d", ErrSocket, ErrInvalidTimeout, timeoutMs)
	}
	if ttl < 1 || ttl > 255 {
		return InvalidHandle, fmt.Errorf("%w: %w: %d", ErrSocket, ErrInvalidTTL, ttl)
	}

	fd, err := m.ops.Socket()
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: create socket: %w", ErrSocket, err)
	}

	fail := func(step string, err error) (Handle, error) {
		_ = m.ops.Close(fd)
		return InvalidHandle, fmt.Errorf("%w: %s: %w", ErrSocket, step, err)
	}

	if err := m.ops.SetTTL(fd, ttl); err != nil {
		return fail("set ttl", err)
	}

	timeout := time.Duration(timeoutMs) * time.Millisecond
	if err := m.ops.SetRecvTimeout(fd, timeout); err != nil {
		return fail("set receive timeout", err)
	}

	addr, err := ParseIPv4(host)
	if err != nil {
		return fail("parse destination", err)
	}

	b := &Binding{
		Handle:    Handle(fd),
		Addr:      addr,
		Timeout:   timeout,
		TTL:       ttl,
		CreatedAt: time.Now(),
	}
	if m.registry.Register(b) {
		m.logger.Debug("replaced stale binding", logging.KeyHandle, fd)
	}
	m.observer.SocketOpened()

	m.logger.Debug("socket opened",
		logging.KeyHandle, fd,
		logging.KeyHost, addr.String(),
		"timeout", timeout,
		"ttl", ttl)

	return b.Handle, nil
}

// Close shuts the socket down in both directions, closes it and removes its
// binding. Only registered handles are touched: closing an unknown or already
// closed handle returns ErrInvalidHandle and has no other effect.
func (m *Manager) Close(h Handle) error {
	b, ok := m.registry.Remove(h)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}

	// Shutdown first so a probe blocked in receive returns and releases b.mu.
	_ = m.ops.Shutdown(int(h))

	b.mu.Lock()
	b.closed = true
	err := m.ops.Close(int(h))
	b.mu.Unlock()

	m.observer.SocketClosed()
	m.logger.Debug("socket closed", logging.KeyHandle, int(h))

	if err != nil {
		return fmt.Errorf("%w: close: %w", ErrSocket, err)
	}
	return nil
}

// CloseAll closes every registered handle.
func (m *Manager) CloseAll() {
	for _, h := range m.registry.Handles() {
		_ = m.Close(h)
	}
}

// Probe sends one echo request of size payload bytes, filled from pattern,
// to the handle's bound destination and waits for one reply.
func (m *Manager) Probe(h Handle, seq uint16, size int, pattern []byte) Result {
	return m.ProbeContext(context.Background(), h, seq, size, pattern)
}

// ProbeContext is Probe with a context that is checked before sending.
// Once the request is on the wire the wait is bounded only by the socket's
// receive timeout; closing the handle is the way to abort it.
func (m *Manager) ProbeContext(ctx context.Context, h Handle, seq uint16, size int, pattern []byte) Result {
	res, sent := m.probe(ctx, h, seq, size, pattern)
	res.Sequence = seq
	m.observer.ProbeCompleted(res, sent)

	m.logger.Debug("probe completed",
		logging.KeyHandle, int(h),
		logging.KeySequence, seq,
		logging.KeyOutcome, res.Outcome.String(),
		logging.KeyElapsed, res.ElapsedMs)

	return res
}

func (m *Manager) probe(ctx context.Context, h Handle, seq uint16, size int, pattern []byte) (Result, int) {
	b, ok := m.registry.Lookup(h)
	if !ok {
		return Result{Outcome: OutcomeInvalidHandle, Err: fmt.Errorf("%w: %d", ErrInvalidHandle, h)}, 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Result{Outcome: OutcomeInvalidHandle, Err: fmt.Errorf("%w: %d", ErrInvalidHandle, h)}, 0
	}

	pkt, err := BuildEchoRequest(m.id, seq, size, pattern)
	if err != nil {
		return Result{Outcome: OutcomeSendError, Err: fmt.Errorf("%w: %w", ErrSend, err)}, 0
	}

	if err := ctx.Err(); err != nil {
		return Result{Outcome: OutcomeSendError, Err: fmt.Errorf("%w: %w", ErrSend, err)}, 0
	}

	start := m.now()
	sent, err := m.ops.SendTo(int(h), pkt, b.Addr)
	if err != nil {
		return Result{Outcome: OutcomeSendError, Err: fmt.Errorf("%w: %w", ErrSend, err)}, 0
	}

	buf := make([]byte, len(pkt)+recvSlack)
	n, peer, err := m.ops.RecvFrom(int(h), buf, b.Timeout)
	end := m.now()

	if err != nil {
		return Result{Outcome: OutcomeTimeout, Err: fmt.Errorf("%w: %w", ErrTimeout, err)}, sent
	}
	if n <= 0 {
		return Result{Outcome: OutcomeTimeout, Err: ErrTimeout}, sent
	}

	elapsed := end.Sub(start)
	if elapsed < 0 {
		return Result{Outcome: OutcomeClockError, Err: fmt.Errorf("%w: elapsed %v", ErrClock, elapsed)}, sent
	}

	return Result{
		Outcome:   OutcomeReply,
		ElapsedMs: int(elapsed.Milliseconds()),
		Elapsed:   elapsed,
		Reply:     decodeReply(buf[:n], peer),
	}, sent
}

// ParseIPv4 parses a numeric IPv4 address. Hostnames and IPv6 are rejected.
func ParseIPv4(host string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, host)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not IPv4", ErrInvalidAddress, host)
	}
	return addr, nil
}

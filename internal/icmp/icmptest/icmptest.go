// Package icmptest provides an in-memory ICMP socket layer for tests of
// code built on icmp.Manager.
package icmptest

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/postalsys/pinger/internal/icmp"
)

var (
	// ErrTimedOut is returned by RecvFrom when no reply arrives in time.
	ErrTimedOut = errors.New("icmptest: receive timed out")
	// ErrShutdown is returned by RecvFrom once the socket is shut down.
	ErrShutdown = errors.New("icmptest: socket shut down")
	// ErrBadFD is returned for descriptors that are not open.
	ErrBadFD = errors.New("icmptest: bad file descriptor")
)

// Response controls what happens to one echo request.
type Response struct {
	// Delay before the reply is delivered.
	Delay time.Duration
	// Drop means no reply is ever delivered.
	Drop bool
	// SendErr fails the send itself.
	SendErr error
}

// Sockets is a fake icmp.SocketOps. By default every request is answered
// immediately with an echo reply from its destination.
type Sockets struct {
	// SocketErr, when set, makes every Socket call fail.
	SocketErr error

	// Respond, when set, decides the fate of each request.
	Respond func(dst netip.Addr, seq uint16) Response

	mu      sync.Mutex
	next    int
	sockets map[int]*socket
	sent    int
}

type socket struct {
	ttl     int
	timeout time.Duration
	shut    chan struct{}
	pending []byte
	dst     netip.Addr
	resp    Response
}

// New returns a fake whose descriptors start at 1000.
func New() *Sockets {
	return &Sockets{
		next:    1000,
		sockets: make(map[int]*socket),
	}
}

// Manager returns an icmp.Manager using s plus any extra options.
func (s *Sockets) Manager(opts ...icmp.Option) *icmp.Manager {
	return icmp.NewManager(append([]icmp.Option{icmp.WithSocketOps(s)}, opts...)...)
}

// OpenCount returns the number of descriptors not yet closed.
func (s *Sockets) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets)
}

// SentCount returns the number of requests successfully sent.
func (s *Sockets) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// TTL returns the TTL set on fd.
func (s *Sockets) TTL(fd int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sock, ok := s.sockets[fd]; ok {
		return sock.ttl
	}
	return 0
}

func (s *Sockets) Socket() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SocketErr != nil {
		return -1, s.SocketErr
	}
	fd := s.next
	s.next++
	s.sockets[fd] = &socket{shut: make(chan struct{})}
	return fd, nil
}

func (s *Sockets) SetTTL(fd, ttl int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sock, ok := s.sockets[fd]
	if !ok {
		return ErrBadFD
	}
	sock.ttl = ttl
	return nil
}

func (s *Sockets) SetRecvTimeout(fd int, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sock, ok := s.sockets[fd]
	if !ok {
		return ErrBadFD
	}
	sock.timeout = timeout
	return nil
}

func (s *Sockets) SendTo(fd int, b []byte, dst netip.Addr) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sock, ok := s.sockets[fd]
	if !ok {
		return 0, ErrBadFD
	}

	var resp Response
	if s.Respond != nil && len(b) >= icmp.HeaderSize {
		resp = s.Respond(dst, icmp.EchoSeq(b))
	}
	if resp.SendErr != nil {
		return 0, resp.SendErr
	}

	sock.pending = append([]byte(nil), b...)
	sock.dst = dst
	sock.resp = resp
	s.sent++
	return len(b), nil
}

func (s *Sockets) RecvFrom(fd int, b []byte, timeout time.Duration) (int, netip.Addr, error) {
	s.mu.Lock()
	sock, ok := s.sockets[fd]
	if !ok {
		s.mu.Unlock()
		return 0, netip.Addr{}, ErrBadFD
	}
	pkt := sock.pending
	dst := sock.dst
	resp := sock.resp
	shut := sock.shut
	sock.pending = nil
	s.mu.Unlock()

	var wait <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		wait = timer.C
	}

	if pkt == nil || resp.Drop {
		select {
		case <-wait:
			return 0, netip.Addr{}, ErrTimedOut
		case <-shut:
			return 0, netip.Addr{}, ErrShutdown
		}
	}

	if resp.Delay > 0 {
		delay := time.NewTimer(resp.Delay)
		defer delay.Stop()
		select {
		case <-delay.C:
		case <-wait:
			return 0, netip.Addr{}, ErrTimedOut
		case <-shut:
			return 0, netip.Addr{}, ErrShutdown
		}
	}

	return copy(b, EchoReply(pkt)), dst, nil
}

func (s *Sockets) Shutdown(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sock, ok := s.sockets[fd]
	if !ok {
		return ErrBadFD
	}
	select {
	case <-sock.shut:
	default:
		close(sock.shut)
	}
	return nil
}

func (s *Sockets) Close(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sockets[fd]; !ok {
		return ErrBadFD
	}
	delete(s.sockets, fd)
	return nil
}

// EchoReply turns an echo request into the matching reply.
func EchoReply(req []byte) []byte {
	reply := append([]byte(nil), req...)
	reply[0] = icmp.TypeEchoReply
	binary.BigEndian.PutUint16(reply[2:], 0)
	binary.BigEndian.PutUint16(reply[2:], icmp.Checksum(reply))
	return reply
}

var _ icmp.SocketOps = (*Sockets)(nil)

//go:build linux || darwin

package icmp

import (
	"errors"
	"net/netip"
	"time"

	"golang.org/x/sys/unix"
)

// unixSocketOps talks to unprivileged ICMP datagram sockets.
// On Linux the caller's group must be inside net.ipv4.ping_group_range:
//
//	sysctl -w net.ipv4.ping_group_range="0 65535"
type unixSocketOps struct{}

func defaultSocketOps() SocketOps {
	return unixSocketOps{}
}

func (unixSocketOps) Socket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_ICMP)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func (unixSocketOps) SetTTL(fd, ttl int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TTL, ttl)
}

func (unixSocketOps) SetRecvTimeout(fd int, timeout time.Duration) error {
	// Whole seconds plus remaining microseconds.
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

func (unixSocketOps) SendTo(fd int, b []byte, dst netip.Addr) (int, error) {
	sa := &unix.SockaddrInet4{Addr: dst.As4()}
	if err := unix.Sendto(fd, b, 0, sa); err != nil {
		return 0, err
	}
	return len(b), nil
}

// RecvFrom retries receives interrupted by signals (the Go runtime preempts
// with SIGURG, and SO_RCVTIMEO sockets are never restarted by the kernel).
// Each retry shortens SO_RCVTIMEO to the time left so the overall wait stays
// bounded by timeout; the original value is restored afterwards.
func (u unixSocketOps) RecvFrom(fd int, b []byte, timeout time.Duration) (int, netip.Addr, error) {
	deadline := time.Now().Add(timeout)
	shortened := false
	defer func() {
		if shortened {
			_ = u.SetRecvTimeout(fd, timeout)
		}
	}()

	for {
		n, from, err := unix.Recvfrom(fd, b, 0)
		if err == nil {
			return n, sockaddrToAddr(from), nil
		}
		if !errors.Is(err, unix.EINTR) {
			return n, netip.Addr{}, err
		}

		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0, netip.Addr{}, unix.EAGAIN
			}
			if err := u.SetRecvTimeout(fd, remaining); err != nil {
				return 0, netip.Addr{}, err
			}
			shortened = true
		}
	}
}

func (unixSocketOps) Shutdown(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_RDWR)
}

func (unixSocketOps) Close(fd int) error {
	return unix.Close(fd)
}

func sockaddrToAddr(sa unix.Sockaddr) netip.Addr {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return netip.AddrFrom4(in4.Addr)
	}
	return netip.Addr{}
}

//go:build !linux && !darwin

package icmp

import (
	"net/netip"
	"time"
)

type unsupportedSocketOps struct{}

func defaultSocketOps() SocketOps {
	return unsupportedSocketOps{}
}

func (unsupportedSocketOps) Socket() (int, error) { return -1, ErrUnsupported }

func (unsupportedSocketOps) SetTTL(int, int) error { return ErrUnsupported }

func (unsupportedSocketOps) SetRecvTimeout(int, time.Duration) error { return ErrUnsupported }

func (unsupportedSocketOps) SendTo(int, []byte, netip.Addr) (int, error) {
	return 0, ErrUnsupported
}

func (unsupportedSocketOps) RecvFrom(int, []byte, time.Duration) (int, netip.Addr, error) {
	return 0, netip.Addr{}, ErrUnsupported
}

func (unsupportedSocketOps) Shutdown(int) error { return ErrUnsupported }

func (unsupportedSocketOps) Close(int) error { return ErrUnsupported }

package icmp

import (
	"net/netip"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// SocketOps is the set of OS socket calls used by Manager.
// The default talks to the kernel; see WithSocketOps.
type SocketOps interface {
	// Socket allocates an ICMP datagram socket and returns its descriptor.
	Socket() (int, error)

	SetTTL(fd, ttl int) error

	// SetRecvTimeout sets SO_RCVTIMEO. Zero means block forever.
	SetRecvTimeout(fd int, timeout time.Duration) error

	SendTo(fd int, b []byte, dst netip.Addr) (int, error)

	// RecvFrom blocks until a datagram arrives or timeout elapses.
	RecvFrom(fd int, b []byte, timeout time.Duration) (int, netip.Addr, error)

	Shutdown(fd int) error
	Close(fd int) error
}

// EchoReply contains the decoded reply datagram.
// It is informational only: any datagram received on the socket counts as a reply.
type EchoReply struct {
	Type    ipv4.ICMPType
	Code    int
	ID      uint16
	Seq     uint16
	Payload []byte
	Peer    netip.Addr
	Size    int
}

// IsEchoReply reports whether the datagram was an echo reply.
func (r *EchoReply) IsEchoReply() bool {
	return r.Type == ipv4.ICMPTypeEchoReply
}

// decodeReply parses a received datagram. Datagram sockets on Linux strip the
// IP header; other platforms deliver it, so a leading IPv4 header is skipped.
// Returns nil if the datagram is not a parseable ICMP message.
func decodeReply(b []byte, peer netip.Addr) *EchoReply {
	if len(b) >= ipv4.HeaderLen && b[0]>>4 == ipv4.Version {
		hl := int(b[0]&0x0f) << 2
		if hl >= ipv4.HeaderLen && hl <= len(b) {
			b = b[hl:]
		}
	}

	msg, err := icmp.ParseMessage(ICMPv4ProtocolNumber, b)
	if err != nil {
		return nil
	}

	reply := &EchoReply{
		Code: msg.Code,
		Peer: peer,
		Size: len(b),
	}
	if t, ok := msg.Type.(ipv4.ICMPType); ok {
		reply.Type = t
	}
	if echo, ok := msg.Body.(*icmp.Echo); ok {
		reply.ID = uint16(echo.ID)
		reply.Seq = uint16(echo.Seq)
		reply.Payload = echo.Data
	}

	return reply
}

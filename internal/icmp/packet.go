package icmp

import (
	"encoding/binary"
	"fmt"
	"os"
)

// ICMPv4ProtocolNumber is the IANA protocol number for ICMP.
const ICMPv4ProtocolNumber = 1

// Echo message layout (RFC 792).
const (
	// HeaderSize is the size of the ICMP echo header.
	HeaderSize = 8

	// MaxPayloadSize is the largest payload that fits in one IPv4 datagram
	// (65535 - 20 byte IP header - 8 byte ICMP header).
	MaxPayloadSize = 65507

	TypeEchoReply   = 0
	TypeEchoRequest = 8

	offType     = 0
	offCode     = 1
	offChecksum = 2
	offID       = 4
	offSeq      = 6
)

// ProcessIdentifier returns the echo identifier for this process: the PID
// truncated to 16 bits.
func ProcessIdentifier() uint16 {
	return uint16(os.Getpid())
}

// BuildEchoRequest returns a fresh echo request of HeaderSize+size bytes.
// The payload is filled by tiling pattern, or left zero when pattern is
// empty. The checksum covers the whole packet.
func BuildEchoRequest(id, seq uint16, size int, pattern []byte) ([]byte, error) {
	if size < 0 || size > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	pkt := make([]byte, HeaderSize+size)
	pkt[offType] = TypeEchoRequest
	pkt[offCode] = 0
	binary.BigEndian.PutUint16(pkt[offID:], id)
	binary.BigEndian.PutUint16(pkt[offSeq:], seq)

	FillPattern(pkt[HeaderSize:], pattern)

	binary.BigEndian.PutUint16(pkt[offChecksum:], 0)
	binary.BigEndian.PutUint16(pkt[offChecksum:], Checksum(pkt))

	return pkt, nil
}

// FillPattern copies pattern into dst repeatedly, in chunks of
// min(remaining, len(pattern)), until dst is full. An empty pattern leaves
// dst untouched.
func FillPattern(dst, pattern []byte) {
	if len(pattern) == 0 {
		return
	}
	for i := 0; i < len(dst); i += len(pattern) {
		copy(dst[i:], pattern)
	}
}

// EchoID returns the identifier field of an echo packet.
func EchoID(pkt []byte) uint16 {
	return binary.BigEndian.Uint16(pkt[offID:])
}

// EchoSeq returns the sequence field of an echo packet.
func EchoSeq(pkt []byte) uint16 {
	return binary.BigEndian.Uint16(pkt[offSeq:])
}

package icmp

import "encoding/binary"

// Checksum computes the RFC 1071 Internet checksum of b.
//
// Words are summed in network byte order. An odd trailing byte is padded
// with a zero low byte. The caller stores the result big-endian.
func Checksum(b []byte) uint16 {
	var sum uint32

	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}

	// Two folds: the first can itself carry into bit 16.
	sum = (sum >> 16) + (sum & 0xffff)
	sum += sum >> 16

	return ^uint16(sum)
}

// VerifyChecksum reports whether b, including its stored checksum field,
// sums to zero.
func VerifyChecksum(b []byte) bool {
	return Checksum(b) == 0
}

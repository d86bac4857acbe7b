package icmp

import (
	"encoding/binary"
	"testing"
)

func TestChecksum_ZeroHeader(t *testing.T) {
	buf := make([]byte, HeaderSize)

	if got := Checksum(buf); got != 0xffff {
		t.Errorf("Checksum(zero header) = %#04x, want 0xffff", got)
	}
}

func TestChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			// RFC 1071 section 3 example: 0001 f203 f4f5 f6f7 sums to ddf2.
			name: "rfc1071 example",
			data: []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7},
			want: ^uint16(0xddf2),
		},
		{
			name: "empty",
			data: nil,
			want: 0xffff,
		},
		{
			name: "odd length pads low byte",
			data: []byte{0x12, 0x34, 0x56},
			want: ^uint16(0x1234 + 0x5600),
		},
		{
			name: "single byte",
			data: []byte{0xab},
			want: ^uint16(0xab00),
		},
		{
			name: "carry folds",
			data: []byte{0xff, 0xff, 0xff, 0xff},
			want: 0x0000,
		},
		{
			name: "echo request id 1 seq 1",
			data: []byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01},
			want: 0xf7fd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(% x) = %#04x, want %#04x", tt.data, got, tt.want)
			}
		})
	}
}

func TestChecksum_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 2, 3, 7, 8, 31, 56, 1000, 1473}

	for _, size := range sizes {
		buf := make([]byte, HeaderSize+size)
		for i := range buf {
			buf[i] = byte(i*31 + 7)
		}
		binary.BigEndian.PutUint16(buf[offChecksum:], 0)
		binary.BigEndian.PutUint16(buf[offChecksum:], Checksum(buf))

		if !VerifyChecksum(buf) {
			t.Errorf("size %d: checksum over packet with stored checksum is %#04x, want 0", size, Checksum(buf))
		}
	}
}

func TestVerifyChecksum_DetectsCorruption(t *testing.T) {
	pkt, err := BuildEchoRequest(0x1234, 7, 16, []byte{0xde, 0xad})
	if err != nil {
		t.Fatalf("BuildEchoRequest() error = %v", err)
	}

	if !VerifyChecksum(pkt) {
		t.Fatal("VerifyChecksum() = false on a freshly built packet")
	}

	pkt[HeaderSize+3] ^= 0x01
	if VerifyChecksum(pkt) {
		t.Error("VerifyChecksum() = true after flipping a payload bit")
	}
}

func BenchmarkChecksum(b *testing.B) {
	buf := make([]byte, 1472)
	for i := range buf {
		buf[i] = byte(i)
	}
	b.SetBytes(int64(len(buf)))

	for i := 0; i < b.N; i++ {
		Checksum(buf)
	}
}

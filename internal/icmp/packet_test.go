package icmp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

func TestBuildEchoRequest_Header(t *testing.T) {
	pkt, err := BuildEchoRequest(0xbeef, 0x0102, 4, nil)
	if err != nil {
		t.Fatalf("BuildEchoRequest() error = %v", err)
	}

	if len(pkt) != HeaderSize+4 {
		t.Fatalf("len = %d, want %d", len(pkt), HeaderSize+4)
	}
	if pkt[0] != TypeEchoRequest {
		t.Errorf("type = %d, want %d", pkt[0], TypeEchoRequest)
	}
	if pkt[1] != 0 {
		t.Errorf("code = %d, want 0", pkt[1])
	}
	// Network byte order.
	if pkt[4] != 0xbe || pkt[5] != 0xef {
		t.Errorf("identifier bytes = % x, want be ef", pkt[4:6])
	}
	if pkt[6] != 0x01 || pkt[7] != 0x02 {
		t.Errorf("sequence bytes = % x, want 01 02", pkt[6:8])
	}
	if EchoID(pkt) != 0xbeef || EchoSeq(pkt) != 0x0102 {
		t.Errorf("EchoID/EchoSeq = %#x/%#x", EchoID(pkt), EchoSeq(pkt))
	}
	if !VerifyChecksum(pkt) {
		t.Error("checksum does not verify")
	}
}

func TestBuildEchoRequest_PatternTiling(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		pattern []byte
		want    []byte
	}{
		{
			name:    "truncated last chunk",
			size:    8,
			pattern: []byte{0xab, 0xcd, 0xef},
			want:    []byte{0xab, 0xcd, 0xef, 0xab, 0xcd, 0xef, 0xab, 0xcd},
		},
		{
			name:    "exact multiple",
			size:    6,
			pattern: []byte{0x01, 0x02},
			want:    []byte{0x01, 0x02, 0x01, 0x02, 0x01, 0x02},
		},
		{
			name:    "pattern longer than payload",
			size:    2,
			pattern: []byte{0x01, 0x02, 0x03, 0x04},
			want:    []byte{0x01, 0x02},
		},
		{
			name:    "single byte pattern",
			size:    3,
			pattern: []byte{0x7f},
			want:    []byte{0x7f, 0x7f, 0x7f},
		},
		{
			name:    "zero size",
			size:    0,
			pattern: []byte{0x01},
			want:    []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := BuildEchoRequest(1, 1, tt.size, tt.pattern)
			if err != nil {
				t.Fatalf("BuildEchoRequest() error = %v", err)
			}
			if got := pkt[HeaderSize:]; !bytes.Equal(got, tt.want) {
				t.Errorf("payload = % x, want % x", got, tt.want)
			}
			if !VerifyChecksum(pkt) {
				t.Error("checksum does not verify")
			}
		})
	}
}

func TestBuildEchoRequest_EmptyPatternZeroPayload(t *testing.T) {
	for _, size := range []int{0, 1, 8, 32, 513} {
		for _, pattern := range [][]byte{nil, {}} {
			pkt, err := BuildEchoRequest(9, 9, size, pattern)
			if err != nil {
				t.Fatalf("BuildEchoRequest(size=%d) error = %v", size, err)
			}
			for i, b := range pkt[HeaderSize:] {
				if b != 0 {
					t.Fatalf("size %d: payload[%d] = %#x, want 0", size, i, b)
				}
			}
		}
	}
}

func TestBuildEchoRequest_InvalidSize(t *testing.T) {
	for _, size := range []int{-1, MaxPayloadSize + 1} {
		_, err := BuildEchoRequest(1, 1, size, nil)
		if !errors.Is(err, ErrInvalidSize) {
			t.Errorf("BuildEchoRequest(size=%d) error = %v, want ErrInvalidSize", size, err)
		}
	}
}

func TestBuildEchoRequest_DoesNotAliasPattern(t *testing.T) {
	pattern := []byte{0x11, 0x22}
	pkt, err := BuildEchoRequest(1, 1, 4, pattern)
	if err != nil {
		t.Fatalf("BuildEchoRequest() error = %v", err)
	}

	pkt[HeaderSize] = 0xff
	if pattern[0] != 0x11 {
		t.Error("modifying the packet changed the caller's pattern")
	}
}

// The packet must be byte-identical to what an independent ICMP stack
// produces for the same fields.
func TestBuildEchoRequest_MatchesXNetICMP(t *testing.T) {
	pattern := []byte("ping")
	pkt, err := BuildEchoRequest(0x4242, 513, 10, pattern)
	if err != nil {
		t.Fatalf("BuildEchoRequest() error = %v", err)
	}

	payload := make([]byte, 10)
	FillPattern(payload, pattern)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: 0x4242, Seq: 513, Data: payload},
	}
	want, err := msg.Marshal(nil)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if !bytes.Equal(pkt, want) {
		t.Errorf("packet = % x\nx/net = % x", pkt, want)
	}
}

func TestBuildEchoRequest_DecodesWithGopacket(t *testing.T) {
	pkt, err := BuildEchoRequest(0x0a0b, 0xfffe, 7, []byte{0xab, 0xcd, 0xef})
	if err != nil {
		t.Fatalf("BuildEchoRequest() error = %v", err)
	}

	packet := gopacket.NewPacket(pkt, layers.LayerTypeICMPv4, gopacket.Default)
	layer := packet.Layer(layers.LayerTypeICMPv4)
	if layer == nil {
		t.Fatalf("gopacket found no ICMPv4 layer: %v", packet.ErrorLayer())
	}
	echo := layer.(*layers.ICMPv4)

	if echo.TypeCode.Type() != layers.ICMPv4TypeEchoRequest {
		t.Errorf("type = %v, want echo request", echo.TypeCode.Type())
	}
	if echo.Id != 0x0a0b {
		t.Errorf("Id = %#x, want 0x0a0b", echo.Id)
	}
	if echo.Seq != 0xfffe {
		t.Errorf("Seq = %#x, want 0xfffe", echo.Seq)
	}
	if echo.Checksum != Checksum(append([]byte{pkt[0], pkt[1], 0, 0}, pkt[4:]...)) {
		t.Errorf("Checksum = %#04x does not match a recomputation", echo.Checksum)
	}
	want := []byte{0xab, 0xcd, 0xef, 0xab, 0xcd, 0xef, 0xab}
	if !bytes.Equal(echo.Payload, want) {
		t.Errorf("payload = % x, want % x", echo.Payload, want)
	}
}

func TestFillPattern(t *testing.T) {
	dst := []byte{9, 9, 9, 9, 9}
	FillPattern(dst, nil)
	if !bytes.Equal(dst, []byte{9, 9, 9, 9, 9}) {
		t.Errorf("empty pattern modified dst: % x", dst)
	}

	FillPattern(dst, []byte{1, 2})
	if !bytes.Equal(dst, []byte{1, 2, 1, 2, 1}) {
		t.Errorf("dst = % x, want 01 02 01 02 01", dst)
	}
}

func TestProcessIdentifier(t *testing.T) {
	if ProcessIdentifier() != ProcessIdentifier() {
		t.Error("ProcessIdentifier() is not stable")
	}
}

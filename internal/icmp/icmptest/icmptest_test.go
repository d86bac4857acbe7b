package icmptest

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/postalsys/pinger/internal/icmp"
)

func TestSockets_EchoesByDefault(t *testing.T) {
	s := New()
	m := s.Manager()

	h, err := m.Open("203.0.113.5", 1000, 30)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.TTL(int(h)) != 30 {
		t.Errorf("TTL = %d, want 30", s.TTL(int(h)))
	}

	res := m.Probe(h, 9, 16, []byte{0x42})
	if !res.OK() {
		t.Fatalf("Probe() outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if res.Reply == nil || !res.Reply.IsEchoReply() || res.Reply.Seq != 9 {
		t.Errorf("Reply = %+v", res.Reply)
	}
	if res.Reply.Peer != netip.MustParseAddr("203.0.113.5") {
		t.Errorf("Peer = %v", res.Reply.Peer)
	}

	if err := m.Close(h); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d, want 0", s.OpenCount())
	}
}

func TestSockets_Responses(t *testing.T) {
	sendErr := errors.New("no route to host")
	s := New()
	s.Respond = func(dst netip.Addr, seq uint16) Response {
		switch seq {
		case 1:
			return Response{Drop: true}
		case 2:
			return Response{SendErr: sendErr}
		case 3:
			return Response{Delay: 200 * time.Millisecond}
		}
		return Response{Delay: 5 * time.Millisecond}
	}
	m := s.Manager()

	h, err := m.Open("203.0.113.5", 50, 64)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close(h)

	tests := []struct {
		seq  uint16
		want icmp.Outcome
	}{
		{1, icmp.OutcomeTimeout},
		{2, icmp.OutcomeSendError},
		{3, icmp.OutcomeTimeout},
		{4, icmp.OutcomeReply},
	}
	for _, tt := range tests {
		if res := m.Probe(h, tt.seq, 8, nil); res.Outcome != tt.want {
			t.Errorf("Probe(seq=%d) outcome = %v, want %v", tt.seq, res.Outcome, tt.want)
		}
	}
	if s.SentCount() != 3 {
		t.Errorf("SentCount() = %d, want 3", s.SentCount())
	}
}

func TestSockets_SocketErr(t *testing.T) {
	s := New()
	s.SocketErr = errors.New("operation not permitted")

	if _, err := s.Manager().Open("203.0.113.5", 50, 64); !errors.Is(err, icmp.ErrSocket) {
		t.Errorf("Open() error = %v, want ErrSocket", err)
	}
}

func TestEchoReply(t *testing.T) {
	req, _ := icmp.BuildEchoRequest(1, 2, 5, []byte{7})
	reply := EchoReply(req)

	if reply[0] != icmp.TypeEchoReply {
		t.Errorf("type = %d, want 0", reply[0])
	}
	if !icmp.VerifyChecksum(reply) {
		t.Error("reply checksum does not verify")
	}
	if req[0] != icmp.TypeEchoRequest {
		t.Error("EchoReply modified the request")
	}
}

package report

import (
	"bytes"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/postalsys/pinger/internal/session"
)

func testInfo() session.Info {
	return session.Info{
		ID:   1,
		Host: "192.0.2.7",
		Addr: netip.MustParseAddr("192.0.2.7"),
		Size: 32,
		TTL:  48,
	}
}

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	if p.Color() {
		t.Error("Color() = true for a bytes.Buffer")
	}

	p.OnStart(testInfo())
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("output contains escape sequences: %q", buf.String())
	}
}

func TestPrinter_Events(t *testing.T) {
	tests := []struct {
		name string
		emit func(p *Printer)
		want string
	}{
		{
			name: "start",
			emit: func(p *Printer) { p.OnStart(testInfo()) },
			want: "PING 192.0.2.7: 32 data bytes\n",
		},
		{
			name: "reply",
			emit: func(p *Printer) { p.OnReplyReceived(testInfo(), 1, 12) },
			want: "40 bytes from 192.0.2.7: icmp_seq=1 time=12 ms\n",
		},
		{
			name: "timeout",
			emit: func(p *Printer) { p.OnTimeout(testInfo(), 2) },
			want: "Request timeout for icmp_seq 2\n",
		},
		{
			name: "send error",
			emit: func(p *Printer) { p.OnSendError(testInfo(), 3) },
			want: "ping: sendto failed for icmp_seq 3\n",
		},
		{
			name: "exception",
			emit: func(p *Printer) { p.OnException(testInfo(), errors.New("boom"), false) },
			want: "ping: boom\n",
		},
		{
			name: "fatal exception",
			emit: func(p *Printer) { p.OnException(testInfo(), errors.New("no socket"), true) },
			want: "ping: fatal: no socket\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(NewPrinter(&buf))
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrinter_Summary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	info := testInfo()
	info.Stats = session.Summary{
		Transmitted: 4,
		Received:    3,
		Errors:      1,
		LossPercent: 25,
		MinMs:       1,
		AvgMs:       2,
		MaxMs:       3,
		StdDevMs:    0.816,
	}
	p.OnStop(info)

	want := strings.Join([]string{
		"",
		"--- 192.0.2.7 ping statistics ---",
		"4 packets transmitted, 3 received, 25.0% packet loss, 1 error",
		"round-trip min/avg/max/stddev = 1.000/2.000/3.000/0.816 ms",
		"160 B sent",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("summary =\n%s\nwant\n%s", got, want)
	}
}

func TestPrinter_SummaryNoReplies(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	info := testInfo()
	info.Stats = session.Summary{Transmitted: 2, LossPercent: 100}
	p.OnStop(info)

	out := buf.String()
	if !strings.Contains(out, "2 packets transmitted, 0 received, 100.0% packet loss\n") {
		t.Errorf("missing totals line in %q", out)
	}
	if strings.Contains(out, "round-trip") {
		t.Errorf("round-trip line printed without replies: %q", out)
	}
}

func TestPrinter_LargeCounts(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	info := testInfo()
	info.Stats = session.Summary{Transmitted: 12345, Received: 12345}
	p.OnStop(info)

	if !strings.Contains(buf.String(), "12,345 packets transmitted, 12,345 received") {
		t.Errorf("counts not grouped: %q", buf.String())
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"56", 56, false},
		{"0", 0, false},
		{"1KB", 1000, false},
		{"1KiB", 1024, false},
		{" 64B ", 64, false},
		{"", 0, true},
		{"abc", 0, true},
		{"10GiB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{160, "160 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

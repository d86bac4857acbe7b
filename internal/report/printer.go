// Package report prints ping session events for humans, in the style of
// ping(8).
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"golang.org/x/term"

	"github.com/postalsys/pinger/internal/icmp"
	"github.com/postalsys/pinger/internal/session"
)

// Printer is a session.Listener writing one line per event and a summary
// when a session stops. Output is styled only when w is a terminal.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool

	header lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
	dim    lipgloss.Style
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == "" {
		p.color = true
	}

	r := lipgloss.NewRenderer(w)
	p.header = r.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	p.ok = r.NewStyle().Foreground(lipgloss.Color("42"))
	p.warn = r.NewStyle().Foreground(lipgloss.Color("214"))
	p.bad = r.NewStyle().Foreground(lipgloss.Color("196"))
	p.dim = r.NewStyle().Foreground(lipgloss.Color("241"))
	return p
}

// Color reports whether output is styled.
func (p *Printer) Color() bool {
	return p.color
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}

func (p *Printer) OnStart(info session.Info) {
	p.println(p.render(p.header, fmt.Sprintf("PING %s: %d data bytes", info.Addr, info.Size)))
}

func (p *Printer) OnReplyReceived(info session.Info, seq uint16, elapsedMs int) {
	line := fmt.Sprintf("%d bytes from %s: icmp_seq=%d time=%s",
		icmp.HeaderSize+info.Size, info.Addr, seq, p.render(p.ok, fmt.Sprintf("%d ms", elapsedMs)))
	p.println(line)
}

func (p *Printer) OnTimeout(info session.Info, seq uint16) {
	p.println(p.render(p.warn, fmt.Sprintf("Request timeout for icmp_seq %d", seq)))
}

func (p *Printer) OnSendError(info session.Info, seq uint16) {
	p.println(p.render(p.bad, fmt.Sprintf("ping: sendto failed for icmp_seq %d", seq)))
}

func (p *Printer) OnException(info session.Info, err error, fatal bool) {
	prefix := "ping"
	if fatal {
		prefix = "ping: fatal"
	}
	p.println(p.render(p.bad, fmt.Sprintf("%s: %v", prefix, err)))
}

func (p *Printer) OnStop(info session.Info) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := info.Stats
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.render(p.header, fmt.Sprintf("--- %s ping statistics ---", info.Addr)))

	line := fmt.Sprintf("%s packets transmitted, %s received, %.1f%% packet loss",
		humanize.Comma(int64(st.Transmitted)), humanize.Comma(int64(st.Received)), st.LossPercent)
	if st.Errors > 0 {
		line += fmt.Sprintf(", %s", english.Plural(st.Errors, "error", ""))
	}
	fmt.Fprintln(p.w, line)

	if st.Received > 0 {
		fmt.Fprintf(p.w, "round-trip min/avg/max/stddev = %.3f/%.3f/%.3f/%.3f ms\n",
			st.MinMs, st.AvgMs, st.MaxMs, st.StdDevMs)
	}

	sent := int64(st.Transmitted) * int64(icmp.HeaderSize+info.Size)
	fmt.Fprintln(p.w, p.render(p.dim, fmt.Sprintf("%s sent", FormatSize(sent))))
}

var _ session.Listener = (*Printer)(nil)

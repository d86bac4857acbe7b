package session

import (
	"net/netip"
	"time"

	"github.com/postalsys/pinger/internal/icmp"
)

// Info describes a session. Listeners receive a copy; Stats is the snapshot
// taken after the most recent probe.
type Info struct {
	ID      int
	Host    string
	Addr    netip.Addr
	Handle  icmp.Handle
	Size    int
	TTL     int
	Timeout time.Duration
	Stats   Summary
}

// Listener receives session events. All calls for one session come from
// the session's goroutine, in order.
type Listener interface {
	// OnStart is called once the socket is open.
	OnStart(info Info)

	// OnStop is called when a started session ends.
	OnStop(info Info)

	OnSendError(info Info, seq uint16)
	OnReplyReceived(info Info, seq uint16, elapsedMs int)
	OnTimeout(info Info, seq uint16)

	// OnException reports problems that are not a probe outcome. A fatal
	// exception ends the session before it starts.
	OnException(info Info, err error, fatal bool)
}

// ListenerFuncs adapts optional functions to a Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	Start     func(info Info)
	Stop      func(info Info)
	SendError func(info Info, seq uint16)
	Reply     func(info Info, seq uint16, elapsedMs int)
	Timeout   func(info Info, seq uint16)
	Exception func(info Info, err error, fatal bool)
}

func (f ListenerFuncs) OnStart(info Info) {
	if f.Start != nil {
		f.Start(info)
	}
}

func (f ListenerFuncs) OnStop(info Info) {
	if f.Stop != nil {
		f.Stop(info)
	}
}

func (f ListenerFuncs) OnSendError(info Info, seq uint16) {
	if f.SendError != nil {
		f.SendError(info, seq)
	}
}

func (f ListenerFuncs) OnReplyReceived(info Info, seq uint16, elapsedMs int) {
	if f.Reply != nil {
		f.Reply(info, seq, elapsedMs)
	}
}

func (f ListenerFuncs) OnTimeout(info Info, seq uint16) {
	if f.Timeout != nil {
		f.Timeout(info, seq)
	}
}

func (f ListenerFuncs) OnException(info Info, err error, fatal bool) {
	if f.Exception != nil {
		f.Exception(info, err, fatal)
	}
}

// Multi fans events out to several listeners in order.
type Multi []Listener

func (m Multi) OnStart(info Info) {
	for _, l := range m {
		l.OnStart(info)
	}
}

func (m Multi) OnStop(info Info) {
	for _, l := range m {
		l.OnStop(info)
	}
}

func (m Multi) OnSendError(info Info, seq uint16) {
	for _, l := range m {
		l.OnSendError(info, seq)
	}
}

func (m Multi) OnReplyReceived(info Info, seq uint16, elapsedMs int) {
	for _, l := range m {
		l.OnReplyReceived(info, seq, elapsedMs)
	}
}

func (m Multi) OnTimeout(info Info, seq uint16) {
	for _, l := range m {
		l.OnTimeout(info, seq)
	}
}

func (m Multi) OnException(info Info, err error, fatal bool) {
	for _, l := range m {
		l.OnException(info, err, fatal)
	}
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/postalsys/pinger/internal/icmp"
	"github.com/postalsys/pinger/internal/logging"
	"github.com/postalsys/pinger/internal/recovery"
	"github.com/postalsys/pinger/internal/session"
)

// PingSubprotocol is the websocket subprotocol spoken on /ping.
const PingSubprotocol = "pinger"

// pingInitMessage opens a websocket ping session. Omitted fields take the
// server defaults.
type pingInitMessage struct {
	Type       string `json:"type"`
	Host       string `json:"host"`
	TimeoutMs  *int   `json:"timeout_ms,omitempty"`
	TTL        *int   `json:"ttl,omitempty"`
	Size       *int   `json:"size,omitempty"`
	Pattern    string `json:"pattern,omitempty"`
	Count      *int   `json:"count,omitempty"`
	IntervalMs *int   `json:"interval_ms,omitempty"`
}

func (m pingInitMessage) options(defaults session.Options) (session.Options, error) {
	if m.Type != "init" {
		return session.Options{}, errors.New("expected init message")
	}
	if _, err := icmp.ParseIPv4(m.Host); err != nil {
		return session.Options{}, err
	}

	opts := defaults
	opts.Host = m.Host
	if m.TimeoutMs != nil {
		opts.Timeout = time.Duration(*m.TimeoutMs) * time.Millisecond
	}
	if m.TTL != nil {
		opts.TTL = *m.TTL
	}
	if m.Size != nil {
		opts.Size = *m.Size
	}
	if m.Pattern != "" {
		pattern, err := icmp.ParsePattern(m.Pattern)
		if err != nil {
			return session.Options{}, err
		}
		opts.Pattern = pattern
	}
	if m.Count != nil {
		opts.Count = *m.Count
	}
	if m.IntervalMs != nil {
		opts.Interval = time.Duration(*m.IntervalMs) * time.Millisecond
	}

	if err := opts.Validate(); err != nil {
		return session.Options{}, err
	}
	return opts, nil
}

// wsListener turns session events into websocket messages. The first event
// of a session is either start (init_ack success) or a fatal exception
// (init_ack failure).
type wsListener struct {
	ctx context.Context
	out chan<- map[string]interface{}
}

func (l *wsListener) send(msg map[string]interface{}) {
	select {
	case l.out <- msg:
	case <-l.ctx.Done():
	}
}

func (l *wsListener) OnStart(info session.Info) {
	l.send(map[string]interface{}{
		"type":    "init_ack",
		"success": true,
		"session": info.ID,
		"host":    info.Addr.String(),
	})
}

func (l *wsListener) OnStop(info session.Info) {
	l.send(map[string]interface{}{
		"type":  "stop",
		"stats": info.Stats,
	})
}

func (l *wsListener) OnSendError(_ session.Info, seq uint16) {
	l.send(map[string]interface{}{
		"type":     "send_error",
		"sequence": seq,
	})
}

func (l *wsListener) OnReplyReceived(_ session.Info, seq uint16, elapsedMs int) {
	l.send(map[string]interface{}{
		"type":       "reply",
		"sequence":   seq,
		"elapsed_ms": elapsedMs,
	})
}

func (l *wsListener) OnTimeout(_ session.Info, seq uint16) {
	l.send(map[string]interface{}{
		"type":     "timeout",
		"sequence": seq,
	})
}

func (l *wsListener) OnException(_ session.Info, err error, fatal bool) {
	if fatal {
		l.send(map[string]interface{}{
			"type":    "init_ack",
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	l.send(map[string]interface{}{
		"type":  "error",
		"error": err.Error(),
		"fatal": false,
	})
}

// handlePingWebSocket runs one ping session per websocket connection.
// GET /ping
//
// The client sends an init message; the server answers with init_ack and
// then streams reply, timeout, send_error and error events, ending with
// stop. The client may send {"type":"stop"} or simply disconnect.
func (s *Server) handlePingWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.mgr == nil {
		http.Error(w, "ping not available", http.StatusServiceUnavailable)
		return
	}

	if limit := s.cfg.MaxSessions; limit > 0 && s.wsActive.Load() >= int64(limit) {
		if s.metrics != nil {
			s.metrics.RecordWebSocketRejected()
		}
		http.Error(w, "too many ping sessions", http.StatusServiceUnavailable)
		return
	}

	// Disable write deadline for long-lived WebSocket connections
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{PingSubprotocol},
	})
	if err != nil {
		s.logger.Debug("websocket accept failed", logging.KeyError, err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.wsActive.Add(1)
	defer s.wsActive.Add(-1)
	if s.metrics != nil {
		s.metrics.RecordWebSocketConnect()
		defer s.metrics.RecordWebSocketDisconnect()
	}

	conn.SetReadLimit(4096)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	logger := s.logger.With(logging.KeyRemoteAddr, r.RemoteAddr)

	_, initData, err := conn.Read(ctx)
	if err != nil {
		return
	}

	var initMsg pingInitMessage
	if err := json.Unmarshal(initData, &initMsg); err != nil {
		writeJSON(ctx, conn, initFailure("invalid init message"))
		conn.Close(websocket.StatusProtocolError, "invalid init message")
		return
	}

	opts, err := initMsg.options(s.cfg.Defaults)
	if err != nil {
		writeJSON(ctx, conn, initFailure(err.Error()))
		conn.Close(websocket.StatusPolicyViolation, "invalid session options")
		return
	}

	out := make(chan map[string]interface{}, 64)
	var recorder session.Recorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	pinger := session.New(s.mgr, &wsListener{ctx: ctx, out: out}, s.logger, session.WithRecorder(recorder))

	id, err := pinger.Start(ctx, opts)
	if err != nil {
		writeJSON(ctx, conn, initFailure(err.Error()))
		return
	}
	logger.Info("websocket ping session started", logging.KeyHost, opts.Host, logging.KeySession, id)

	// Client messages: stop requests, or a read error once the client leaves.
	go func() {
		defer recovery.RecoverWithLog(logger, "ws.reader")
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &msg) == nil && msg.Type == "stop" {
				pinger.Stop(id)
			}
		}
	}()

	sessionDone := make(chan struct{})
	go func() {
		_ = pinger.Wait(context.Background(), id)
		close(sessionDone)
	}()

	for {
		select {
		case msg := <-out:
			if err := writeJSON(ctx, conn, msg); err != nil {
				cancel()
			}
		case <-sessionDone:
			// The session has ended; flush what it queued.
			for {
				select {
				case msg := <-out:
					if writeJSON(ctx, conn, msg) != nil {
						return
					}
				default:
					logger.Info("websocket ping session ended", logging.KeySession, id)
					conn.Close(websocket.StatusNormalClosure, "session ended")
					return
				}
			}
		}
	}
}

func initFailure(msg string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "init_ack",
		"success": false,
		"error":   msg,
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

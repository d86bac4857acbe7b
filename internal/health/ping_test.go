package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/postalsys/pinger/internal/icmp/icmptest"
)

func startPingServer(t *testing.T, sockets *icmptest.Sockets, cfg ServerConfig) (*Server, string) {
	t.Helper()
	s := NewServer(cfg, &mockStatsProvider{running: true}, sockets.Manager())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.cancel()
		ts.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ping"
}

func dialPing(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{PingSubprotocol},
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	var msg map[string]interface{}
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return msg
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPingWebSocket_Count(t *testing.T) {
	ctx := testContext(t)
	_, url := startPingServer(t, icmptest.New(), DefaultServerConfig())
	conn := dialPing(t, ctx, url)

	if conn.Subprotocol() != PingSubprotocol {
		t.Errorf("Subprotocol() = %q, want %q", conn.Subprotocol(), PingSubprotocol)
	}

	err := wsjson.Write(ctx, conn, map[string]interface{}{
		"type":        "init",
		"host":        "192.0.2.33",
		"count":       3,
		"interval_ms": 0,
		"timeout_ms":  100,
		"pattern":     "abcd",
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	ack := readEvent(t, ctx, conn)
	if ack["type"] != "init_ack" || ack["success"] != true {
		t.Fatalf("first message = %v, want successful init_ack", ack)
	}
	if ack["host"] != "192.0.2.33" {
		t.Errorf("init_ack host = %v", ack["host"])
	}

	for seq := 1; seq <= 3; seq++ {
		msg := readEvent(t, ctx, conn)
		if msg["type"] != "reply" {
			t.Fatalf("message %d = %v, want reply", seq, msg)
		}
		if int(msg["sequence"].(float64)) != seq {
			t.Errorf("sequence = %v, want %d", msg["sequence"], seq)
		}
		if msg["elapsed_ms"].(float64) < 0 {
			t.Errorf("elapsed_ms = %v", msg["elapsed_ms"])
		}
	}

	stop := readEvent(t, ctx, conn)
	if stop["type"] != "stop" {
		t.Fatalf("last message = %v, want stop", stop)
	}
	stats := stop["stats"].(map[string]interface{})
	if stats["transmitted"].(float64) != 3 || stats["received"].(float64) != 3 {
		t.Errorf("stats = %v", stats)
	}

	_, _, err = conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("after stop Read() error = %v, want normal closure", err)
	}
}

func TestPingWebSocket_Timeouts(t *testing.T) {
	ctx := testContext(t)
	sockets := icmptest.New()
	sockets.Respond = func(netip.Addr, uint16) icmptest.Response {
		return icmptest.Response{Drop: true}
	}
	_, url := startPingServer(t, sockets, DefaultServerConfig())
	conn := dialPing(t, ctx, url)

	wsjson.Write(ctx, conn, map[string]interface{}{
		"type":        "init",
		"host":        "192.0.2.33",
		"count":       1,
		"timeout_ms":  20,
		"interval_ms": 0,
	})

	readEvent(t, ctx, conn)
	msg := readEvent(t, ctx, conn)
	if msg["type"] != "timeout" || msg["sequence"].(float64) != 1 {
		t.Errorf("message = %v, want timeout for sequence 1", msg)
	}
}

func TestPingWebSocket_InitFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not json", "ping 1.2.3.4", "invalid init message"},
		{"wrong type", `{"type":"echo","host":"192.0.2.1"}`, "expected init message"},
		{"hostname", `{"type":"init","host":"example.com"}`, "invalid IPv4 address"},
		{"bad ttl", `{"type":"init","host":"192.0.2.1","ttl":0}`, "ttl"},
		{"bad pattern", `{"type":"init","host":"192.0.2.1","pattern":"zz"}`, "invalid pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			_, url := startPingServer(t, icmptest.New(), DefaultServerConfig())
			conn := dialPing(t, ctx, url)

			if err := conn.Write(ctx, websocket.MessageText, []byte(tt.payload)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			ack := readEvent(t, ctx, conn)
			if ack["type"] != "init_ack" || ack["success"] != false {
				t.Fatalf("message = %v, want failed init_ack", ack)
			}
			if !strings.Contains(ack["error"].(string), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", ack["error"], tt.wantErr)
			}
		})
	}
}

func TestPingWebSocket_SocketFailure(t *testing.T) {
	ctx := testContext(t)
	sockets := icmptest.New()
	sockets.SocketErr = errors.New("operation not permitted")
	_, url := startPingServer(t, sockets, DefaultServerConfig())
	conn := dialPing(t, ctx, url)

	wsjson.Write(ctx, conn, map[string]interface{}{"type": "init", "host": "192.0.2.1"})

	ack := readEvent(t, ctx, conn)
	if ack["success"] != false || !strings.Contains(ack["error"].(string), "socket error") {
		t.Errorf("message = %v, want failed init_ack with socket error", ack)
	}
}

func TestPingWebSocket_ClientStop(t *testing.T) {
	ctx := testContext(t)
	sockets := icmptest.New()
	_, url := startPingServer(t, sockets, DefaultServerConfig())
	conn := dialPing(t, ctx, url)

	wsjson.Write(ctx, conn, map[string]interface{}{
		"type":        "init",
		"host":        "192.0.2.1",
		"interval_ms": 10,
	})

	readEvent(t, ctx, conn) // init_ack
	readEvent(t, ctx, conn) // first reply

	if err := wsjson.Write(ctx, conn, map[string]string{"type": "stop"}); err != nil {
		t.Fatalf("Write(stop) error = %v", err)
	}

	for {
		msg := readEvent(t, ctx, conn)
		if msg["type"] == "stop" {
			break
		}
		if msg["type"] != "reply" {
			t.Fatalf("unexpected message %v", msg)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for sockets.OpenCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sockets.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d after client stop, want 0", sockets.OpenCount())
	}
}

func TestPingWebSocket_MaxSessions(t *testing.T) {
	ctx := testContext(t)
	cfg := DefaultServerConfig()
	cfg.MaxSessions = 1
	_, url := startPingServer(t, icmptest.New(), cfg)

	first := dialPing(t, ctx, url)
	wsjson.Write(ctx, first, map[string]interface{}{
		"type":        "init",
		"host":        "192.0.2.1",
		"interval_ms": 50,
	})
	readEvent(t, ctx, first)

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{PingSubprotocol},
	})
	if err == nil {
		t.Fatal("second Dial() succeeded past the session limit")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second Dial() response = %v, want 503", resp)
	}
}

func TestPingWebSocket_ServerStopEndsSession(t *testing.T) {
	ctx := testContext(t)
	sockets := icmptest.New()
	s, url := startPingServer(t, sockets, DefaultServerConfig())
	conn := dialPing(t, ctx, url)

	wsjson.Write(ctx, conn, map[string]interface{}{
		"type":        "init",
		"host":        "192.0.2.1",
		"interval_ms": 10,
	})
	readEvent(t, ctx, conn)

	s.cancel()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if ctx.Err() != nil {
				t.Fatal("connection still open after the server stopped")
			}
			break
		}
	}
}

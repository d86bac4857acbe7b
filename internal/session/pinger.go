// Package session runs repeated echo probes against one destination and
// reports each outcome to a Listener.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/postalsys/pinger/internal/icmp"
	"github.com/postalsys/pinger/internal/logging"
	"github.com/postalsys/pinger/internal/recovery"
)

// Session end results passed to Recorder.RecordSessionEnd.
const (
	ResultCompleted = "completed"
	ResultStopped   = "stopped"
	ResultFailed    = "failed"
)

// Recorder observes session lifecycles. internal/metrics implements it.
type Recorder interface {
	RecordSessionStart()
	RecordSessionEnd(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSessionStart()     {}
func (nopRecorder) RecordSessionEnd(string) {}

// Option configures a Pinger.
type Option func(*Pinger)

// WithRecorder sets the session recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pinger) {
		if r != nil {
			p.recorder = r
		}
	}
}

// Pinger runs ping sessions, each in its own goroutine with its own socket.
type Pinger struct {
	mgr      *icmp.Manager
	listener Listener
	logger   *slog.Logger
	recorder Recorder

	mu       sync.Mutex
	lastID   int
	sessions map[int]*run
	wg       sync.WaitGroup
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Pinger probing through mgr. A nil listener discards events.
func New(mgr *icmp.Manager, l Listener, logger *slog.Logger, opts ...Option) *Pinger {
	if l == nil {
		l = ListenerFuncs{}
	}
	p := &Pinger{
		mgr:      mgr,
		listener: l,
		logger:   logging.Component(logger, "session"),
		recorder: nopRecorder{},
		sessions: make(map[int]*run),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches a session and returns its ID. Invalid options are
// returned as an error; an unusable host or a socket that cannot be opened
// is reported as a fatal OnException from the session goroutine.
// The session ends when ctx is done, on Stop or after Count probes.
func (p *Pinger) Start(ctx context.Context, opts Options) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, fmt.Errorf("invalid session options: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.lastID++
	id := p.lastID
	p.sessions[id] = r
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer recovery.RecoverWithLog(p.logger, "session")
		defer close(r.done)
		defer func() {
			cancel()
			p.mu.Lock()
			delete(p.sessions, id)
			p.mu.Unlock()
		}()

		p.run(ctx, id, opts)
	}()

	return id, nil
}

// Stop ends the session. It reports false for unknown or finished sessions.
// Stop does not wait; use Wait for that.
func (p *Pinger) Stop(id int) bool {
	p.mu.Lock()
	r, ok := p.sessions[id]
	p.mu.Unlock()

	if ok {
		r.cancel()
	}
	return ok
}

// StopAll ends every running session.
func (p *Pinger) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.sessions {
		r.cancel()
	}
}

// Wait blocks until the session ends or ctx is done.
func (p *Pinger) Wait(ctx context.Context, id int) error {
	p.mu.Lock()
	r, ok := p.sessions[id]
	p.mu.Unlock()

	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops all sessions and waits for them to finish.
func (p *Pinger) Close() {
	p.StopAll()
	p.wg.Wait()
}

// Active returns the number of running sessions.
func (p *Pinger) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Pinger) run(ctx context.Context, id int, opts Options) {
	p.recorder.RecordSessionStart()
	result := ResultFailed
	defer func() { p.recorder.RecordSessionEnd(result) }()

	logger := p.logger.With(logging.KeySession, id, logging.KeyHost, opts.Host)

	info := Info{
		ID:      id,
		Host:    opts.Host,
		Handle:  icmp.InvalidHandle,
		Size:    opts.Size,
		TTL:     opts.TTL,
		Timeout: opts.Timeout,
	}

	addr, err := icmp.ParseIPv4(opts.Host)
	if err != nil {
		logger.Warn("invalid destination", logging.KeyError, err)
		p.listener.OnException(info, err, true)
		return
	}
	info.Addr = addr

	h, err := p.mgr.Open(addr.String(), int(opts.Timeout/time.Millisecond), opts.TTL)
	if err != nil {
		logger.Warn("failed to open socket", logging.KeyError, err)
		p.listener.OnException(info, err, true)
		return
	}
	info.Handle = h

	// Closing the socket is what releases a probe blocked in receive, so
	// it happens as soon as the session is cancelled.
	var closeOnce sync.Once
	closeSocket := func() {
		closeOnce.Do(func() { _ = p.mgr.Close(h) })
	}
	defer closeSocket()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			closeSocket()
		case <-finished:
		}
	}()

	logger.Info("session started", logging.KeyHandle, int(h))
	p.listener.OnStart(info)

	var stats Statistics
	limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)
	seq := uint16(1)

	result = ResultStopped
	for n := 0; opts.Count == 0 || n < opts.Count; n++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		res := p.mgr.ProbeContext(ctx, h, seq, opts.Size, opts.Pattern)
		if ctx.Err() != nil {
			break
		}

		stats.Record(res)
		info.Stats = stats.Summary()
		p.dispatch(info, res)
		seq++
	}
	if ctx.Err() == nil {
		result = ResultCompleted
	}

	info.Stats = stats.Summary()
	logger.Info("session stopped",
		logging.KeyCount, info.Stats.Transmitted,
		"received", info.Stats.Received)
	p.listener.OnStop(info)
}

func (p *Pinger) dispatch(info Info, res icmp.Result) {
	switch res.Outcome {
	case icmp.OutcomeReply:
		p.listener.OnReplyReceived(info, res.Sequence, res.ElapsedMs)
	case icmp.OutcomeTimeout:
		p.listener.OnTimeout(info, res.Sequence)
	case icmp.OutcomeSendError:
		p.listener.OnSendError(info, res.Sequence)
	default:
		p.listener.OnException(info, res.Err, false)
	}
}

package report

import (
	"log/slog"

	"github.com/postalsys/pinger/internal/logging"
	"github.com/postalsys/pinger/internal/session"
)

// LogListener is a session.Listener that writes events to a structured
// logger. Replies log at debug level so a long-running service stays quiet.
type LogListener struct {
	logger *slog.Logger
}

// NewLogListener creates a LogListener. A nil logger discards events.
func NewLogListener(logger *slog.Logger) *LogListener {
	return &LogListener{logger: logging.Component(logger, "report")}
}

func (l *LogListener) with(info session.Info) *slog.Logger {
	return l.logger.With(logging.KeySession, info.ID, logging.KeyHost, info.Host)
}

func (l *LogListener) OnStart(info session.Info) {
	l.with(info).Info("probing", "size", info.Size, "ttl", info.TTL, "timeout", info.Timeout)
}

func (l *LogListener) OnStop(info session.Info) {
	st := info.Stats
	l.with(info).Info("probing stopped",
		"transmitted", st.Transmitted,
		"received", st.Received,
		"loss_percent", st.LossPercent,
		"avg_ms", st.AvgMs)
}

func (l *LogListener) OnSendError(info session.Info, seq uint16) {
	l.with(info).Warn("send failed", logging.KeySequence, seq)
}

func (l *LogListener) OnReplyReceived(info session.Info, seq uint16, elapsedMs int) {
	l.with(info).Debug("reply", logging.KeySequence, seq, logging.KeyElapsed, elapsedMs)
}

func (l *LogListener) OnTimeout(info session.Info, seq uint16) {
	l.with(info).Warn("timeout", logging.KeySequence, seq)
}

func (l *LogListener) OnException(info session.Info, err error, fatal bool) {
	if fatal {
		l.with(info).Error("probing failed", logging.KeyError, err)
		return
	}
	l.with(info).Warn("probe error", logging.KeyError, err)
}

var _ session.Listener = (*LogListener)(nil)

// Package recovery keeps a panicking session or connection goroutine from
// taking the whole process down.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/postalsys/pinger/internal/logging"
)

// Error is a recovered panic.
type Error struct {
	Goroutine string
	Value     any
	Stack     []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Goroutine, e.Value)
}

// RecoverWithLog recovers from a panic and logs it with its stack. It must
// be deferred directly:
//
//	go func() {
//	    defer recovery.RecoverWithLog(logger, "ws.reader")
//	    ...
//	}()
func RecoverWithLog(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
	}
}

// RecoverWithCallback is RecoverWithLog that also hands the panic to
// callback, if set.
func RecoverWithCallback(logger *slog.Logger, name string, callback func(*Error)) {
	if r := recover(); r != nil {
		e := logPanic(logger, name, r)
		if callback != nil {
			callback(e)
		}
	}
}

func logPanic(logger *slog.Logger, name string, r any) *Error {
	e := &Error{Goroutine: name, Value: r, Stack: debug.Stack()}
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger.Error("panic recovered",
		"goroutine", name,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(e.Stack))
	return e
}

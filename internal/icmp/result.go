package icmp

import "time"

// Outcome classifies a probe or open attempt.
type Outcome int

const (
	// OutcomeReply means a datagram arrived within the timeout.
	OutcomeReply Outcome = iota
	// OutcomeSocketError means the socket could not be opened or configured.
	OutcomeSocketError
	// OutcomeSendError means the request was not sent; no receive was attempted.
	OutcomeSendError
	// OutcomeTimeout means nothing was received before the receive timeout.
	OutcomeTimeout
	// OutcomeInvalidHandle means the handle has no destination binding.
	OutcomeInvalidHandle
	// OutcomeClockError means the measured elapsed time was negative.
	OutcomeClockError
)

// Legacy sentinel codes returned at the integer boundary.
const (
	CodeSocketError = -1
	CodeSendError   = -1
	CodeTimeout     = -2
)

// String returns a stable label, also used as a metrics label value.
func (o Outcome) String() string {
	switch o {
	case OutcomeReply:
		return "reply"
	case OutcomeSocketError:
		return "socket_error"
	case OutcomeSendError:
		return "send_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeInvalidHandle:
		return "invalid_handle"
	case OutcomeClockError:
		return "clock_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one probe.
type Result struct {
	Outcome Outcome

	// Sequence is the sequence number that was requested.
	Sequence uint16

	// ElapsedMs is the round-trip time in whole milliseconds (OutcomeReply only).
	ElapsedMs int

	// Elapsed is the untruncated round-trip time (OutcomeReply only).
	Elapsed time.Duration

	// Err describes the failure; nil for OutcomeReply.
	Err error

	// Reply is the decoded reply datagram, if it could be parsed.
	Reply *EchoReply
}

// OK reports whether the probe received a reply.
func (r Result) OK() bool {
	return r.Outcome == OutcomeReply
}

// Code maps the result onto the legacy integer contract: elapsed
// milliseconds on success, -2 on timeout and -1 on every other failure.
func (r Result) Code() int {
	switch r.Outcome {
	case OutcomeReply:
		return r.ElapsedMs
	case OutcomeTimeout:
		return CodeTimeout
	default:
		return CodeSendError
	}
}

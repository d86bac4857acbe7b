package session

import (
	"math"
	"time"

	"github.com/postalsys/pinger/internal/icmp"
)

// Statistics accumulates probe outcomes the way ping(8) summarizes them.
// Round-trip times use the untruncated elapsed time.
type Statistics struct {
	transmitted int
	received    int
	errors      int

	min, max   time.Duration
	sum, sumSq float64 // milliseconds
}

// Summary is a JSON-friendly snapshot of Statistics.
type Summary struct {
	Transmitted int     `json:"transmitted"`
	Received    int     `json:"received"`
	Errors      int     `json:"errors"`
	LossPercent float64 `json:"loss_percent"`
	MinMs       float64 `json:"min_ms"`
	AvgMs       float64 `json:"avg_ms"`
	MaxMs       float64 `json:"max_ms"`
	StdDevMs    float64 `json:"stddev_ms"`
}

// Record adds one probe result. Requests that never left the host count as
// errors, not as transmitted.
func (s *Statistics) Record(r icmp.Result) {
	switch r.Outcome {
	case icmp.OutcomeReply:
		s.transmitted++
		s.received++
		s.addRTT(r.Elapsed)
	case icmp.OutcomeTimeout:
		s.transmitted++
	case icmp.OutcomeClockError:
		s.transmitted++
		s.errors++
	default:
		s.errors++
	}
}

func (s *Statistics) addRTT(d time.Duration) {
	if s.received == 1 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	ms := durationMs(d)
	s.sum += ms
	s.sumSq += ms * ms
}

// Summary returns the current totals.
func (s *Statistics) Summary() Summary {
	sum := Summary{
		Transmitted: s.transmitted,
		Received:    s.received,
		Errors:      s.errors,
	}
	if s.transmitted > 0 {
		sum.LossPercent = float64(s.transmitted-s.received) / float64(s.transmitted) * 100
	}
	if s.received > 0 {
		n := float64(s.received)
		avg := s.sum / n
		sum.MinMs = durationMs(s.min)
		sum.MaxMs = durationMs(s.max)
		sum.AvgMs = avg
		sum.StdDevMs = math.Sqrt(math.Max(s.sumSq/n-avg*avg, 0))
	}
	return sum
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

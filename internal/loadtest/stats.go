package loadtest

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sanonone/routesim/internal/protocol"
)

// outcome classifies one command round-trip.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeRejected
	outcomeTimeout
	outcomeFailed
)

// outcomeOf maps an error to its statistics bucket. A protocol rejection
// (ERR NO_ROUTE and friends) is a valid server answer, not a failure.
func outcomeOf(err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, protocol.ErrNoRoute):
		return outcomeRejected
	default:
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return outcomeTimeout
		}
		return outcomeFailed
	}
}

// Stats accumulates command outcomes and latencies across the concurrent
// clients of one command type.
type Stats struct {
	mu        sync.Mutex
	ok        int
	rejected  int
	timeouts  int
	failed    int
	latencies []float64 // milliseconds
}

func NewStats() *Stats { return &Stats{} }

// Record books one command's latency and outcome.
func (s *Stats) Record(d time.Duration, o outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, float64(d.Microseconds())/1000.0)
	switch o {
	case outcomeOK:
		s.ok++
	case outcomeRejected:
		s.rejected++
	case outcomeTimeout:
		s.timeouts++
	default:
		s.failed++
	}
}

// Total returns how many commands were recorded.
func (s *Stats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ok + s.rejected + s.timeouts + s.failed
}

// Failed returns the count of unexpected failures (not rejections, not
// timeouts).
func (s *Stats) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Timeouts returns the count of timed-out commands.
func (s *Stats) Timeouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeouts
}

// Quantile returns the p-quantile (0..1) of the recorded latencies in
// milliseconds, NaN when nothing was recorded.
func (s *Stats) Quantile(p float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := append([]float64(nil), s.latencies...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Format renders one stats block the way the reports expect it.
func (s *Stats) Format(name string, elapsed time.Duration) string {
	s.mu.Lock()
	ok, rejected, timeouts, failed := s.ok, s.rejected, s.timeouts, s.failed
	n := len(s.latencies)
	s.mu.Unlock()

	total := ok + rejected + timeouts + failed
	out := fmt.Sprintf("[%s] total=%d ok=%d rejected=%d timeouts=%d failed=%d",
		name, total, ok, rejected, timeouts, failed)
	if n > 0 {
		out += fmt.Sprintf("\n[%s] latency ms: p50=%.2f p90=%.2f p99=%.2f max=%.2f",
			name, s.Quantile(0.50), s.Quantile(0.90), s.Quantile(0.99), s.Quantile(1.0))
		if elapsed > 0 {
			out += fmt.Sprintf("\n[%s] throughput: %.2f ops/sec (elapsed %.2fs)",
				name, float64(total)/elapsed.Seconds(), elapsed.Seconds())
		}
	}
	return out
}

// String renders the whole report.
func (r *Report) String() string {
	return r.Req.Format("REQ", r.Elapsed) + "\n\n" +
		r.Upd.Format("UPD", r.Elapsed) + "\n\n" +
		r.Pred.Format("PRED", r.Elapsed)
}

// Passed reports whether the run completed without unexpected failures.
func (r *Report) Passed() bool {
	return r.Req.Failed() == 0 && r.Upd.Failed() == 0 && r.Pred.Failed() == 0
}

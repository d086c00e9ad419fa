// Package lifecycle tracks the process phase reported by /health.
package lifecycle

import "sync/atomic"

// Phase is the coarse process state.
type Phase int32

const (
	Running Phase = iota
	Draining
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// SetPhase records the current process phase.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// CurrentPhase returns the recorded process phase.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// SetShuttingDown moves the process into Draining (true) or back to Running (false).
// Health returns 503 shutting-down while draining or stopped.
func SetShuttingDown(v bool) {
	if v {
		SetPhase(Draining)
		return
	}
	SetPhase(Running)
}

// IsShuttingDown reports whether the process should stop receiving traffic.
func IsShuttingDown() bool {
	return CurrentPhase() != Running
}

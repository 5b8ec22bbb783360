package agent

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/nvlockd/nvlockd/internal/obslog"
)

// Telemetry reports whether the process appears to be actively using the
// GPU, for the idle watcher's "if telemetry is available" branch (spec.md
// §4.7). The real implementation would read an NVML/ROCm per-process
// utilization counter; that counter lives behind the out-of-scope driver
// ABI (spec.md §1), so this reads the owning process's CPU-time as a
// stand-in, on the reasoning that a process driving the GPU is also
// spending host CPU time queuing work for it.
type Telemetry interface {
	// Utilized reports whether the process has shown non-zero activity
	// since the previous call. ok is false when telemetry could not be
	// read at all, signaling the caller to use the synchronize-timing
	// fallback instead (spec.md §7(v)).
	Utilized() (busy bool, ok bool)
}

// processTelemetry backs Telemetry with gopsutil's per-process CPU
// accounting (grounded on the teacher's pulse/async system-metrics helper,
// which reads host-wide memory through the same package).
type processTelemetry struct {
	proc *process.Process
}

// NewProcessTelemetry constructs a Telemetry reading the current process's
// own CPU usage. It never fails at construction time; a later read failure
// is reported through Utilized's ok return instead.
func NewProcessTelemetry() Telemetry {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		obslog.Named("agent.telemetry").Warnw("cannot open process handle, telemetry disabled", "error", err)
		return &processTelemetry{}
	}
	return &processTelemetry{proc: p}
}

func (t *processTelemetry) Utilized() (busy bool, ok bool) {
	if t.proc == nil {
		return false, false
	}
	pct, err := t.proc.Percent(0)
	if err != nil {
		obslog.Named("agent.telemetry").Debugw("telemetry read failed, falling back to sync timing", "error", err)
		return false, false
	}
	return pct > 0, true
}

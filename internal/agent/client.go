package agent

import (
	"errors"
	"time"

	"github.com/nvlockd/nvlockd/internal/wire"
)

// idleCheckInterval matches spec.md §4.7's "periodically (every ~5 s)".
const idleCheckInterval = 5 * time.Second

// idleSyncThreshold is the fallback heuristic's cutoff (spec.md §4.7/§7(v)):
// a context-synchronize that takes longer than this is treated as proof
// the process is still working, when telemetry is unavailable.
const idleSyncThreshold = 100 * time.Millisecond

// ErrAgentClosed is returned by continueWithLock when the agent has been
// torn down while a caller was waiting for the lock.
var ErrAgentClosed = errors.New("agent: closed")

// continueWithLock is the gating primitive every intercepted
// work-submission call uses (spec.md §4.7). In permissive mode ownsLock is
// always true, so this returns immediately.
func (a *Agent) continueWithLock() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ctxCaptured {
		// Lazily capture the process's GPU execution context handle. The
		// concrete handle is driver-ABI-specific and out of scope (spec.md
		// §1); only the "capture once" semantics survive the reimplementation.
		a.ctxCaptured = true
	}

	for !a.ownsLock {
		if a.closed {
			return ErrAgentClosed
		}
		if !a.requestedLock {
			if err := a.sendLocked(wire.Frame{Type: wire.REQ_LOCK}); err != nil {
				return err
			}
			a.requestedLock = true
			a.state = WaitingForLock
		}
		a.ownLockCond.Wait()
	}

	a.didWork = true
	return nil
}

// receiveLoop owns the scheduler connection and applies every incoming
// frame in order (spec.md §4.7 "receiver thread").
func (a *Agent) receiveLoop() {
	defer a.wg.Done()
	for {
		f, err := wire.Decode(a.conn)
		if err != nil {
			a.log.Infow("scheduler connection closed, terminating", "error", err)
			a.mu.Lock()
			a.closed = true
			a.ownLockCond.Broadcast()
			a.mu.Unlock()
			return
		}
		a.handleFrame(f)
	}
}

func (a *Agent) handleFrame(f wire.Frame) {
	switch f.Type {
	case wire.LOCK_OK:
		a.mu.Lock()
		a.ownsLock = true
		a.requestedLock = false
		a.didWork = true
		a.state = HoldingLock
		a.ownLockCond.Broadcast()
		a.mu.Unlock()
		a.window.reset()

	case wire.DROP_LOCK:
		a.mu.Lock()
		held := a.ownsLock
		if held {
			a.ownsLock = false
		}
		a.mu.Unlock()
		if !held {
			return
		}
		// Synchronize outside the lock: no intercepted call (and
		// Synchronize counts as one) may run with a.mu held (spec.md §5).
		if err := a.hooks.Driver().Synchronize(); err != nil {
			a.log.Warnw("synchronize before drop failed", "error", err)
		}
		a.mu.Lock()
		a.state = IdleWithoutLock
		err := a.sendLocked(wire.Frame{Type: wire.LOCK_RELEASED})
		a.mu.Unlock()
		if err != nil {
			a.log.Warnw("send LOCK_RELEASED after drop failed", "error", err)
		}

	case wire.SCHED_ON:
		a.mu.Lock()
		a.schedMode = antiThrash
		a.ownsLock = false
		a.requestedLock = false
		a.state = IdleWithoutLock
		a.ownLockCond.Broadcast()
		a.mu.Unlock()

	case wire.SCHED_OFF:
		a.mu.Lock()
		a.schedMode = permissive
		a.ownsLock = true
		a.requestedLock = false
		a.state = Permissive
		a.ownLockCond.Broadcast()
		a.mu.Unlock()
		a.window.reset()

	default:
		a.log.Debugw("ignoring unexpected frame", "type", f.Type)
	}
}

// idleWatchLoop periodically releases the lock early when the process
// appears to have gone idle (spec.md §4.7 "idle watcher thread").
func (a *Agent) idleWatchLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.checkIdle()
		}
	}
}

func (a *Agent) checkIdle() {
	a.mu.Lock()
	if a.schedMode != antiThrash || !a.ownsLock {
		a.didWork = false
		a.mu.Unlock()
		return
	}
	workedSinceLastTick := a.didWork
	a.didWork = false
	a.mu.Unlock()

	if workedSinceLastTick {
		return
	}

	if a.stillBusy() {
		return
	}

	a.mu.Lock()
	if a.schedMode == antiThrash && a.ownsLock {
		a.ownsLock = false
		a.state = IdleWithoutLock
		if err := a.sendLocked(wire.Frame{Type: wire.LOCK_RELEASED}); err != nil {
			a.log.Warnw("send early LOCK_RELEASED failed", "error", err)
		} else {
			a.log.Debugw("released lock early, process appears idle")
		}
	}
	a.mu.Unlock()
}

// stillBusy reports whether the process should be treated as still
// working, preferring telemetry and degrading to the synchronize-timing
// fallback (spec.md §4.7/§7(v)) when telemetry cannot be read.
func (a *Agent) stillBusy() bool {
	if a.telemetry != nil {
		if busy, ok := a.telemetry.Utilized(); ok {
			return busy
		}
	}
	start := time.Now()
	if err := a.hooks.Driver().Synchronize(); err != nil {
		a.log.Warnw("idle-check synchronize failed", "error", err)
	}
	return time.Since(start) > idleSyncThreshold
}

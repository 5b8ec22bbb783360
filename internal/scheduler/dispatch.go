package scheduler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nvlockd/nvlockd/internal/wire"
)

// handleMessage implements spec.md §4.3. Each case documents exactly the
// boundary behavior the spec names.
func (s *Scheduler) handleMessage(c *Client, f wire.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch f.Type {
	case wire.REGISTER:
		s.handleRegisterLocked(c, f)
	case wire.SCHED_ON:
		s.handleModeLocked(AntiThrash)
	case wire.SCHED_OFF:
		s.handleModeLocked(Permissive)
	case wire.SET_TQ:
		s.handleSetTQLocked(f)
	case wire.REQ_LOCK:
		s.handleReqLockLocked(c)
	case wire.LOCK_RELEASED:
		s.handleLockReleasedLocked(c)
	default:
		// Unregistered or unknown message type: drop the client.
		s.removeClientLocked(c)
	}
}

func (s *Scheduler) handleRegisterLocked(c *Client, f wire.Frame) {
	if c.registered {
		// Duplicate registration is a protocol violation (spec.md §7(i)).
		s.removeClientLocked(c)
		return
	}

	id := s.newClientIDLocked()
	c.id = id
	c.registered = true
	c.podName = orDefault(f.PodName, "none")
	c.podNamespace = orDefault(f.PodNamespace, "none")

	reply := wire.Frame{
		Type: s.mode.wireType(),
		ID:   uint64(id),
		Data: fmt.Sprintf("%016x", uint64(id)),
	}
	if err := s.sendLocked(c, reply); err != nil {
		s.removeClientLocked(c)
		return
	}
	s.log.Infow("client registered", "client_id", reply.Data, "pod", c.podName, "namespace", c.podNamespace, "mode", s.mode)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// handleModeLocked implements the SCHED_ON/SCHED_OFF administrative
// messages (spec.md §4.3): broadcast only on an actual change, and on a
// transition to permissive, empty the FCFS queue and clear lockHeld
// because every client now believes it holds the lock simultaneously.
func (s *Scheduler) handleModeLocked(newMode Mode) {
	if s.mode == newMode {
		return
	}
	s.mode = newMode
	s.broadcastModeLocked()

	if newMode == Permissive {
		s.queue = s.queue[:0]
		s.lockHeld = false
	} else if !s.lockHeld {
		s.grantLocked()
	}
}

func (s *Scheduler) broadcastModeLocked() {
	f := wire.Frame{Type: s.mode.wireType()}
	for c := range s.clients {
		if !c.registered {
			continue
		}
		f.ID = uint64(c.id)
		if err := s.sendLocked(c, f); err != nil {
			s.removeClientLocked(c)
		}
	}
}

// handleSetTQLocked implements spec.md §4.3 SET_TQ: a non-positive,
// malformed, or missing data field is silently ignored.
func (s *Scheduler) handleSetTQLocked(f wire.Frame) {
	secs, err := strconv.Atoi(f.Data)
	if err != nil || secs <= 0 {
		return
	}
	s.quantum = secondsToDuration(secs)
	s.resetPending = true
	s.timerCond.Broadcast()
	s.log.Infow("time quantum updated", "seconds", secs)
}

// SetTimeQuantum lets startup config (or its hot-reload watcher) seed the
// default quantum outside of the wire protocol; SET_TQ remains the
// authoritative runtime mechanism (spec.md §4.3).
func (s *Scheduler) SetTimeQuantum(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.quantum = d
	s.resetPending = true
	s.timerCond.Broadcast()
}

// handleReqLockLocked implements spec.md §4.3 REQ_LOCK. A message from an
// unregistered client is a protocol violation (spec.md §7(i)) and drops the
// client; a registered client in permissive mode is just ignored (spec.md
// §8 "Attempt to REQ_LOCK in permissive mode is ignored").
func (s *Scheduler) handleReqLockLocked(c *Client) {
	if !c.registered {
		s.removeClientLocked(c)
		return
	}
	if s.mode != AntiThrash {
		return
	}
	if !s.enqueuedLocked(c) {
		s.queue = append(s.queue, c)
	}
	if !s.lockHeld {
		s.grantLocked()
	}
}

// handleLockReleasedLocked implements spec.md §4.3 LOCK_RELEASED, with the
// same unregistered-vs-wrong-mode split as handleReqLockLocked.
func (s *Scheduler) handleLockReleasedLocked(c *Client) {
	if !c.registered {
		s.removeClientLocked(c)
		return
	}
	if s.mode != AntiThrash {
		return
	}
	s.dequeueLocked(c)
	if !s.lockHeld {
		s.grantLocked()
	}
}

package scheduler

import (
	"fmt"
	"time"

	"github.com/nvlockd/nvlockd/internal/wire"
)

// timerLoop enforces the time quantum (spec.md §4.5). It holds s.mu for its
// entire lifetime except while blocked in s.timerCond.Wait, which is the
// direct Go equivalent of the spec's "cooperates with the dispatcher
// through the global mutex and a condition variable."
func (s *Scheduler) timerLoop() {
	defer s.wg.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.closed {
		round := s.round
		deadline := time.Now().Add(s.quantum)
		s.resetPending = false

		// A one-shot wake-up for the deadline; re-armed every iteration.
		// Stopped before the loop re-checks state so a stale firing from a
		// previous iteration can never be mistaken for this one's deadline.
		deadlineTimer := time.AfterFunc(s.quantum, func() {
			s.mu.Lock()
			s.timerCond.Broadcast()
			s.mu.Unlock()
		})

		for !s.closed && !s.resetPending && time.Now().Before(deadline) {
			s.timerCond.Wait()
		}
		deadlineTimer.Stop()

		if s.closed {
			return
		}
		if s.resetPending {
			// Signalled with "reset" flag set: a new grant or a quantum
			// change. Restart the loop with a fresh deadline.
			continue
		}

		// Deadline reached. Round safety (spec.md §4.5, invariant 2): only
		// act if the round we armed for is still current.
		if s.lockHeld && s.round == round {
			s.dropLockLocked()

			// Never send DROP_LOCK more than once per round: block here
			// until either the round changes (a grant, meaning the holder
			// released or was removed) or resetPending is raised (a new
			// grant or a SET_TQ), instead of falling through to the top
			// of the loop and arming a second deadline for this round.
			for !s.closed && !s.resetPending && s.round == round {
				s.timerCond.Wait()
			}
		}
	}
}

// dropLockLocked implements spec.md §4.5's deadline-reached branch: ask the
// current holder to drop the lock, or if that fails, remove it and grant
// to the next in line.
func (s *Scheduler) dropLockLocked() {
	holder := s.currentHolderLocked()
	if holder == nil {
		return
	}
	if err := s.sendLocked(holder, wire.Frame{Type: wire.DROP_LOCK, ID: uint64(holder.id)}); err != nil {
		s.removeClientLocked(holder)
		s.grantLocked()
		return
	}
	s.log.Infow("time quantum elapsed, requested drop", "client_id", fmt.Sprintf("%016x", uint64(holder.id)), "round", s.round)
}

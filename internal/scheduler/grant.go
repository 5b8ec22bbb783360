package scheduler

import (
	"fmt"

	"github.com/nvlockd/nvlockd/internal/wire"
)

// grantLocked implements the grant procedure of spec.md §4.4. Caller must
// hold s.mu.
func (s *Scheduler) grantLocked() {
	for len(s.queue) > 0 {
		head := s.queue[0]
		if err := s.sendLocked(head, wire.Frame{Type: wire.LOCK_OK, ID: uint64(head.id)}); err != nil {
			s.removeClientLocked(head)
			continue
		}

		s.round++
		s.lockHeld = true
		s.resetPending = true
		s.timerCond.Broadcast()
		s.log.Infow("lock granted", "client_id", fmt.Sprintf("%016x", uint64(head.id)), "round", s.round)
		return
	}
}

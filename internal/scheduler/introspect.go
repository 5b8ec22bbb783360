package scheduler

import "time"

// Snapshot is a point-in-time, lock-consistent view of scheduler state,
// useful for tests and for an operator status command.
type Snapshot struct {
	Mode        Mode
	TimeQuantum time.Duration
	LockHeld    bool
	Round       uint64
	QueueLen    int
	Holder      ClientID
}

// Status returns a Snapshot of the current scheduler state.
func (s *Scheduler) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Mode:        s.mode,
		TimeQuantum: s.quantum,
		LockHeld:    s.lockHeld,
		Round:       s.round,
		QueueLen:    len(s.queue),
	}
	if h := s.currentHolderLocked(); h != nil {
		snap.Holder = h.id
	}
	return snap
}

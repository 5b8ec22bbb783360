package scheduler

import (
	"errors"
	"net"
)

// Serve runs the accept loop against an already-bound listener (spec.md
// §4.2 "Listening endpoint readable"), blocking until the listener is
// closed. Each accepted connection is handed to Accept, which spawns its
// own read-loop goroutine.
func (s *Scheduler) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.Accept(conn)
	}
}

// Package scheduler implements the broker half of nvlockd: the FCFS,
// time-quantum-bounded GPU lock arbiter described in spec.md §3–§5.
//
// A single global mutex (Scheduler.mu) serializes every mutation of shared
// state (client set, FCFS queue, mode, quantum, round counter, lock-held
// flag), matching the C original's single-dispatcher-thread design
// (spec.md §4.2, §5). Go's net package already gives non-blocking,
// concurrent I/O across many connections for free, so the idiomatic
// translation of "one dispatcher thread over a non-blocking multiplexer"
// is one goroutine per accepted connection plus this one mutex — not a
// hand-rolled epoll loop.
package scheduler

import (
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvlockd/nvlockd/internal/obslog"
	"github.com/nvlockd/nvlockd/internal/wire"
)

// Config configures a Scheduler at startup (spec.md §3's time_quantum_s
// default, plus the starting mode).
type Config struct {
	TimeQuantum       time.Duration
	StartInAntiThrash bool
	// MaxAcceptsPerMinute bounds the connection accept rate; 0 disables it.
	MaxAcceptsPerMinute int
}

// Scheduler holds all broker-side state (spec.md §3 "Scheduler state").
type Scheduler struct {
	log *zap.SugaredLogger

	mu        sync.Mutex
	timerCond *sync.Cond

	mode    Mode
	quantum time.Duration

	lockHeld     bool
	round        uint64
	resetPending bool
	closed       bool

	queue   []*Client
	clients map[*Client]struct{}

	limiter *acceptLimiter
	wg      sync.WaitGroup
}

// New constructs a Scheduler; call Serve to start accepting connections.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		log:     obslog.Named("scheduler"),
		mode:    AntiThrash,
		quantum: cfg.TimeQuantum,
		clients: make(map[*Client]struct{}),
		limiter: newAcceptLimiter(cfg.MaxAcceptsPerMinute),
	}
	if !cfg.StartInAntiThrash {
		s.mode = Permissive
	}
	s.timerCond = sync.NewCond(&s.mu)

	s.wg.Add(1)
	go s.timerLoop()
	return s
}

// Close stops the scheduler's timer goroutine and closes every connection.
// It does not close the listener; callers own that separately.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		c.conn.Close()
	}
	s.timerCond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// Accept registers a freshly accepted connection and spawns its read loop.
// It is called once per net.Listener.Accept result.
func (s *Scheduler) Accept(conn net.Conn) {
	if !s.limiter.Allow() {
		s.log.Warnw("rejecting connection, accept rate limit exceeded", "remote", conn.RemoteAddr())
		conn.Close()
		return
	}

	c := &Client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(c)
}

func (s *Scheduler) readLoop(c *Client) {
	defer s.wg.Done()
	for {
		f, err := wire.Decode(c.conn)
		if err != nil {
			s.log.Debugw("client connection closed", "client_id", fmt.Sprintf("%016x", uint64(c.id)), "error", err)
			s.onDisconnect(c)
			return
		}
		s.handleMessage(c, f)
	}
}

// onDisconnect implements spec.md §4.2 "Client endpoint hangup/error".
func (s *Scheduler) onDisconnect(c *Client) {
	s.mu.Lock()
	s.removeClientLocked(c)
	if !s.lockHeld && s.mode == AntiThrash {
		s.grantLocked()
	}
	s.mu.Unlock()
}

// sendLocked writes f to c.conn. Caller must hold s.mu: every write the
// scheduler performs is a reply, a grant, or a broadcast, all issued from
// inside message handling or the timer loop, exactly as spec.md §4.2/§4.4
// describes a single dispatcher thread doing so.
func (s *Scheduler) sendLocked(c *Client, f wire.Frame) error {
	return wire.Encode(c.conn, f)
}

// newClientIDLocked picks a 64-bit id that is neither the sentinel nor a
// live client's id, regenerating on collision (spec.md §4.3).
func (s *Scheduler) newClientIDLocked() ClientID {
	for {
		id := ClientID(rand.Uint64())
		if id == Unregistered {
			continue
		}
		collision := false
		for other := range s.clients {
			if other.registered && other.id == id {
				collision = true
				break
			}
		}
		if !collision {
			return id
		}
	}
}

// dequeueLocked removes every queue entry referencing c without touching
// its connection or registration. If c was the head and held the lock,
// lockHeld is cleared.
func (s *Scheduler) dequeueLocked(c *Client) {
	if len(s.queue) > 0 && s.queue[0] == c && s.lockHeld {
		s.lockHeld = false
	}
	out := s.queue[:0]
	for _, q := range s.queue {
		if q != c {
			out = append(out, q)
		}
	}
	s.queue = out
}

// removeClientLocked implements spec.md §4.2 "Removing a client".
func (s *Scheduler) removeClientLocked(c *Client) {
	s.dequeueLocked(c)
	delete(s.clients, c)
	c.conn.Close()
}

// enqueuedLocked reports whether c already has a pending request.
func (s *Scheduler) enqueuedLocked(c *Client) bool {
	for _, q := range s.queue {
		if q == c {
			return true
		}
	}
	return false
}

// currentHolderLocked returns the queue head when the lock is held, nil
// otherwise (spec.md §3 invariant 1).
func (s *Scheduler) currentHolderLocked() *Client {
	if s.lockHeld && len(s.queue) > 0 {
		return s.queue[0]
	}
	return nil
}

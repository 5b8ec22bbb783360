// Package agent implements the in-process lock-negotiation and
// interception shim injected into a GPU application (spec.md §4.6–§4.8).
// It presents a single process-wide identity to the scheduler regardless
// of how many application threads submit work (spec.md §9): a lazily
// initialized singleton, idempotent to initialize, torn down explicitly
// when the process exits.
package agent

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/nvlockd/nvlockd/internal/obslog"
	"github.com/nvlockd/nvlockd/internal/transport"
	"github.com/nvlockd/nvlockd/internal/wire"
	"github.com/nvlockd/nvlockd/internal/xerrors"
)

// Agent is the process-wide lock-negotiation and interception state
// (spec.md §3 "Agent state"). Every exported method is safe to call from
// any application thread; no intercepted call is ever made while mu is
// held (spec.md §5).
type Agent struct {
	log *zap.SugaredLogger
	cfg Config

	mu          sync.Mutex
	ownLockCond *sync.Cond

	state     State
	schedMode schedMode

	ownsLock      bool
	requestedLock bool
	didWork       bool
	clientID      uint64
	ctxCaptured   bool

	closed bool
	stopCh chan struct{}
	wg     sync.WaitGroup

	conn net.Conn

	ledger    *Ledger
	window    *kernelWindow
	hooks     *HookProvider
	telemetry Telemetry

	capacityOnce  sync.Once
	capacityBytes uint64
	capacityErr   error
}

var (
	singletonMu sync.Mutex
	singleton   *Agent
)

// Get returns the process's Agent singleton, or nil if Init has not been
// called yet.
func Get() *Agent {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singleton
}

// Init lazily bootstraps the process-wide Agent: it dials the scheduler,
// registers, and starts the receiver and idle-watcher threads (spec.md
// §4.6 "Initialization ... Idempotent"). Calling Init more than once
// returns the already-initialized singleton unchanged — this is the
// idempotent-init property spec.md §8 requires.
func Init(cfg Config, driver Driver) (*Agent, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singleton != nil {
		return singleton, nil
	}

	a := &Agent{
		log:       obslog.Named("agent"),
		cfg:       cfg,
		state:     Uninitialized,
		stopCh:    make(chan struct{}),
		ledger:    newLedger(),
		window:    newKernelWindow(),
		telemetry: NewProcessTelemetry(),
	}
	a.hooks = NewHookProvider(driver)
	a.registerHooks()
	a.ownLockCond = sync.NewCond(&a.mu)

	if err := a.bootstrap(); err != nil {
		return nil, err
	}

	singleton = a
	return a, nil
}

// resetSingletonForTest clears the package-level singleton so tests can
// exercise Init's bootstrap path repeatedly. It is unexported and used
// only from this package's own tests.
func resetSingletonForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singleton = nil
}

func (a *Agent) bootstrap() error {
	a.mu.Lock()
	a.state = Registering
	a.mu.Unlock()

	conn, err := transport.Dial(a.cfg.SocketDir)
	if err != nil {
		return xerrors.Wrap(err, "agent: connect to scheduler")
	}

	reg := wire.Frame{
		Type:         wire.REGISTER,
		PodName:      a.cfg.PodName,
		PodNamespace: a.cfg.PodNamespace,
	}
	if err := wire.Encode(conn, reg); err != nil {
		conn.Close()
		return xerrors.Wrap(err, "agent: send REGISTER")
	}

	reply, err := wire.Decode(conn)
	if err != nil {
		conn.Close()
		return xerrors.Wrap(err, "agent: read REGISTER reply")
	}

	a.mu.Lock()
	a.conn = conn
	a.clientID = reply.ID
	switch reply.Type {
	case wire.SCHED_OFF:
		a.schedMode = permissive
		a.state = Permissive
		a.ownsLock = true
	default:
		a.schedMode = antiThrash
		a.state = IdleWithoutLock
	}
	a.mu.Unlock()

	a.log.Infow("agent registered", "client_id", reply.Data, "mode", a.schedMode)

	a.wg.Add(2)
	go a.receiveLoop()
	go a.idleWatchLoop()
	return nil
}

// Close tears down the agent's connection and background goroutines. It
// is idempotent.
func (a *Agent) Close() error {
	a.mu.Lock()
	select {
	case <-a.stopCh:
		a.mu.Unlock()
		return nil
	default:
	}
	a.closed = true
	close(a.stopCh)
	conn := a.conn
	a.ownLockCond.Broadcast()
	a.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	a.wg.Wait()
	return nil
}

// sendLocked writes f to the scheduler connection. Caller must hold a.mu.
func (a *Agent) sendLocked(f wire.Frame) error {
	f.ID = a.clientID
	return wire.Encode(a.conn, f)
}

// State reports the agent's current state machine value.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// AllocatedBytes reports the ledger's current outstanding total.
func (a *Agent) AllocatedBytes() uint64 {
	return a.ledger.AllocatedBytes()
}

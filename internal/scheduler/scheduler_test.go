package scheduler

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvlockd/nvlockd/internal/wire"
)

// testClient is a thin wire-protocol peer used to drive scheduler tests
// without an agent.
type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialTestClient(t *testing.T, l net.Listener) *testClient {
	t.Helper()
	conn, err := net.Dial(l.Addr().Network(), l.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(f wire.Frame) {
	c.t.Helper()
	require.NoError(c.t, wire.Encode(c.conn, f))
}

func (c *testClient) recv() wire.Frame {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := wire.Decode(c.conn)
	require.NoError(c.t, err)
	return f
}

func (c *testClient) register() wire.Frame {
	c.send(wire.Frame{Type: wire.REGISTER, PodName: "p", PodNamespace: "ns"})
	return c.recv()
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, net.Listener) {
	t.Helper()
	if cfg.TimeQuantum == 0 {
		cfg.TimeQuantum = 30 * time.Second
	}
	s := New(cfg)

	sockPath := filepath.Join(t.TempDir(), "scheduler.sock")
	l, err := net.Listen("unix", sockPath)
	require.NoError(t, err)

	go s.Serve(l)
	t.Cleanup(func() {
		l.Close()
		s.Close()
	})
	return s, l
}

func TestRegisterAssignsDistinctIDs(t *testing.T) {
	_, l := newTestScheduler(t, Config{StartInAntiThrash: true})

	a := dialTestClient(t, l)
	b := dialTestClient(t, l)

	ra := a.register()
	rb := b.register()

	require.Equal(t, wire.SCHED_ON, ra.Type)
	require.Equal(t, wire.SCHED_ON, rb.Type)
	require.NotEqual(t, ra.ID, rb.ID)
	require.NotZero(t, ra.ID)
	require.NotZero(t, rb.ID)
}

func TestMutualExclusionAndFCFS(t *testing.T) {
	_, l := newTestScheduler(t, Config{StartInAntiThrash: true})

	a := dialTestClient(t, l)
	b := dialTestClient(t, l)
	a.register()
	b.register()

	a.send(wire.Frame{Type: wire.REQ_LOCK})
	granted := a.recv()
	require.Equal(t, wire.LOCK_OK, granted.Type)

	b.send(wire.Frame{Type: wire.REQ_LOCK})

	// B must not receive LOCK_OK while A holds it.
	b.conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, err := wire.Decode(b.conn)
	require.Error(t, err, "B should still be waiting for the lock")

	a.send(wire.Frame{Type: wire.LOCK_RELEASED})
	grantedB := b.recv()
	require.Equal(t, wire.LOCK_OK, grantedB.Type)
}

func TestSecondReqLockIsDeduplicated(t *testing.T) {
	s, l := newTestScheduler(t, Config{StartInAntiThrash: true})

	a := dialTestClient(t, l)
	b := dialTestClient(t, l)
	a.register()
	b.register()

	a.send(wire.Frame{Type: wire.REQ_LOCK})
	a.recv()
	b.send(wire.Frame{Type: wire.REQ_LOCK})
	b.send(wire.Frame{Type: wire.REQ_LOCK})

	require.Eventually(t, func() bool {
		return s.Status().QueueLen == 2
	}, time.Second, 10*time.Millisecond)
}

func TestReqLockIgnoredInPermissiveMode(t *testing.T) {
	s, l := newTestScheduler(t, Config{StartInAntiThrash: false})

	a := dialTestClient(t, l)
	reg := a.register()
	require.Equal(t, wire.SCHED_OFF, reg.Type)

	a.send(wire.Frame{Type: wire.REQ_LOCK})

	require.Never(t, func() bool {
		return s.Status().QueueLen > 0
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestModeBroadcastAndQueueClearOnPermissive(t *testing.T) {
	s, l := newTestScheduler(t, Config{StartInAntiThrash: true})

	a := dialTestClient(t, l)
	b := dialTestClient(t, l)
	a.register()
	b.register()

	a.send(wire.Frame{Type: wire.REQ_LOCK})
	a.recv()
	b.send(wire.Frame{Type: wire.REQ_LOCK})

	admin := dialTestClient(t, l)
	admin.send(wire.Frame{Type: wire.SCHED_OFF})

	fa := a.recv()
	fb := b.recv()
	require.Equal(t, wire.SCHED_OFF, fa.Type)
	require.Equal(t, wire.SCHED_OFF, fb.Type)

	require.Eventually(t, func() bool {
		st := s.Status()
		return st.Mode == Permissive && st.QueueLen == 0 && !st.LockHeld
	}, time.Second, 10*time.Millisecond)
}

func TestHolderDisconnectGrantsNext(t *testing.T) {
	_, l := newTestScheduler(t, Config{StartInAntiThrash: true})

	a := dialTestClient(t, l)
	b := dialTestClient(t, l)
	a.register()
	b.register()

	a.send(wire.Frame{Type: wire.REQ_LOCK})
	a.recv()
	b.send(wire.Frame{Type: wire.REQ_LOCK})

	a.conn.Close()

	grantedB := b.recv()
	require.Equal(t, wire.LOCK_OK, grantedB.Type)
}

func TestSetTQIgnoresInvalidValues(t *testing.T) {
	s, l := newTestScheduler(t, Config{TimeQuantum: 30 * time.Second, StartInAntiThrash: true})

	admin := dialTestClient(t, l)
	admin.send(wire.Frame{Type: wire.SET_TQ, Data: "not-a-number"})
	admin.send(wire.Frame{Type: wire.SET_TQ, Data: "-5"})
	admin.send(wire.Frame{Type: wire.SET_TQ, Data: "0"})

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 30*time.Second, s.Status().TimeQuantum)

	admin.send(wire.Frame{Type: wire.SET_TQ, Data: "7"})
	require.Eventually(t, func() bool {
		return s.Status().TimeQuantum == 7*time.Second
	}, time.Second, 10*time.Millisecond)
}

func TestDuplicateRegistrationDropsClient(t *testing.T) {
	_, l := newTestScheduler(t, Config{StartInAntiThrash: true})

	a := dialTestClient(t, l)
	a.register()
	a.send(wire.Frame{Type: wire.REGISTER})

	a.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 1)
	_, err := a.conn.Read(buf)
	require.Error(t, err, "scheduler should have closed the connection")
}

func TestQuantumBoundSendsDropLock(t *testing.T) {
	_, l := newTestScheduler(t, Config{TimeQuantum: 150 * time.Millisecond, StartInAntiThrash: true})

	a := dialTestClient(t, l)
	a.register()
	a.send(wire.Frame{Type: wire.REQ_LOCK})
	granted := a.recv()
	require.Equal(t, wire.LOCK_OK, granted.Type)

	start := time.Now()
	drop := a.recv()
	elapsed := time.Since(start)

	require.Equal(t, wire.DROP_LOCK, drop.Type)
	require.InDelta(t, 150*time.Millisecond, elapsed, float64(150*time.Millisecond))
}

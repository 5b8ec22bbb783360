package agent

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvlockd/nvlockd/internal/transport"
	"github.com/nvlockd/nvlockd/internal/wire"
)

// fakeScheduler is a minimal wire-protocol peer standing in for the
// scheduler, letting these tests drive the agent's receiver and idle
// watcher threads directly.
type fakeScheduler struct {
	t    *testing.T
	conn net.Conn
}

func startFakeScheduler(t *testing.T, dir string, replyType wire.MessageType) *fakeScheduler {
	t.Helper()
	l, err := transport.Listen(dir)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	connCh := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			connCh <- c
		}
	}()

	_, err = Init(Config{SocketDir: dir, PodName: "p", PodNamespace: "ns"}, NewSimDriver(10<<30, 0))
	require.NoError(t, err)

	var conn net.Conn
	select {
	case conn = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never accepted agent connection")
	}

	f := &fakeScheduler{t: t, conn: conn}
	reg, err := wire.Decode(conn)
	require.NoError(t, err)
	require.Equal(t, wire.REGISTER, reg.Type)

	require.NoError(t, wire.Encode(conn, wire.Frame{Type: replyType, ID: 0xabc, Data: "0000000000000abc"}))

	t.Cleanup(func() { conn.Close() })
	t.Cleanup(resetSingletonForTest)
	t.Cleanup(func() {
		if a := Get(); a != nil {
			a.Close()
		}
	})
	return f
}

func (f *fakeScheduler) send(fr wire.Frame) {
	f.t.Helper()
	require.NoError(f.t, wire.Encode(f.conn, fr))
}

func (f *fakeScheduler) recv() wire.Frame {
	f.t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	fr, err := wire.Decode(f.conn)
	require.NoError(f.t, err)
	return fr
}

func TestInitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	startFakeScheduler(t, dir, wire.SCHED_ON)

	before := Get()
	require.NotNil(t, before)

	again, err := Init(Config{SocketDir: dir}, NewSimDriver(1<<30, 0))
	require.NoError(t, err)
	require.Same(t, before, again)
}

func TestLockOkGrantsOwnership(t *testing.T) {
	dir := t.TempDir()
	sched := startFakeScheduler(t, dir, wire.SCHED_ON)
	a := Get()
	require.Equal(t, IdleWithoutLock, a.State())

	done := make(chan error, 1)
	go func() { done <- a.continueWithLock() }()

	req := sched.recv()
	require.Equal(t, wire.REQ_LOCK, req.Type)

	sched.send(wire.Frame{Type: wire.LOCK_OK})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("continueWithLock never returned after LOCK_OK")
	}
	require.Equal(t, HoldingLock, a.State())
}

func TestDropLockSynchronizesAndReleases(t *testing.T) {
	dir := t.TempDir()
	sched := startFakeScheduler(t, dir, wire.SCHED_ON)
	a := Get()

	done := make(chan error, 1)
	go func() { done <- a.continueWithLock() }()
	sched.recv()
	sched.send(wire.Frame{Type: wire.LOCK_OK})
	require.NoError(t, <-done)

	sched.send(wire.Frame{Type: wire.DROP_LOCK})
	released := sched.recv()
	require.Equal(t, wire.LOCK_RELEASED, released.Type)
	require.Equal(t, IdleWithoutLock, a.State())
}

func TestPermissiveModeNeverBlocks(t *testing.T) {
	dir := t.TempDir()
	startFakeScheduler(t, dir, wire.SCHED_OFF)
	a := Get()
	require.Equal(t, Permissive, a.State())

	done := make(chan error, 1)
	go func() { done <- a.continueWithLock() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("continueWithLock blocked in permissive mode")
	}
}

func TestSchedOnRevokesPermissiveOwnership(t *testing.T) {
	dir := t.TempDir()
	sched := startFakeScheduler(t, dir, wire.SCHED_OFF)
	a := Get()
	require.True(t, a.ownsLock)

	sched.send(wire.Frame{Type: wire.SCHED_ON})
	require.Eventually(t, func() bool {
		return a.State() == IdleWithoutLock
	}, time.Second, 10*time.Millisecond)
}

package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowDoublesWhenFast(t *testing.T) {
	w := newKernelWindow()
	require.Equal(t, 1, w.current())

	require.NoError(t, w.afterLaunch(func() error { return nil }))
	require.Equal(t, 2, w.current())

	require.NoError(t, w.afterLaunch(func() error { return nil }))
	require.NoError(t, w.afterLaunch(func() error { return nil }))
	require.Equal(t, 4, w.current())
}

func TestWindowCapsAtMax(t *testing.T) {
	w := newKernelWindow()
	for i := 0; i < 20000; i++ {
		require.NoError(t, w.afterLaunch(func() error { return nil }))
	}
	require.Equal(t, windowCap, w.current())
}

func TestWindowDoesNotSyncBeforeWindowFills(t *testing.T) {
	w := newKernelWindow()
	w.size = 64

	require.NoError(t, w.afterLaunch(func() error { return nil }))
	// size still 64: launch #1 doesn't trigger a sync (since < size).
	require.Equal(t, 64, w.current())
}

func TestWindowReset(t *testing.T) {
	w := newKernelWindow()
	w.size = 512
	w.since = 10
	w.reset()
	require.Equal(t, windowInitial, w.current())
}

// Package transport creates and reaches the scheduler's local stream
// socket with the directory and file permissions spec.md §6 requires:
// the containing directory is rwx for the owner and x-only for everyone
// else, while the socket itself is rwx for the owner and w-only for
// group/other, so that any co-resident container can connect.
package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const (
	// SocketName is the fixed file name of the scheduler's listening socket.
	SocketName = "scheduler.sock"

	dirMode    os.FileMode = 0o711
	socketMode os.FileMode = 0o722
)

// DefaultDir is the fixed directory spec.md §6 names, "/var/run/<system>/".
const DefaultDir = "/var/run/nvlockd"

// Listen creates dir (if missing) with the spec-mandated permissions and
// binds a unix stream socket at dir/scheduler.sock, replacing any stale
// socket file left behind by a previous, uncleanly terminated scheduler.
func Listen(dir string) (net.Listener, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("transport: create socket directory %s: %w", dir, err)
	}
	if err := os.Chmod(dir, dirMode); err != nil {
		return nil, fmt.Errorf("transport: chmod socket directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, SocketName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("transport: remove stale socket %s: %w", path, err)
	}

	// net.Listen gives sockets mode 0700; widen the mode right after bind
	// (under a conservative umask in between) to the spec's 0722 so any
	// process on the host can connect, matching the teacher pack's habit of
	// dropping to the raw syscall layer for permission bits the stdlib
	// net package does not expose a knob for.
	oldMask := unix.Umask(0o077)
	l, err := net.Listen("unix", path)
	unix.Umask(oldMask)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, socketMode); err != nil {
		l.Close()
		return nil, fmt.Errorf("transport: chmod socket %s: %w", path, err)
	}
	return l, nil
}

// Dial connects to the scheduler's listening socket under dir.
func Dial(dir string) (net.Conn, error) {
	if dir == "" {
		dir = DefaultDir
	}
	path := filepath.Join(dir, SocketName)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", path, err)
	}
	return conn, nil
}

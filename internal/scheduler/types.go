package scheduler

import (
	"net"

	"github.com/nvlockd/nvlockd/internal/wire"
)

// Mode is the scheduler's lock-arbitration policy (spec.md §3).
type Mode uint8

const (
	// AntiThrash grants the GPU lock to at most one client at a time.
	AntiThrash Mode = iota
	// Permissive lets every registered client believe it holds the lock.
	Permissive
)

func (m Mode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "anti-thrash"
}

// wireType returns the message type a client should be told reflects this mode.
func (m Mode) wireType() wire.MessageType {
	if m == Permissive {
		return wire.SCHED_OFF
	}
	return wire.SCHED_ON
}

// ClientID is the scheduler-assigned 64-bit identity of a registered client.
type ClientID uint64

// Unregistered is the sentinel id held by a client record before REGISTER succeeds.
const Unregistered ClientID = 0

// Client is the scheduler's record of one accepted connection (spec.md §3).
// Its lifetime is owned exclusively by the Scheduler: created on accept,
// mutated on REGISTER, destroyed on transport failure, protocol violation,
// or explicit close.
type Client struct {
	conn net.Conn

	id           ClientID
	podName      string
	podNamespace string
	registered   bool
}

// ID reports the client's assigned id, or Unregistered before REGISTER.
func (c *Client) ID() ClientID { return c.id }

// Labels reports the client's pod name and namespace, "none" when absent.
func (c *Client) Labels() (pod, namespace string) { return c.podName, c.podNamespace }

// Package wire implements the fixed-frame binary protocol spoken between
// the scheduler and an agent over a single persistent stream connection.
//
// The protocol is host-local only: every field is in host byte order and
// every frame is transferred whole or not at all (spec.md §4.1, §6).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType enumerates the frame types exchanged between scheduler and agent.
type MessageType uint8

const (
	_ MessageType = iota // 0 is never a valid wire type

	// REGISTER is sent by an agent on connect; the scheduler replies with
	// SCHED_ON or SCHED_OFF carrying the newly assigned client id.
	REGISTER MessageType = iota

	// SCHED_ON / SCHED_OFF announce the current (or newly changed) scheduler mode.
	SCHED_ON
	SCHED_OFF

	// REQ_LOCK asks the scheduler to enqueue the sending client for the lock.
	REQ_LOCK

	// LOCK_OK grants the lock to the client it is sent to.
	LOCK_OK

	// DROP_LOCK asks the current holder to relinquish the lock.
	DROP_LOCK

	// LOCK_RELEASED notifies the scheduler that the agent has released the lock,
	// either in response to DROP_LOCK or voluntarily (early release).
	LOCK_RELEASED

	// SET_TQ carries a new time quantum, as a decimal string, in Data.
	SET_TQ
)

func (t MessageType) String() string {
	switch t {
	case REGISTER:
		return "REGISTER"
	case SCHED_ON:
		return "SCHED_ON"
	case SCHED_OFF:
		return "SCHED_OFF"
	case REQ_LOCK:
		return "REQ_LOCK"
	case LOCK_OK:
		return "LOCK_OK"
	case DROP_LOCK:
		return "DROP_LOCK"
	case LOCK_RELEASED:
		return "LOCK_RELEASED"
	case SET_TQ:
		return "SET_TQ"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Fixed field widths from spec.md §6.
const (
	labelWidth = 254
	dataWidth  = 20

	// FrameSize is the exact on-wire size of a Frame. Every send/receive
	// must transfer exactly this many bytes; a short read or write is a
	// transport failure, never a partial message (spec.md §4.1).
	FrameSize = 1 /*type*/ + labelWidth /*pod name*/ + labelWidth /*pod namespace*/ + 8 /*id*/ + dataWidth /*data*/
)

// Frame is the fixed-layout record carried by every message (spec.md §6).
type Frame struct {
	Type MessageType
	// PodName and PodNamespace are operator-facing labels; "none" when the
	// agent isn't running under an orchestrator that supplies them.
	PodName      string
	PodNamespace string
	// ID is informational for every type except REGISTER's reply, where it
	// carries the newly assigned client id.
	ID uint64
	// Data holds a short textual payload: a 16-hex-char client id on a
	// REGISTER reply, or a decimal time quantum on SET_TQ.
	Data string
}

// packFixed copies s into a zero-padded, length-truncated fixed-width field.
func packFixed(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
}

func unpackFixed(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// Encode writes f to w as exactly FrameSize bytes.
func Encode(w io.Writer, f Frame) error {
	var buf [FrameSize]byte
	buf[0] = byte(f.Type)
	off := 1
	packFixed(buf[off:off+labelWidth], f.PodName)
	off += labelWidth
	packFixed(buf[off:off+labelWidth], f.PodNamespace)
	off += labelWidth
	binary.NativeEndian.PutUint64(buf[off:off+8], f.ID)
	off += 8
	packFixed(buf[off:off+dataWidth], f.Data)

	n, err := w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	if n != FrameSize {
		return fmt.Errorf("wire: short write (%d of %d bytes)", n, FrameSize)
	}
	return nil
}

// Decode reads exactly FrameSize bytes from r and parses a Frame.
// A short read (including io.EOF on the first byte) is reported as an
// error, never as a partial/zero-value Frame.
func Decode(r io.Reader) (Frame, error) {
	var buf [FrameSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame: %w", err)
	}

	f := Frame{Type: MessageType(buf[0])}
	off := 1
	f.PodName = unpackFixed(buf[off : off+labelWidth])
	off += labelWidth
	f.PodNamespace = unpackFixed(buf[off : off+labelWidth])
	off += labelWidth
	f.ID = binary.NativeEndian.Uint64(buf[off : off+8])
	off += 8
	f.Data = unpackFixed(buf[off : off+dataWidth])
	return f, nil
}

// MaxLabelLen and MaxDataLen let callers validate payloads before Encode
// truncates them silently.
const (
	MaxLabelLen = labelWidth
	MaxDataLen  = dataWidth
)

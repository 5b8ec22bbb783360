package agent

import (
	"sync"
	"time"

	"github.com/nvlockd/nvlockd/internal/xerrors"
)

// ErrOutOfMemory is returned by Driver.Malloc-family calls, and by the
// agent's own capacity guard, when a request cannot be satisfied.
var ErrOutOfMemory = xerrors.New("OUT_OF_MEMORY")

// Driver is the stable set of GPU API entry points the agent intercepts
// (spec.md §4.6): allocation, free, memory-info, initialization, kernel
// launch, and host/device copies. The concrete driver ABI is explicitly
// out of scope (spec.md §1); Driver is the seam a real cgo/NVML/ROCm
// binding would implement in its place.
type Driver interface {
	// Init performs whatever one-time setup the underlying runtime needs.
	Init() error

	// MemGetInfo reports free and total device memory in bytes, before any
	// agent-side reserve is subtracted.
	MemGetInfo() (free, total uint64, err error)

	// MallocManaged allocates size bytes of unified (managed) memory,
	// returning an opaque handle standing in for a device pointer.
	MallocManaged(size uint64) (ptr uintptr, err error)

	// Free releases a pointer previously returned by MallocManaged.
	Free(ptr uintptr) error

	// LaunchKernel submits work to the device. It does not block for the
	// work to complete.
	LaunchKernel() error

	// Memcpy and MemcpyAsync copy n bytes; Memcpy blocks until complete,
	// MemcpyAsync returns once the copy is enqueued.
	Memcpy(dst, src uintptr, n uint64) error
	MemcpyAsync(dst, src uintptr, n uint64) error

	// Synchronize blocks until all work previously submitted through
	// LaunchKernel/MemcpyAsync on this context has completed.
	Synchronize() error
}

// simDriver is a dependency-free reference Driver used by tests and by any
// caller that has no real GPU to bind to. It models a device with a fixed
// total capacity and a configurable, deterministic synchronize latency so
// the kernel-window heuristic (§4.8) and idle-watcher fallback (§4.7/§7(v))
// can be exercised without hardware.
type simDriver struct {
	totalBytes uint64

	mu           sync.Mutex
	nextPtr      uintptr
	syncDuration time.Duration
}

// NewSimDriver constructs a reference Driver reporting totalBytes of device
// memory and taking syncDuration to complete every Synchronize call.
func NewSimDriver(totalBytes uint64, syncDuration time.Duration) Driver {
	return &simDriver{
		totalBytes:   totalBytes,
		nextPtr:      1,
		syncDuration: syncDuration,
	}
}

func (d *simDriver) Init() error { return nil }

func (d *simDriver) MemGetInfo() (free, total uint64, err error) {
	return d.totalBytes, d.totalBytes, nil
}

func (d *simDriver) MallocManaged(size uint64) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ptr := d.nextPtr
	d.nextPtr += uintptr(size) + 1
	return ptr, nil
}

func (d *simDriver) Free(ptr uintptr) error { return nil }

func (d *simDriver) LaunchKernel() error { return nil }

func (d *simDriver) Memcpy(dst, src uintptr, n uint64) error { return nil }

func (d *simDriver) MemcpyAsync(dst, src uintptr, n uint64) error { return nil }

func (d *simDriver) Synchronize() error {
	if d.syncDuration > 0 {
		time.Sleep(d.syncDuration)
	}
	return nil
}

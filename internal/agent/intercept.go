package agent

// This file implements the interception replacements of spec.md §4.6, and
// is what registerHooks (hooks.go) installs into the HookProvider under
// each symbol's name. Every call to the real driver goes through
// a.hooks.Driver(), not a direct field, so swapping the underlying Driver
// (tests do this) only ever requires replacing the HookProvider. The
// mechanism of redirecting a foreign process's real symbol table to these
// methods is platform-specific and out of scope (spec.md §1, §9).

// EnsureInitialized is the interception replacement for the GPU API's
// initialization entry point (spec.md §4.6): the first call from any
// thread proves the process is a GPU client and triggers the full
// bootstrap; later calls are no-ops. It is safe to call from every
// intercepted entry point below, and from an explicit init hook.
func EnsureInitialized(cfg Config, driver Driver) (*Agent, error) {
	return Init(cfg, driver)
}

// capacity lazily queries the device's reportable capacity once per
// process lifetime (spec.md §4.6 "on first call, query capacity ... and
// remember it"), already net of the configured reserve so the admission
// check and the externally visible MemGetInfo agree on "how much is really
// available" (spec.md §8 scenario 6: "capacity is 10 GiB minus reserve").
func (a *Agent) capacity() (uint64, error) {
	a.capacityOnce.Do(func() {
		free, _, err := a.hooks.Driver().MemGetInfo()
		if err != nil {
			a.capacityErr = err
			return
		}
		if free > a.cfg.MemoryReserveBytes {
			a.capacityBytes = free - a.cfg.MemoryReserveBytes
		} else {
			a.capacityBytes = 0
		}
	})
	return a.capacityBytes, a.capacityErr
}

// Malloc is the interception replacement for the GPU allocator (spec.md
// §4.6). It substitutes the underlying managed/unified allocator for
// whatever default allocator the application asked for, and enforces the
// capacity guard unless oversubscription is explicitly enabled.
func (a *Agent) Malloc(size uint64) (uintptr, error) {
	capacity, err := a.capacity()
	if err != nil {
		return 0, err
	}

	if !a.cfg.Oversubscribe && a.ledger.WouldExceed(size, capacity) {
		a.log.Warnw("allocation would exceed capacity", "requested", size, "capacity", capacity, "allocated", a.ledger.AllocatedBytes())
		return 0, ErrOutOfMemory
	}

	ptr, err := a.hooks.Driver().MallocManaged(size)
	if err != nil {
		return 0, err
	}
	a.ledger.Record(ptr, size)
	if a.cfg.Oversubscribe && a.ledger.WouldExceed(0, capacity) {
		a.log.Warnw("oversubscribed device memory", "allocated", a.ledger.AllocatedBytes(), "capacity", capacity)
	}
	return ptr, nil
}

// Free is the interception replacement for the GPU API's free call.
func (a *Agent) Free(ptr uintptr) error {
	if err := a.hooks.Driver().Free(ptr); err != nil {
		return err
	}
	a.ledger.Release(ptr)
	return nil
}

// MemGetInfo is the interception replacement for the memory-info query:
// forward to the underlying query, then subtract the configured reserve
// from the free figure (spec.md §4.6).
func (a *Agent) MemGetInfo() (free, total uint64, err error) {
	free, total, err = a.hooks.Driver().MemGetInfo()
	if err != nil {
		return 0, 0, err
	}
	if free > a.cfg.MemoryReserveBytes {
		free -= a.cfg.MemoryReserveBytes
	} else {
		free = 0
	}
	return free, total, nil
}

// LaunchKernel is the interception replacement for kernel-launch entry
// points: gate on the lock, forward, then feed the kernel-window heuristic
// (spec.md §4.6, §4.8).
func (a *Agent) LaunchKernel() error {
	if err := a.continueWithLock(); err != nil {
		return err
	}
	if err := a.hooks.Driver().LaunchKernel(); err != nil {
		return err
	}
	return a.window.afterLaunch(a.hooks.Driver().Synchronize)
}

// Memcpy is the interception replacement for the synchronous host/device
// copy entry point.
func (a *Agent) Memcpy(dst, src uintptr, n uint64) error {
	if err := a.continueWithLock(); err != nil {
		return err
	}
	if err := a.hooks.Driver().Memcpy(dst, src, n); err != nil {
		return err
	}
	return a.window.afterLaunch(a.hooks.Driver().Synchronize)
}

// MemcpyAsync is the interception replacement for the asynchronous
// host/device copy entry point.
func (a *Agent) MemcpyAsync(dst, src uintptr, n uint64) error {
	if err := a.continueWithLock(); err != nil {
		return err
	}
	if err := a.hooks.Driver().MemcpyAsync(dst, src, n); err != nil {
		return err
	}
	return a.window.afterLaunch(a.hooks.Driver().Synchronize)
}

package agent

import "sync"

// HookProvider is the explicit capability abstraction spec.md §9 calls for
// in place of platform-specific dynamic-symbol interposition: "a hook
// provider that, when asked, returns an agent-owned pointer for a given
// foreign API name." Real symbol interposition (overriding the dynamic
// loader's symbol lookup and the vendor's procedure-address query, spec.md
// §4.6) is out of scope; what survives the reimplementation is the lookup
// semantics, not the mechanism. A hook's stored value is a Go function
// value standing in for the function pointer a real cuGetProcAddress
// override would return.
type HookProvider struct {
	mu    sync.Mutex
	hooks map[string]any
	real  Driver
}

// NewHookProvider builds a provider that resolves agent-owned replacements
// first and falls back to real for any symbol it does not override.
func NewHookProvider(real Driver) *HookProvider {
	return &HookProvider{hooks: make(map[string]any), real: real}
}

// Register installs an agent-owned replacement for a named GPU API symbol.
func (p *HookProvider) Register(name string, fn any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[name] = fn
}

// Resolve returns the registered replacement for name, if any, otherwise
// reports ok=false so the caller falls through to Driver().
func (p *HookProvider) Resolve(name string) (fn any, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn, ok = p.hooks[name]
	return fn, ok
}

// Driver returns the underlying real implementation every hook eventually
// forwards to, and the one a symbol lookup falls back to for any name the
// agent does not override.
func (p *HookProvider) Driver() Driver {
	return p.real
}

// GPU API symbol names the agent overrides (spec.md §4.6): allocation,
// free, memory-info, kernel launch, and the two copy variants. Named after
// the vendor entry points a real cgo/NVML binding would expose; the exact
// strings are arbitrary here since the concrete driver ABI is out of scope
// (spec.md §1), but using the vendor's real symbol names keeps the mapping
// legible against what a real interposition table would contain.
const (
	symMallocManaged = "cuMemAllocManaged"
	symFree          = "cuMemFree"
	symMemGetInfo    = "cuMemGetInfo_v2"
	symLaunchKernel  = "cuLaunchKernel"
	symMemcpy        = "cuMemcpy"
	symMemcpyAsync   = "cuMemcpyAsync"
)

// registerHooks installs the agent's own replacements under the GPU API
// symbol names above, so that LookupProcAddress actually has entries to
// resolve instead of always falling through to Driver().
func (a *Agent) registerHooks() {
	a.hooks.Register(symMallocManaged, a.Malloc)
	a.hooks.Register(symFree, a.Free)
	a.hooks.Register(symMemGetInfo, a.MemGetInfo)
	a.hooks.Register(symLaunchKernel, a.LaunchKernel)
	a.hooks.Register(symMemcpy, a.Memcpy)
	a.hooks.Register(symMemcpyAsync, a.MemcpyAsync)
}

// LookupProcAddress is the interception replacement for the vendor's
// procedure-address query function and its versioned variant, and for the
// dynamic-symbol lookup function (spec.md §4.6): it returns the agent's own
// replacement for any of the six entry points registerHooks installs, or
// reports ok=false so the real dynamic loader falls through to Driver()
// instead.
func (a *Agent) LookupProcAddress(name string) (fn any, ok bool) {
	return a.hooks.Resolve(name)
}

package vm

import (
	"sync"

	"github.com/empower1/empower1/internal/core"
)

// ModuleCache is the optional process-local compiled-module cache keyed
// by contract address (spec §5 Resource lifecycle: "Wasm modules may be
// cached across transitions in an optional process-local compiled-module
// cache keyed by contract address; the cache is read-only from the
// runtime's perspective"). It never persists across process restarts —
// Deploy always re-populates it from the freshly compiled module, and a
// cache miss always falls back to compiling the stored bytes.
//
// Entries hold the full CompiledModule (module plus its owning store),
// not a bare wasmer.Module: wasmer-go modules are store-scoped, and
// Instantiate requires the same store the module was compiled against.
// Cached entries are never Close()'d for the life of the process; only a
// module that fails validation before being cached is closed.
type ModuleCache struct {
	mu      sync.RWMutex
	modules map[core.Address]*CompiledModule
}

func NewModuleCache() *ModuleCache {
	return &ModuleCache{modules: make(map[core.Address]*CompiledModule)}
}

func (c *ModuleCache) Get(addr core.Address) (*CompiledModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[addr]
	return m, ok
}

func (c *ModuleCache) Put(addr core.Address, m *CompiledModule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[addr] = m
}

func (c *ModuleCache) Delete(addr core.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.modules, addr)
}

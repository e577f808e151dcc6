package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/empower1/empower1/internal/core"
)

func TestModuleCachePutGetDelete(t *testing.T) {
	c := NewModuleCache()
	addr := core.Address{1}
	entry := &CompiledModule{}

	_, ok := c.Get(addr)
	assert.False(t, ok)

	c.Put(addr, entry)
	got, ok := c.Get(addr)
	assert.True(t, ok)
	assert.Same(t, entry, got)

	c.Delete(addr)
	_, ok = c.Get(addr)
	assert.False(t, ok)
}

func TestNewModuleCacheDefaultsWhenNil(t *testing.T) {
	host := NewWasmHost(nil)
	assert.NotNil(t, host.cache)
}

package vm

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// Memory wraps a guest instance's exported linear memory plus its
// exported alloc(size) -> ptr function (spec §4.7: "the host allocates
// memory in the guest by invoking the guest's exported alloc(size) -> ptr
// function; it then writes the payload and stores the resulting offset at
// ptr_ptr"). Grounded on the teacher's HostFunctionEnvironment.Memory
// field (internal/vm/vm.go), generalized with the alloc-on-write discipline
// the CBI requires for every (ptr_ptr) output parameter.
type Memory struct {
	mem   *wasmer.Memory
	alloc *wasmer.Function
}

func NewMemory(mem *wasmer.Memory, alloc *wasmer.Function) *Memory {
	return &Memory{mem: mem, alloc: alloc}
}

func (m *Memory) data() []byte {
	return m.mem.Data()
}

// Read copies len bytes at ptr out of guest memory.
func (m *Memory) Read(ptr, length uint32) ([]byte, error) {
	data := m.data()
	end := uint64(ptr) + uint64(length)
	if end > uint64(len(data)) {
		return nil, ErrMemoryOutOfBounds
	}
	out := make([]byte, length)
	copy(out, data[ptr:end])
	return out, nil
}

// Write copies payload into guest memory starting at ptr.
func (m *Memory) Write(ptr uint32, payload []byte) error {
	data := m.data()
	end := uint64(ptr) + uint64(len(payload))
	if end > uint64(len(data)) {
		return ErrMemoryOutOfBounds
	}
	copy(data[ptr:end], payload)
	return nil
}

// WriteUint32 stores a little-endian u32 at ptr (spec §6: "memory layout
// uses little-endian"), used for every (ptr_ptr)/(len_ptr) output param.
func (m *Memory) WriteUint32(ptr uint32, v uint32) error {
	buf := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return m.Write(ptr, buf)
}

func (m *Memory) ReadUint32(ptr uint32) (uint32, error) {
	b, err := m.Read(ptr, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// WriteOutput allocates room for payload via the guest's alloc export,
// writes the payload, and stores the resulting offset at ptrPtr and its
// length at lenPtr, the uniform encoding every CBI "write bytes back to
// the caller" operation uses (spec §4.7).
func (m *Memory) WriteOutput(ptrPtr, lenPtr uint32, payload []byte) error {
	if m.alloc == nil {
		return ErrAllocNotExported
	}
	raw, err := m.alloc.Call(int32(len(payload)))
	if err != nil {
		return fmt.Errorf("vm: guest alloc(%d) failed: %w", len(payload), err)
	}
	offset, ok := raw.(int32)
	if !ok {
		return fmt.Errorf("vm: guest alloc returned non-i32 value %v", raw)
	}
	if err := m.Write(uint32(offset), payload); err != nil {
		return err
	}
	if err := m.WriteUint32(ptrPtr, uint32(offset)); err != nil {
		return err
	}
	return m.WriteUint32(lenPtr, uint32(len(payload)))
}

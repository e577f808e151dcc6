package gas

import "sync"

// WasmGasGlobal is the narrow interface HostFuncGasMeter needs onto a
// live Wasm instance's injected metering global (spec §4.3: "a
// Wasmer-level i64 global mutated by the metering middleware on every
// basic block, readable and writable only while a contract call is in
// flight"). No wasmer-backed implementation exists in this repository:
// internal/vm's WasmHost.Call attaches the in-memory memGasGlobal below.
type WasmGasGlobal interface {
	Get() (int64, error)
	Set(int64) error
}

// memGasGlobal is a trivial in-memory WasmGasGlobal; WasmHost.Call
// attaches a fresh one to every contract call.
type memGasGlobal struct {
	mu  sync.Mutex
	val int64
}

func NewMemGasGlobal(initial int64) WasmGasGlobal {
	return &memGasGlobal{val: initial}
}

func (g *memGasGlobal) Get() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.val, nil
}

func (g *memGasGlobal) Set(v int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.val = v
	return nil
}

// HostFuncGasMeter bridges a GasMeter to a single Wasm contract call: it
// seeds the attached WasmGasGlobal with the gas remaining at call entry,
// re-seeds it after each ChargeHostCall, and on return reconciles any
// drop in the global's value back into the native GasMeter (spec §4.3,
// §4.7: Wasm-level gas plus native-level host-function gas share one
// budget). With the in-memory global WasmHost.Call attaches, nothing
// decrements the global while the guest runs, so Wasm-side gas is the
// flat per-call charge WasmHost.Call makes through ChargeHostCall.
//
// Grounded on the teacher's internal/vm/gas.go GasTank, which flagged (in
// its own comments) the two-way sync between a Wasmer global and a
// native counter as unsolved; this type is the solved version the spec
// requires.
type HostFuncGasMeter struct {
	native *GasMeter
	global WasmGasGlobal
	active bool
}

func NewHostFuncGasMeter(native *GasMeter) *HostFuncGasMeter {
	return &HostFuncGasMeter{native: native}
}

// Attach binds this call's WasmGasGlobal and seeds it with the gas
// currently remaining on the native meter, activating the bridge for the
// duration of one contract call (spec §4.7: entering Call/Deploy
// execution).
func (h *HostFuncGasMeter) Attach(global WasmGasGlobal) error {
	if err := global.Set(int64(h.native.Remaining())); err != nil {
		return err
	}
	h.global = global
	h.active = true
	return nil
}

// Detach charges the native GasMeter for any drop of the WasmGasGlobal's
// value below the native remaining balance and deactivates the bridge. Called when a contract call returns, traps,
// or runs out of gas.
func (h *HostFuncGasMeter) Detach() error {
	if !h.active {
		return nil
	}
	remaining, err := h.global.Get()
	if err != nil {
		h.active = false
		return err
	}
	before := h.native.Remaining()
	var spent uint64
	if remaining < 0 {
		spent = before
	} else if uint64(remaining) < before {
		spent = before - uint64(remaining)
	}
	if spent > 0 {
		if _, err := h.native.charge(OpWasmMemory, CostChange{Deduct: spent}); err != nil {
			h.active = false
			return err
		}
	}
	h.active = false
	h.global = nil
	return nil
}

// ChargeHostCall charges the native meter while a call is active
// (WasmHost.Call uses it for its flat per-call charge), then re-seeds the
// global from the native meter's remaining balance (spec §4.7).
func (h *HostFuncGasMeter) ChargeHostCall(op OperationKind, change CostChange) error {
	if !h.active {
		return ErrWasmGasGlobalNotActive
	}
	if _, err := h.native.charge(op, change); err != nil {
		return err
	}
	return h.global.Set(int64(h.native.Remaining()))
}

// Active reports whether a Wasm call is currently in flight.
func (h *HostFuncGasMeter) Active() bool { return h.active }

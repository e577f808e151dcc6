package vm

import (
	"fmt"
	"log"
	"os"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/gas"
)

// MaxLinearMemoryPages caps a deployed module's linear memory (spec §4.7
// "Module validation: reject any module whose linear memory limit exceeds
// the configured cap"). 256 pages = 16 MiB, a generous contract-storage
// working set without letting a single call exhaust host memory.
const MaxLinearMemoryPages = 256

// wasmCallBaseCostPerByte approximates per-basic-block Wasm instruction
// gas as a flat charge proportional to compiled code size, in lieu of
// wasmer-go's pinned version exposing an instruction-level metering
// middleware (see DESIGN.md: the teacher's own internal/vm/gas.go already
// flags this as an unresolved gap — "currently, wasmer-go (v1.0.1) does
// not directly expose Wasmer's metering middleware"). Host-function calls
// (storage, crypto, logging) remain fully metered regardless; this charge
// only stands in for pure in-guest computation between host calls.
const wasmCallBaseCostPerByte uint64 = 1

// WasmHost is the sandboxed Wasm module host (spec §4.7): compile,
// validate, instantiate, and run a contract's entrypoint under the CBI
// host-function table, sharing gas accounting with the enclosing
// GasMeter via HostFuncGasMeter. Grounded on the teacher's VMService
// (internal/vm/vm.go) — same per-call engine/store/module/instance
// lifecycle and defer-Close discipline — generalized from a fixed ad hoc
// host-function set into the spec's 30-function CBI table with module
// validation, view restrictions, and cross-contract calls.
type WasmHost struct {
	logger *log.Logger
	cache  *ModuleCache
}

func NewWasmHost(cache *ModuleCache) *WasmHost {
	if cache == nil {
		cache = NewModuleCache()
	}
	return &WasmHost{
		logger: log.New(os.Stdout, "WASM_HOST: ", log.Ldate|log.Ltime|log.Lshortfile),
		cache:  cache,
	}
}

// CompiledModule bundles a validated module with the store that owns it;
// wasmer modules are store-scoped, so Instantiate must reuse the same
// store the module was compiled against.
type CompiledModule struct {
	engine *wasmer.Engine
	store  *wasmer.Store
	module *wasmer.Module
	size   int
}

// Compile validates and compiles contract bytes for Deploy (spec §4.4):
// opcode-filters it, compiles it with Wasmer, and checks the required
// entrypoint export and linear-memory cap. It does not cache the result —
// callers that want the process-local cache populated call h.cache.Put
// themselves, mirroring the spec's "Deploy... cache the compiled module
// to the optional on-disk contract cache" as a caller-driven step.
func (h *WasmHost) Compile(code []byte) (*CompiledModule, error) {
	if err := NonDeterminismFilter(code); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDisallowedOpcode, err)
	}
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, code)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrCannotCompile, err)
	}
	if err := validateExports(module); err != nil {
		module.Close()
		store.Close()
		return nil, err
	}
	if err := validateMemoryLimit(module); err != nil {
		module.Close()
		store.Close()
		return nil, err
	}
	return &CompiledModule{engine: engine, store: store, module: module, size: len(code)}, nil
}

// Close releases the module and its owning store (spec §9 Design Notes:
// "Compile -> Instantiate -> Call -> Close", matching the teacher's
// defer store.Close()/module.Close() discipline).
func (cm *CompiledModule) Close() {
	cm.module.Close()
	cm.store.Close()
}

func validateExports(module *wasmer.Module) error {
	found := false
	for _, exp := range module.Exports() {
		if exp.Name() == "entrypoint" {
			fnType := exp.Type().FunctionType()
			if fnType == nil {
				continue
			}
			if len(fnType.Params()) != 0 || len(fnType.Results()) != 0 {
				continue
			}
			found = true
			break
		}
	}
	if !found {
		return core.ErrNoExportedContractMethod
	}
	return nil
}

func validateMemoryLimit(module *wasmer.Module) error {
	for _, exp := range module.Exports() {
		memType := exp.Type().MemoryType()
		if memType == nil {
			continue
		}
		limits := memType.Limits()
		if limits.Maximum > MaxLinearMemoryPages {
			return ErrModuleTooLarge
		}
	}
	return nil
}

// CallParams bundles everything WasmHost.Call needs beyond the compiled
// module: the host-function bridge into the ExecutionState, the
// HostFuncGasMeter sharing the transaction's gas budget, and whether this
// is a restricted view call (spec §4.7).
type CallParams struct {
	Host     HostContext
	GasMeter *gas.HostFuncGasMeter
	View     bool
}

// Call instantiates cm fresh (spec §5: modules are cached, instances are
// not — every call gets its own linear memory and globals) and invokes
// its entrypoint under the CBI host-function table, metered end to end.
func (h *WasmHost) Call(cm *CompiledModule, params CallParams) error {
	env := NewEnv(params.Host)
	view := params.View
	importObject := buildImportObject(cm.store, env, view)

	instance, err := wasmer.NewInstance(cm.module, importObject)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrRuntimeError, err)
	}
	defer instance.Close()

	memExport, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryNotExported, err)
	}
	var allocFn *wasmer.Function
	if fn, err := instance.Exports.GetFunction("alloc"); err == nil {
		allocFn = fn
	}
	env.Attach(NewMemory(memExport, allocFn))

	// wasmer-go v1 exposes no instruction-level metering global to attach
	// to (see wasmCallBaseCostPerByte above), so HostFuncGasMeter is bridged
	// to an in-memory stand-in for the duration of this call. The flat
	// per-call charge below flows through it; host functions charge the
	// native GasMeter directly, so Detach finds nothing further to add.
	global := gas.NewMemGasGlobal(0)
	if err := params.GasMeter.Attach(global); err != nil {
		return fmt.Errorf("%w: %v", core.ErrGasExhaustionError, err)
	}
	defer params.GasMeter.Detach()

	if err := params.GasMeter.ChargeHostCall(gas.OpWasmMemory, gas.CostChange{
		Deduct: wasmCallBaseCostPerByte * uint64(cm.size),
	}); err != nil {
		return fmt.Errorf("%w: %v", core.ErrGasExhaustionError, err)
	}

	entrypoint, err := instance.Exports.GetFunction("entrypoint")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoExportedContractMethod, err)
	}
	if _, err := entrypoint(); err != nil {
		if _, ok := err.(*wasmer.TrapError); ok {
			return fmt.Errorf("%w: %v", core.ErrRuntimeError, err)
		}
		return fmt.Errorf("%w: %v", core.ErrRuntimeError, err)
	}
	return nil
}

// Cache exposes the process-local module cache so Deploy/Call executors
// can populate and consult it (spec §5).
func (h *WasmHost) Cache() *ModuleCache { return h.cache }

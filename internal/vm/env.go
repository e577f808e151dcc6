package vm

import (
	"sync"

	"github.com/empower1/empower1/internal/core"
)

// CallDescriptor is the sub-Call a contract requests via the `call` host
// function (spec §4.7): read out of guest memory, then dispatched back
// through the same Call executor recursively.
type CallDescriptor struct {
	Target    core.Address
	Method    string
	Arguments []byte
	Amount    uint64
	GasLimit  uint64 // left zero by the `call` host function and not consulted: a sub-call spends from the caller's GasMeter
}

// CallResult is what a recursive Call produces for the `call` host
// function to copy back into the calling guest's memory.
type CallResult struct {
	ReturnValue []byte
	GasUsed     uint64
}

// HostContext is the narrow surface internal/execution's ExecutionState
// exposes to the Wasm host-function table. Defining the boundary here
// (rather than vm importing internal/execution directly) breaks what
// would otherwise be an import cycle: execution.CommandExecutors drive
// vm.WasmHost.Call, and vm's host functions need to read/write back into
// the very ExecutionState that invoked them (spec §4.7's Env).
//
// Every method here is exactly one CBI operation (spec §4.7's op list);
// HostContext implementations are responsible for routing each through
// the GasMeter so every access is charged (spec §4.3).
type HostContext interface {
	SetStorage(key, value []byte) error
	GetStorage(key []byte) ([]byte, error)
	GetNetworkStorage(key []byte) ([]byte, error)
	Balance(addr core.Address) (uint64, error)
	BlockHeight() uint64
	BlockTimestamp() uint64
	PrevBlockHash() [32]byte
	CallingAccount() core.Address
	CurrentAccount() core.Address
	Method() string
	Arguments() []byte
	Amount() uint64
	IsInternalCall() bool
	TransactionHash() [32]byte
	Call(desc CallDescriptor) (CallResult, error)
	SetReturnValue(v []byte) error
	Transfer(to core.Address, amount uint64) error
	DeferCommand(kind core.CommandKind, payload []byte) error
	Log(topic, value []byte) error
	SHA256(data []byte) ([32]byte, error)
	Keccak256(data []byte) ([32]byte, error)
	RIPEMD160(data []byte) ([20]byte, error)
	VerifyEd25519(pubKey, message, sig []byte) (bool, error)
	ChargeWasmMemory(nbytes uint64) error
	IsView() bool
}

// Env is the per-call handle wasmer's host functions close over. Spec
// §5 calls out that the Wasm engine requires Send+Sync+Clone on whatever
// carries this state even though Go never shares it across goroutines; a
// mutex-guarded struct is the direct Go analogue of the Arc<Mutex<...>>
// the reference implementation uses for that trait bound, and is kept
// here (rather than relying on Go's lack of a Send/Sync requirement)
// because wasmer-go's import-object callbacks are registered once and
// may in principle be invoked from a pool goroutine by a future
// concurrent scheduler outside THE CORE's scope (spec §9 Design Notes).
type Env struct {
	mu   sync.Mutex
	host HostContext
	mem  *Memory
}

// NewEnv constructs an Env for a single contract call; Attach binds the
// guest's linear memory once the instance exists; WasmHost.Call calls it
// directly after instantiation (the counterpart of the teacher's
// HostFunctionEnvironment.OnInstantiated in internal/vm/vm.go).
func NewEnv(host HostContext) *Env {
	return &Env{host: host}
}

func (e *Env) Attach(mem *Memory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mem = mem
}

// with runs fn while holding the Env's lock and returns its error,
// guarding every host-function entry point the same way (spec §5:
// "locked for the duration of each host-function invocation").
func (e *Env) with(fn func(host HostContext, mem *Memory) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host == nil || e.mem == nil {
		return ErrNoHostContext
	}
	return fn(e.host, e.mem)
}

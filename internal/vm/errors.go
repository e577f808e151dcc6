package vm

import "errors"

// Sentinel errors surfaced by WasmHost module validation and the CBI
// host-function table (spec §4.7). Command-level errors (InvalidCBI,
// ContractAlreadyExists, ...) live in internal/core/errors.go; these cover
// only WasmHost's own plumbing.
var (
	ErrMemoryNotExported  = errors.New("vm: module does not export linear memory")
	ErrAllocNotExported   = errors.New("vm: module does not export alloc(size) -> ptr")
	ErrMemoryOutOfBounds  = errors.New("vm: guest memory access out of bounds")
	ErrHostFuncNotAllowed = errors.New("vm: host function not permitted in a view call")
	ErrDeferTagMismatch   = errors.New("vm: deferred command tag does not match expected kind")
	ErrModuleTooLarge     = errors.New("vm: module linear memory limit exceeds configured cap")
	ErrNoHostContext      = errors.New("vm: no host context attached to this call")
)

// Package vm implements the sandboxed smart-contract host (spec §4.7):
// Wasm module compilation and validation (NonDeterminismFilter, export
// checks, memory-limit cap), the fixed 30-function Contract Binary
// Interface host-function table, and the metered instantiate/call
// lifecycle shared between mutating Call/Deploy execution and restricted
// view calls.
//
// Grounded on the teacher's internal/vm/vm.go (VMService: per-call
// engine/store/module/instance lifecycle, HostFunctionEnvironment) and
// internal/vm/host_functions.go (the original ad hoc host-function set),
// generalized into the spec's CBI table, opcode filter, and cross-contract
// call support.
package vm

// Package execution implements the PhaseOrchestrator, CommandExecutors,
// and NextEpoch protocol command (spec §4.4, §4.5, §4.6): the component
// that actually runs a transaction's commands against a GasMeter-wrapped
// WorldStateCache and, for Call/Deploy, against the Wasm host in
// internal/vm.
//
// Grounded on the teacher's internal/core/blockchain.go transaction-
// application loop (ProcessBlock -> per-tx dispatch by type), generalized
// from "apply one of a handful of transaction types to a flat account
// map" into the spec's command-loop-with-deferred-stack-and-gas-metered-
// cache design.
package execution

import (
	"github.com/google/uuid"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/gas"
	"github.com/empower1/empower1/internal/state"
	"github.com/empower1/empower1/internal/vm"
)

// TransitionContext is the shared state every command in a transition
// reads and mutates (spec §3: "ctx = {sc_context, deferred_commands,
// gas_meter}; gas_meter owns the cache"). One TransitionContext is
// created per transition and destroyed at its end; it is never shared
// across transitions or goroutines (spec §5).
type TransitionContext struct {
	// CorrelationID tags every log line this transition's commands emit,
	// including nested/deferred ones, with a stable per-transition
	// identifier (SPEC_FULL.md §11 DOMAIN STACK: google/uuid). It plays no
	// role in consensus — it is never hashed, charged, or persisted.
	CorrelationID uuid.UUID

	Cache    *state.WorldStateCache
	Net      *state.NetworkAccount
	Gas      *gas.GasMeter
	Wasm     *vm.WasmHost
	Deferred []core.Command

	// CallDepth counts nested cross-contract calls, starting at 0 for the
	// top-level command and incrementing on every recursive Call (spec
	// §4.7's "call_counter"). Per spec §9's Open Questions, a view entry
	// point starts this at 0 (the reference implementation's resolved
	// behavior, not the TODO'd top-level-increments variant).
	CallDepth int
}

// CallFrame is the per-command-invocation data a Wasm host-function table
// exposes to the running guest (spec §4.7's Env: calling account, current
// account, method, arguments, amount, internal-call flag) plus the
// accumulating CommandOutput fields a successful call populates.
type CallFrame struct {
	Calling  core.Address
	Current  core.Address
	Method   string
	Args     []byte
	Amount   uint64
	Internal bool
	TxHash   [32]byte
	View     bool

	ReturnValue []byte
	Logs        []core.Log
}

// ExecutionState bundles a transaction's metadata, the block-level
// parameters, and the TransitionContext the PhaseOrchestrator drives
// (spec §3). Ownership of Ctx.Cache is strictly exclusive to the
// ExecutionState for the duration of one transition.
type ExecutionState struct {
	TxMeta core.TxMeta
	BD     core.BlockchainParams
	Ctx    *TransitionContext
}

// NewExecutionState constructs the per-transition state, creating the
// WorldStateCache and GasMeter that back it (spec §3: "Created per
// transaction, destroyed at the transition's end").
func NewExecutionState(ws *state.WorldState, meta core.TxMeta, bd core.BlockchainParams, wasmHost *vm.WasmHost) *ExecutionState {
	cache := state.NewWorldStateCache(ws)
	gm := gas.NewGasMeter(meta.GasLimit, cache, meta.Version)
	return &ExecutionState{
		TxMeta: meta,
		BD:     bd,
		Ctx: &TransitionContext{
			CorrelationID: uuid.New(),
			Cache:         cache,
			Net:           state.NewNetworkAccount(cache),
			Gas:           gm,
			Wasm:          wasmHost,
		},
	}
}

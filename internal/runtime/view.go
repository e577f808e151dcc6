package runtime

import (
	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/execution"
	"github.com/empower1/empower1/internal/metrics"
	"github.com/empower1/empower1/internal/state"
	"github.com/empower1/empower1/internal/vm"
)

// ViewV1Result is view_v1's return shape: a single command receipt in the
// flat V1 encoding, always populated, and the error the call returned, if
// any, alongside it.
type ViewV1Result struct {
	Receipt *core.CommandReceiptV1
	Error   error
}

// ViewV2Result mirrors ViewV1Result in the tagged-union V2 shape.
type ViewV2Result struct {
	Receipt *core.CommandReceiptV2
	Error   error
}

// ViewV1 runs a single read-only Call against ws and projects the result
// into the V1 command receipt shape (spec §6 view_v1). ws is never
// mutated: the WorldStateCache execution.View creates internally is
// discarded, never committed.
func ViewV1(ws *state.WorldState, gasLimit uint64, target core.Address, method string, args []byte, wasmHost *vm.WasmHost) ViewV1Result {
	result, err := execution.View(ws, gasLimit, target, method, args, wasmHost)
	metrics.RecordCommand(result.Kind.String(), result.ExitCode.String(), result.GasUsed)
	rv := toV1CommandReceipts([]execution.CommandResult{result})
	return ViewV1Result{Receipt: &rv[0], Error: err}
}

// ViewV2 mirrors ViewV1 in the V2 command receipt shape (spec §6 view_v2).
func ViewV2(ws *state.WorldState, gasLimit uint64, target core.Address, method string, args []byte, wasmHost *vm.WasmHost) ViewV2Result {
	result, err := execution.View(ws, gasLimit, target, method, args, wasmHost)
	metrics.RecordCommand(result.Kind.String(), result.ExitCode.String(), result.GasUsed)
	rv, _, _ := toV2CommandReceipts([]execution.CommandResult{result})
	return ViewV2Result{Receipt: &rv[0], Error: err}
}

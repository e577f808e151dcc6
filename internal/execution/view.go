package execution

import (
	"errors"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/state"
	"github.com/empower1/empower1/internal/vm"
)

// View runs a single read-only Call against ws (spec §4.7, §6 view_v1/v2):
// a borrowed WorldState that is never committed (the WorldStateCache this
// ExecutionState creates is simply discarded — ws itself is only ever
// mutated by CommitToWorldState, which a view never calls), a caller-
// supplied gas limit, and the restricted view host-function table (spec
// §4.7: "View calls restrict the host table: set, transfer, all defer_*,
// block_*, prev_block_hash, calling_account, amount, transaction_hash
// return an internal error"), enforced by internal/vm's host-function
// table, which answers those calls with vm.ErrHostFuncNotAllowed when the
// call runs as a view.
// CallDepth starts at 0, per spec §9's resolved Open Question (the
// reference implementation, not the source's TODO'd alternative).
func View(ws *state.WorldState, gasLimit uint64, target core.Address, method string, args []byte, wasmHost *vm.WasmHost) (CommandResult, error) {
	meta := core.TxMeta{Version: ws.Version(), GasLimit: gasLimit}
	es := NewExecutionState(ws, meta, core.BlockchainParams{}, wasmHost)

	frame := &CallFrame{
		Current: target,
		Method:  method,
		Args:    args,
		View:    true,
	}
	output, err := executeCall(es, frame)
	gasUsed := es.Ctx.Gas.TakeCurrentCommandResult()

	exitCode := core.ExitSuccess
	if err != nil {
		if isGasExhaustion(err) {
			exitCode = core.ExitGasExhausted
		} else {
			exitCode = core.ExitFailed
		}
	}
	result := CommandResult{Kind: core.CmdCall, ExitCode: exitCode, GasUsed: gasUsed, Output: output}
	if err != nil {
		return result, err
	}
	return result, nil
}

// ErrViewRestrictedHostCall names a view call reaching a host function
// the restricted table forbids (spec §4.7). Nothing returns it: the table
// in internal/vm reports such calls as vm.ErrHostFuncNotAllowed.
var ErrViewRestrictedHostCall = errors.New("execution: host call not permitted in a view")

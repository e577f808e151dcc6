// Package runtime exposes the four public entry points a block-assembly
// layer drives THE CORE through (spec §6): transition_v1/v2 apply a
// whole transaction to a WorldState, view_v1/v2 run a single read-only
// Call against a borrowed, never-committed WorldState. Everything here
// is a thin, version-aware projection over internal/execution's
// version-agnostic Outcome/CommandResult.
package runtime

import (
	"log"
	"os"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/execution"
	"github.com/empower1/empower1/internal/metrics"
	"github.com/empower1/empower1/internal/state"
	"github.com/empower1/empower1/internal/vm"
)

var logger = log.New(os.Stdout, "RUNTIME: ", log.Ldate|log.Ltime|log.Lshortfile)

// TransitionV1Result is transition_v1's return shape (spec §6): a receipt
// is present only when the transition reached the command loop at all
// (PreExecErr nil); otherwise Error names why it aborted with no state
// change and no receipt (spec §7).
type TransitionV1Result struct {
	NewState         *state.WorldState
	Receipt          *core.ReceiptV1
	Error            error
	ValidatorChanges *core.ValidatorChanges
}

// TransitionV2Result mirrors TransitionV1Result for V2 transactions.
type TransitionV2Result struct {
	NewState         *state.WorldState
	Receipt          *core.ReceiptV2
	Error            error
	ValidatorChanges *core.ValidatorChanges
}

// TransitionV1 applies a V1-tagged transaction to ws (spec §6
// transition_v1). tx.Meta.Version is forced to core.TxV1 so a caller
// cannot mismatch the transaction's tag with the receipt it asked for.
func TransitionV1(ws *state.WorldState, tx core.Transaction, bd core.BlockchainParams, wasmHost *vm.WasmHost) TransitionV1Result {
	tx.Meta.Version = core.TxV1
	outcome, err := execution.Execute(ws, tx, bd, wasmHost)
	if err != nil {
		logger.Printf("transition_v1: internal error: %v", err)
		return TransitionV1Result{NewState: ws, Error: err}
	}
	if outcome.PreExecErr != nil {
		metrics.RecordTransition("v1", true)
		return TransitionV1Result{NewState: outcome.NewState, Error: outcome.PreExecErr}
	}
	metrics.RecordTransition("v1", false)
	recordCommandMetrics(outcome.Commands)
	logger.Printf("transition_v1: correlation=%s commands=%d", outcome.CorrelationID, len(outcome.Commands))
	return TransitionV1Result{
		NewState:         outcome.NewState,
		Receipt:          &core.ReceiptV1{Commands: toV1CommandReceipts(outcome.Commands)},
		ValidatorChanges: outcome.ValidatorChanges,
	}
}

// TransitionV2 applies a V2-tagged transaction to ws (spec §6 transition_v2).
func TransitionV2(ws *state.WorldState, tx core.Transaction, bd core.BlockchainParams, wasmHost *vm.WasmHost) TransitionV2Result {
	tx.Meta.Version = core.TxV2
	outcome, err := execution.Execute(ws, tx, bd, wasmHost)
	if err != nil {
		logger.Printf("transition_v2: internal error: %v", err)
		return TransitionV2Result{NewState: ws, Error: err}
	}
	if outcome.PreExecErr != nil {
		metrics.RecordTransition("v2", true)
		return TransitionV2Result{NewState: outcome.NewState, Error: outcome.PreExecErr}
	}
	metrics.RecordTransition("v2", false)
	recordCommandMetrics(outcome.Commands)
	logger.Printf("transition_v2: correlation=%s commands=%d", outcome.CorrelationID, len(outcome.Commands))
	receipts, gasTotal, exit := toV2CommandReceipts(outcome.Commands)
	return TransitionV2Result{
		NewState: outcome.NewState,
		Receipt: &core.ReceiptV2{
			GasUsedTotal:    gasTotal,
			ExitCode:        exit,
			CommandReceipts: receipts,
		},
		ValidatorChanges: outcome.ValidatorChanges,
	}
}

// toV1CommandReceipts projects CommandResult into the flat V1 shape,
// little-endian-encoding the staking amount fields into ReturnValue
// (spec §6: "V1 writes withdrawal/stake/unstake amounts into
// return_value as little-endian u64").
func toV1CommandReceipts(results []execution.CommandResult) []core.CommandReceiptV1 {
	out := make([]core.CommandReceiptV1, len(results))
	for i, r := range results {
		rv := r.Output.ReturnValue
		switch r.Kind {
		case core.CmdWithdrawDeposit:
			rv = encodeLEUint64(r.Output.AmountWithdrawn)
		case core.CmdStakeDeposit:
			rv = encodeLEUint64(r.Output.AmountStaked)
		case core.CmdUnstakeDeposit:
			rv = encodeLEUint64(r.Output.AmountUnstaked)
		}
		out[i] = core.CommandReceiptV1{
			ExitCode:    r.ExitCode,
			GasUsed:     r.GasUsed,
			ReturnValue: rv,
			Logs:        r.Output.Logs,
		}
	}
	return out
}

// toV2CommandReceipts projects CommandResult into the tagged-union V2
// shape plus the whole-transaction summary fields (spec §6): GasUsedTotal
// sums every command's gas, and the transaction-level ExitCode is the
// last non-NotExecuted command's exit code (Success unless a command
// failed or exhausted gas).
func toV2CommandReceipts(results []execution.CommandResult) ([]core.CommandReceiptV2, uint64, core.ExitCode) {
	out := make([]core.CommandReceiptV2, len(results))
	var total uint64
	exit := core.ExitSuccess
	for i, r := range results {
		total += r.GasUsed
		if r.ExitCode != core.ExitNotExecuted {
			exit = r.ExitCode
		}
		out[i] = core.CommandReceiptV2{
			Kind:            r.Kind,
			ExitCode:        r.ExitCode,
			GasUsed:         r.GasUsed,
			ReturnValue:     r.Output.ReturnValue,
			Logs:            r.Output.Logs,
			AmountWithdrawn: r.Output.AmountWithdrawn,
			AmountStaked:    r.Output.AmountStaked,
			AmountUnstaked:  r.Output.AmountUnstaked,
		}
	}
	return out, total, exit
}

// recordCommandMetrics tallies each command's kind/exit-code/gas into the
// prometheus counters (SPEC_FULL.md §11).
func recordCommandMetrics(results []execution.CommandResult) {
	for _, r := range results {
		metrics.RecordCommand(r.Kind.String(), r.ExitCode.String(), r.GasUsed)
	}
}

func encodeLEUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
	return b
}

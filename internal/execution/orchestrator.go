// Package execution implements the PhaseOrchestrator, CommandExecutors,
// and NextEpoch protocol command (spec §4.4, §4.5, §4.6): the component
// that actually runs a transaction's commands against a GasMeter-wrapped
// WorldStateCache and, for Call/Deploy, against the Wasm host in
// internal/vm.
package execution

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/gas"
	"github.com/empower1/empower1/internal/state"
	"github.com/empower1/empower1/internal/vm"
)

// CommandResult is one command's outcome within a transition, shaped
// identically regardless of TxVersion; internal/runtime's transition_v1/v2
// wrappers project this into the version-specific receipt (spec §6).
type CommandResult struct {
	Kind     core.CommandKind
	ExitCode core.ExitCode
	GasUsed  uint64
	Output   core.CommandOutput
}

// Outcome is everything a transition produces besides the version-tagged
// receipt shape (spec §1: "(WorldState', Receipt, Optional<ValidatorChanges>,
// Optional<TransitionError>)").
type Outcome struct {
	NewState         *state.WorldState
	Commands         []CommandResult
	ValidatorChanges *core.ValidatorChanges
	CorrelationID    uuid.UUID

	// PreExecErr, when non-nil, means the transition aborted before any
	// command ran: NewState is the input WorldState unchanged, Commands is
	// empty, and no receipt should be produced at all (spec §7:
	// "Pre-execution errors abort the transition entirely with no receipt
	// and no state change").
	PreExecErr error
}

// pendingCommand is one entry on the LIFO command stack: a command plus
// the actor executing it (the signer for top-level commands, the emitting
// contract for deferred ones) and its original index in the transaction
// (used only by V2 Deploy address derivation).
type pendingCommand struct {
	actor core.Address
	cmd   core.Command
	index int
}

// Execute runs the full PhaseOrchestrator state machine — Pre-Charge,
// CommandLoop, Charge — over one transaction (spec §4.5). It is version-
// agnostic; internal/runtime's transition_v1/transition_v2 differ only in
// how they render Outcome.Commands into a receipt.
func Execute(ws *state.WorldState, tx core.Transaction, bd core.BlockchainParams, wasmHost *vm.WasmHost) (*Outcome, error) {
	if len(tx.Commands) == 0 {
		return nil, core.ErrEmptyTransaction
	}
	for _, cmd := range tx.Commands {
		if cmd.Kind == core.CmdNextEpoch {
			if len(tx.Commands) != 1 || bd.ValidatorPerformance == nil {
				return &Outcome{NewState: ws, PreExecErr: core.ErrInvalidNextEpochCommand}, nil
			}
		}
	}

	es := NewExecutionState(ws, tx.Meta, bd, wasmHost)
	signer := tx.Meta.Signer

	if preErr := preCharge(es, signer); preErr != nil {
		return &Outcome{NewState: ws, PreExecErr: preErr, CorrelationID: es.Ctx.CorrelationID}, nil
	}

	results, validatorChanges := commandLoop(es, signer, tx)

	newState, err := charge(es, signer, bd)
	if err != nil {
		return nil, fmt.Errorf("execution: charge phase failed: %w", err)
	}

	return &Outcome{
		NewState:         newState,
		Commands:         results,
		ValidatorChanges: validatorChanges,
		CorrelationID:    es.Ctx.CorrelationID,
	}, nil
}

// preCharge implements spec §4.5's Pre-Charge steps 1-4.
func preCharge(es *ExecutionState, signer core.Address) error {
	cost := gas.TxInclusionCost(es.TxMeta.Size, es.TxMeta.CommandKinds, es.TxMeta.Version)
	if err := es.Ctx.Gas.ChargeTxInclusion(cost); err != nil {
		return core.ErrPreExecutionGasExhausted
	}

	nonce, err := es.Ctx.Cache.BypassGetNonce(signer)
	if err != nil {
		return err
	}
	if nonce != es.TxMeta.Nonce {
		return core.ErrWrongNonce
	}

	perGas := es.BD.BaseFeePerGas + es.TxMeta.PriorityFeePerGas
	preChargeAmount := es.TxMeta.GasLimit * perGas
	if perGas != 0 && preChargeAmount/perGas != es.TxMeta.GasLimit {
		return core.ErrNotEnoughBalanceForGasLimit
	}
	balance, err := es.Ctx.Cache.GetBalance(signer)
	if err != nil {
		return err
	}
	if balance < preChargeAmount {
		return core.ErrNotEnoughBalanceForGasLimit
	}
	return es.Ctx.Cache.BypassSetBalance(signer, balance-preChargeAmount)
}

// commandLoop runs the LIFO deferred-command stack (spec §4.5 Command
// loop, §5 Ordering guarantees). A popped command's error reverts every
// pending cache write made since Pre-Charge and stops the loop; Charge
// still runs afterward on whatever gas was consumed up to that point.
func commandLoop(es *ExecutionState, signer core.Address, tx core.Transaction) ([]CommandResult, *core.ValidatorChanges) {
	stack := make([]pendingCommand, 0, len(tx.Commands))
	for i := len(tx.Commands) - 1; i >= 0; i-- {
		stack = append(stack, pendingCommand{actor: signer, cmd: tx.Commands[i], index: i})
	}

	var results []CommandResult
	var validatorChanges *core.ValidatorChanges
	aborted := false

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if aborted {
			if es.TxMeta.Version == core.TxV2 {
				results = append(results, CommandResult{Kind: next.cmd.Kind, ExitCode: core.ExitNotExecuted})
			}
			continue
		}

		output, changes, err := dispatchCommand(es, next.actor, next.cmd, next.index, es.TxMeta.Nonce)
		gasUsed := es.Ctx.Gas.TakeCurrentCommandResult()

		exitCode := core.ExitSuccess
		if err != nil {
			if isGasExhaustion(err) {
				exitCode = core.ExitGasExhausted
			} else {
				exitCode = core.ExitFailed
			}
		}
		results = append(results, CommandResult{Kind: next.cmd.Kind, ExitCode: exitCode, GasUsed: gasUsed, Output: output})

		if err != nil {
			es.Ctx.Cache.Revert()
			aborted = true
			continue
		}
		if changes != nil {
			validatorChanges = changes
		}

		if len(es.Ctx.Deferred) > 0 {
			deferred := es.Ctx.Deferred
			es.Ctx.Deferred = nil
			for i := len(deferred) - 1; i >= 0; i-- {
				stack = append(stack, pendingCommand{actor: next.cmd.Target, cmd: deferred[i], index: next.index})
			}
		}
	}
	return results, validatorChanges
}

func isGasExhaustion(err error) bool {
	return errors.Is(err, gas.ErrGasLimitExceeded) ||
		errors.Is(err, core.ErrExecutionProperGasExhausted) ||
		errors.Is(err, core.ErrGasExhaustionError) ||
		errors.Is(err, core.ErrPreExecutionGasExhausted)
}

// dispatchCommand routes cmd to its CommandExecutor (spec §4.4). nonce is
// the signer's pre-transition nonce, needed only by Deploy's V1 address
// derivation (V2 additionally uses cmdIndex).
func dispatchCommand(es *ExecutionState, actor core.Address, cmd core.Command, cmdIndex int, nonce uint64) (core.CommandOutput, *core.ValidatorChanges, error) {
	switch cmd.Kind {
	case core.CmdTransfer:
		out, err := executeTransfer(es, actor, cmd)
		return out, nil, err
	case core.CmdDeploy:
		_, out, err := executeDeploy(es, actor, cmd, nonce, cmdIndex)
		return out, nil, err
	case core.CmdCall:
		frame := &CallFrame{
			Calling: actor, Current: cmd.Target, Method: cmd.Method,
			Args: cmd.Arguments, Amount: cmd.Amount, TxHash: es.TxMeta.Hash,
		}
		out, err := executeCall(es, frame)
		return out, nil, err
	case core.CmdCreatePool:
		out, err := executeCreatePool(es, actor, cmd)
		return out, nil, err
	case core.CmdSetPoolSettings:
		out, err := executeSetPoolSettings(es, actor, cmd)
		return out, nil, err
	case core.CmdDeletePool:
		out, err := executeDeletePool(es, actor, cmd)
		return out, nil, err
	case core.CmdCreateDeposit:
		out, err := executeCreateDeposit(es, actor, cmd)
		return out, nil, err
	case core.CmdSetDepositSettings:
		out, err := executeSetDepositSettings(es, actor, cmd)
		return out, nil, err
	case core.CmdTopUpDeposit:
		out, err := executeTopUpDeposit(es, actor, cmd)
		return out, nil, err
	case core.CmdWithdrawDeposit:
		out, err := executeWithdrawDeposit(es, actor, cmd)
		return out, nil, err
	case core.CmdStakeDeposit:
		out, err := executeStakeDeposit(es, actor, cmd)
		return out, nil, err
	case core.CmdUnstakeDeposit:
		out, err := executeUnstakeDeposit(es, actor, cmd)
		return out, nil, err
	case core.CmdNextEpoch:
		return executeNextEpoch(es, es.BD.ValidatorPerformance)
	default:
		return core.CommandOutput{}, nil, core.ErrRuntimeError
	}
}

// charge implements spec §4.5's Charge phase: refund/proposer/treasury
// settlement with same-account chaining, nonce increment, cache commit.
func charge(es *ExecutionState, signer core.Address, bd core.BlockchainParams) (*state.WorldState, error) {
	gasUsed := es.Ctx.Gas.TotalUsed()
	if gasUsed > es.TxMeta.GasLimit {
		gasUsed = es.TxMeta.GasLimit
	}
	gasUnused := es.TxMeta.GasLimit - gasUsed
	perGas := bd.BaseFeePerGas + es.TxMeta.PriorityFeePerGas

	signerBal, err := es.Ctx.Cache.PurgeBalance(signer)
	if err != nil {
		return nil, err
	}
	signerBal = core.SaturatingAdd(signerBal, gasUnused*perGas)
	if err := es.Ctx.Cache.BypassSetBalance(signer, signerBal); err != nil {
		return nil, err
	}

	proposerBal, err := balanceAfterBypass(es, signer, signerBal, bd.ProposerAddress)
	if err != nil {
		return nil, err
	}
	proposerBal = core.SaturatingAdd(proposerBal, gasUsed*es.TxMeta.PriorityFeePerGas)
	if err := es.Ctx.Cache.BypassSetBalance(bd.ProposerAddress, proposerBal); err != nil {
		return nil, err
	}

	treasuryCut := gasUsed * bd.BaseFeePerGas * core.TreasuryCutNum / core.TreasuryCutDenom
	treasuryBal, err := balanceAfterBypass(es, bd.ProposerAddress, proposerBal, bd.TreasuryAddress)
	if err != nil {
		return nil, err
	}
	treasuryBal = core.SaturatingAdd(treasuryBal, treasuryCut)
	if err := es.Ctx.Cache.BypassSetBalance(bd.TreasuryAddress, treasuryBal); err != nil {
		return nil, err
	}

	if err := es.Ctx.Cache.BypassSetNonce(signer, es.TxMeta.Nonce+1); err != nil {
		return nil, err
	}

	return es.Ctx.Cache.CommitToWorldState()
}

// balanceAfterBypass reads addr's current balance and purges any pending
// cache write for it, except when addr equals the account whose balance
// was just finalized (already) — in that case it reuses the in-hand value
// so the chained update reads the prior step's new balance instead of
// racing the cache (spec §4.5 step 5: "chain the updates so each account
// reads the prior update"). Purging matters because every subsequent
// finalized balance in Charge is written directly through
// BypassSetBalance, bypassing the cache's write map entirely; if addr was
// also touched earlier in the same transaction by an ordinary metered
// write (e.g. it doubled as a Transfer recipient) and its pending write is
// left in place, CommitToWorldState() would later replay that stale
// pre-fee value over the bypass write and silently erase the fee payment
// (violates spec §8 Conservation), exactly as PurgeBalance already
// prevents for the signer above.
func balanceAfterBypass(es *ExecutionState, prevAddr core.Address, prevBal uint64, addr core.Address) (uint64, error) {
	if addr == prevAddr {
		return prevBal, nil
	}
	return es.Ctx.Cache.PurgeBalance(addr)
}

package execution

import (
	"encoding/binary"
	"fmt"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/crypto"
	"github.com/empower1/empower1/internal/gas"
	"github.com/empower1/empower1/internal/metrics"
	"github.com/empower1/empower1/internal/vm"
)

// acceptedCBIVersions is the set of cbi_version values Deploy will accept
// (spec §4.4: "currently just {0}").
var acceptedCBIVersions = map[uint32]bool{0: true}

// transferBalance moves amount from from to to through the gas-metered
// cache (spec §4.4 Transfer: "decrement signer's balance by exactly
// amount... increment recipient's balance saturating to u64::MAX"). Shared
// by the Transfer executor, Call's optional value transfer, and
// hostAdapter.Transfer (the CBI `transfer` host function).
func transferBalance(ctx *TransitionContext, from, to core.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromBal, err := ctx.Gas.GetBalance(from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return core.ErrNotEnoughBalanceForTransfer
	}
	if err := ctx.Gas.SetBalance(from, fromBal-amount); err != nil {
		return err
	}
	toBal, err := ctx.Gas.GetBalance(to)
	if err != nil {
		return err
	}
	return ctx.Gas.SetBalance(to, core.SaturatingAdd(toBal, amount))
}

// executeTransfer implements Transfer (spec §4.4).
func executeTransfer(es *ExecutionState, actor core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := transferBalance(es.Ctx, actor, cmd.Recipient, cmd.Amount); err != nil {
		return core.CommandOutput{}, err
	}
	return core.CommandOutput{}, nil
}

// deployContractAddress computes the deterministic contract address for a
// Deploy command (spec §4.4): V1 hashes signer||nonce; V2 additionally
// folds in the command's index within the transaction. SHA-256 is used
// because it already yields the 32 bytes core.Address needs with no
// truncation, matching the teacher's preference (internal/crypto/hashes.go)
// for stdlib SHA-256 wherever a hash's width, not its domain-specific
// properties, is what matters.
func deployContractAddress(version core.TxVersion, signer core.Address, nonce uint64, cmdIndex int) core.Address {
	buf := make([]byte, 0, core.AddressLength+8+4)
	buf = append(buf, signer.Bytes()...)
	nb := make([]byte, 8)
	binary.BigEndian.PutUint64(nb, nonce)
	buf = append(buf, nb...)
	if version == core.TxV2 {
		ib := make([]byte, 4)
		binary.BigEndian.PutUint32(ib, uint32(cmdIndex))
		buf = append(buf, ib...)
	}
	return core.Address(crypto.SHA256(buf))
}

// executeDeploy implements Deploy (spec §4.4). cmdIndex is the command's
// position within the transaction's Commands slice, used only for V2
// address derivation.
func executeDeploy(es *ExecutionState, actor core.Address, cmd core.Command, nonce uint64, cmdIndex int) (core.Address, core.CommandOutput, error) {
	if !acceptedCBIVersions[cmd.CBIVersion] {
		return core.Address{}, core.CommandOutput{}, core.ErrInvalidCBI
	}
	addr := deployContractAddress(es.TxMeta.Version, actor, nonce, cmdIndex)

	if _, exists, err := es.Ctx.Gas.CBIVersion(addr); err != nil {
		return core.Address{}, core.CommandOutput{}, err
	} else if exists {
		return core.Address{}, core.CommandOutput{}, core.ErrContractAlreadyExists
	}

	cm, err := es.Ctx.Wasm.Compile(cmd.Code)
	if err != nil {
		return core.Address{}, core.CommandOutput{}, err
	}

	if err := es.Ctx.Gas.SetContractCode(addr, cmd.Code); err != nil {
		cm.Close()
		return core.Address{}, core.CommandOutput{}, err
	}
	if err := es.Ctx.Gas.SetCBIVersion(addr, cmd.CBIVersion); err != nil {
		cm.Close()
		return core.Address{}, core.CommandOutput{}, err
	}
	// The compiled module is handed to the cache live (not Closed): spec §5
	// keeps the cache read-only and cross-transaction, so Call can reuse
	// the same store/module pair on a cache hit instead of recompiling.
	es.Ctx.Wasm.Cache().Put(addr, cm)
	return addr, core.CommandOutput{}, nil
}

// executeCall implements Call (spec §4.4, §4.7): optional value transfer,
// CBI-version check, module load (cache or recompile), sub-budget
// computation, and a metered WasmHost.Call with cross-contract recursion
// support via hostAdapter.recurse.
func executeCall(es *ExecutionState, frame *CallFrame) (core.CommandOutput, error) {
	if frame.Amount > 0 {
		if err := transferBalance(es.Ctx, frame.Calling, frame.Current, frame.Amount); err != nil {
			return core.CommandOutput{}, err
		}
	}

	version, ok, err := es.Ctx.Gas.CBIVersion(frame.Current)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !ok || !acceptedCBIVersions[version] {
		return core.CommandOutput{}, core.ErrInvalidCBI
	}

	code, err := es.Ctx.Gas.ContractCode(frame.Current)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if len(code) == 0 {
		return core.CommandOutput{}, core.ErrNoContractCode
	}

	if es.Ctx.Gas.Remaining() == 0 {
		return core.CommandOutput{}, core.ErrExecutionProperGasExhausted
	}

	cm, fromCache := es.Ctx.Wasm.Cache().Get(frame.Current)
	if fromCache {
		metrics.RecordCacheHit()
	} else {
		metrics.RecordCacheMiss()
		compiled, err := es.Ctx.Wasm.Compile(code)
		if err != nil {
			return core.CommandOutput{}, err
		}
		cm = compiled
		es.Ctx.Wasm.Cache().Put(frame.Current, cm)
	}

	es.Ctx.CallDepth++
	metrics.SetCommandLoopDepth(es.Ctx.CallDepth)
	defer func() {
		es.Ctx.CallDepth--
		metrics.SetCommandLoopDepth(es.Ctx.CallDepth)
	}()

	adapter := &hostAdapter{
		es:    es,
		frame: frame,
		recurse: func(desc vm.CallDescriptor) (vm.CallResult, error) {
			return recurseCall(es, frame.Current, desc)
		},
	}

	hostMeter := gas.NewHostFuncGasMeter(es.Ctx.Gas)
	callErr := es.Ctx.Wasm.Call(cm, vm.CallParams{Host: adapter, GasMeter: hostMeter, View: frame.View})
	if callErr != nil {
		// Logs (and any return value) already written before the failing
		// operation are preserved in the receipt even though the command
		// itself errors (spec §8 scenario 5); only the world-state writes
		// get reverted, by the caller's cache.Revert() on error.
		out := core.CommandOutput{ReturnValue: frame.ReturnValue, Logs: frame.Logs}
		if es.Ctx.Gas.Remaining() == 0 {
			return out, core.ErrGasExhaustionError
		}
		return out, callErr
	}

	return core.CommandOutput{
		ReturnValue: frame.ReturnValue,
		Logs:        frame.Logs,
	}, nil
}

// recurseCall is the `call` host function's entry back into the Call
// executor (spec §4.7): the current contract becomes the sub-signer, and
// the sub-call runs on the same GasMeter as its caller, so its budget is
// the caller's current remaining gas within the one transaction budget
// rather than a separately-allotted pool (desc.GasLimit is not read).
func recurseCall(es *ExecutionState, calling core.Address, desc vm.CallDescriptor) (vm.CallResult, error) {
	sub := &CallFrame{
		Calling:  calling,
		Current:  desc.Target,
		Method:   desc.Method,
		Args:     desc.Arguments,
		Amount:   desc.Amount,
		Internal: true,
		TxHash:   es.TxMeta.Hash,
		View:     false,
	}
	before := es.Ctx.Gas.Remaining()
	out, err := executeCall(es, sub)
	if err != nil {
		return vm.CallResult{}, fmt.Errorf("%w", err)
	}
	after := es.Ctx.Gas.Remaining()
	used := uint64(0)
	if before > after {
		used = before - after
	}
	return vm.CallResult{ReturnValue: out.ReturnValue, GasUsed: used}, nil
}

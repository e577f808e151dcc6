package execution

import (
	"encoding/binary"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/crypto"
	"github.com/empower1/empower1/internal/vm"
)

// hostAdapter implements vm.HostContext by routing every CBI operation
// through the TransitionContext's gas-metered cache and the current
// CallFrame (spec §4.7's Env). recurse lets the `call` host function
// dispatch back into the Call executor without vm importing execution
// (see internal/vm/env.go's HostContext doc comment).
type hostAdapter struct {
	es      *ExecutionState
	frame   *CallFrame
	recurse func(desc vm.CallDescriptor) (vm.CallResult, error)
}

var _ vm.HostContext = (*hostAdapter)(nil)

func (h *hostAdapter) SetStorage(key, value []byte) error {
	return h.es.Ctx.Gas.SetStorageData(h.frame.Current, key, value)
}

func (h *hostAdapter) GetStorage(key []byte) ([]byte, error) {
	return h.es.Ctx.Gas.StorageData(h.frame.Current, key)
}

func (h *hostAdapter) GetNetworkStorage(key []byte) ([]byte, error) {
	return h.es.Ctx.Gas.StorageData(core.NetworkAddress, key)
}

func (h *hostAdapter) Balance(addr core.Address) (uint64, error) {
	return h.es.Ctx.Gas.GetBalance(addr)
}

func (h *hostAdapter) BlockHeight() uint64    { return h.es.BD.BlockHeight }
func (h *hostAdapter) BlockTimestamp() uint64 { return h.es.BD.BlockTimestamp }
func (h *hostAdapter) PrevBlockHash() [32]byte { return h.es.BD.PrevBlockHash }

func (h *hostAdapter) CallingAccount() core.Address { return h.frame.Calling }
func (h *hostAdapter) CurrentAccount() core.Address { return h.frame.Current }
func (h *hostAdapter) Method() string               { return h.frame.Method }
func (h *hostAdapter) Arguments() []byte            { return h.frame.Args }
func (h *hostAdapter) Amount() uint64               { return h.frame.Amount }
func (h *hostAdapter) IsInternalCall() bool         { return h.frame.Internal }
func (h *hostAdapter) TransactionHash() [32]byte    { return h.frame.TxHash }
func (h *hostAdapter) IsView() bool                 { return h.frame.View }

func (h *hostAdapter) Call(desc vm.CallDescriptor) (vm.CallResult, error) {
	return h.recurse(desc)
}

func (h *hostAdapter) SetReturnValue(v []byte) error {
	if err := h.es.Ctx.Gas.ChargeReturnValue(uint64(len(v))); err != nil {
		return err
	}
	h.frame.ReturnValue = append([]byte(nil), v...)
	return nil
}

func (h *hostAdapter) Transfer(to core.Address, amount uint64) error {
	return transferBalance(h.es.Ctx, h.frame.Current, to, amount)
}

func (h *hostAdapter) DeferCommand(kind core.CommandKind, payload []byte) error {
	cmd, err := decodeDeferredCommand(kind, payload)
	if err != nil {
		return err
	}
	h.es.Ctx.Deferred = append(h.es.Ctx.Deferred, cmd)
	return nil
}

func (h *hostAdapter) Log(topic, value []byte) error {
	if err := h.es.Ctx.Gas.ChargeLog(uint64(len(topic)), uint64(len(value))); err != nil {
		return err
	}
	h.frame.Logs = append(h.frame.Logs, core.Log{Topic: append([]byte(nil), topic...), Value: append([]byte(nil), value...)})
	return nil
}

func (h *hostAdapter) SHA256(data []byte) ([32]byte, error) {
	if err := h.es.Ctx.Gas.ChargeSHA256(uint64(len(data))); err != nil {
		return [32]byte{}, err
	}
	return crypto.SHA256(data), nil
}

func (h *hostAdapter) Keccak256(data []byte) ([32]byte, error) {
	if err := h.es.Ctx.Gas.ChargeKeccak256(uint64(len(data))); err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256(data), nil
}

func (h *hostAdapter) RIPEMD160(data []byte) ([20]byte, error) {
	if err := h.es.Ctx.Gas.ChargeRIPEMD160(uint64(len(data))); err != nil {
		return [20]byte{}, err
	}
	return crypto.RIPEMD160(data), nil
}

func (h *hostAdapter) VerifyEd25519(pubKey, message, sig []byte) (bool, error) {
	if err := h.es.Ctx.Gas.ChargeEd25519Verify(uint64(len(message))); err != nil {
		return false, err
	}
	return crypto.VerifyEd25519Signature(pubKey, message, sig), nil
}

func (h *hostAdapter) ChargeWasmMemory(nbytes uint64) error {
	return h.es.Ctx.Gas.ChargeWasmMemory(nbytes)
}

// decodeDeferredCommand validates the tag matches the expected command
// kind and decodes its fixed fields out of payload (spec §4.7: "validate
// the tag matches the expected command kind (else Internal)"). Layouts,
// integers little-endian: rate[1] for CreatePool/SetPoolSettings;
// operator[32] || balance[8] || auto_stake[1] for CreateDeposit;
// operator[32] || auto_stake[1] for SetDepositSettings; operator[32] ||
// amount[8] for TopUpDeposit (into Amount) and for WithdrawDeposit/
// StakeDeposit/UnstakeDeposit (into MaxAmount). DeletePool reads nothing.
// A short payload or any other kind yields vm.ErrDeferTagMismatch.
func decodeDeferredCommand(kind core.CommandKind, payload []byte) (core.Command, error) {
	cmd := core.Command{Kind: kind}
	switch kind {
	case core.CmdCreatePool, core.CmdSetPoolSettings:
		if len(payload) < 1 {
			return cmd, vm.ErrDeferTagMismatch
		}
		cmd.CommissionRate = payload[0]
	case core.CmdDeletePool:
		// no fields
	case core.CmdCreateDeposit:
		if len(payload) < core.AddressLength+9 {
			return cmd, vm.ErrDeferTagMismatch
		}
		op, err := core.AddressFromBytes(payload[:core.AddressLength])
		if err != nil {
			return cmd, err
		}
		cmd.Operator = op
		cmd.DepositBalance = binary.LittleEndian.Uint64(payload[core.AddressLength : core.AddressLength+8])
		cmd.AutoStakeRewards = payload[core.AddressLength+8] != 0
	case core.CmdSetDepositSettings:
		if len(payload) < core.AddressLength+1 {
			return cmd, vm.ErrDeferTagMismatch
		}
		op, err := core.AddressFromBytes(payload[:core.AddressLength])
		if err != nil {
			return cmd, err
		}
		cmd.Operator = op
		cmd.AutoStakeRewards = payload[core.AddressLength] != 0
	case core.CmdTopUpDeposit, core.CmdWithdrawDeposit, core.CmdStakeDeposit, core.CmdUnstakeDeposit:
		if len(payload) < core.AddressLength+8 {
			return cmd, vm.ErrDeferTagMismatch
		}
		op, err := core.AddressFromBytes(payload[:core.AddressLength])
		if err != nil {
			return cmd, err
		}
		cmd.Operator = op
		amt := binary.LittleEndian.Uint64(payload[core.AddressLength : core.AddressLength+8])
		if kind == core.CmdTopUpDeposit {
			cmd.Amount = amt
		} else {
			cmd.MaxAmount = amt
		}
	default:
		return cmd, vm.ErrDeferTagMismatch
	}
	return cmd, nil
}

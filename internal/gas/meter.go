package gas

import (
	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/state"
)

// GasMeter is the native-side gas accounting object threaded through the
// whole transition (spec §3, §4.3): three running counters plus the
// charging methods every WorldStateCache access and crypto primitive call
// routes through. It never touches Wasm directly — that's
// HostFuncGasMeter/WasmerGasGlobal's job — but it is the single source of
// truth for how much of the transaction's gas limit remains.
//
// Grounded on the teacher's internal/vm/gas.go GasTank (a single running
// counter with a hard cap), generalized into the spec's three-counter
// design: gas spent on deterministic tx-inclusion bookkeeping never mixes
// with gas spent executing commands, so a command that runs out of gas
// can be charged and reverted without touching inclusion accounting.
type GasMeter struct {
	limit uint64

	gasUsedForTxnInclusion          uint64
	totalGasUsedForExecutedCommands uint64
	gasUsedForCurrentCommand        uint64

	cache   *state.WorldStateCache
	version core.TxVersion

	history []ChargeResult
}

func NewGasMeter(limit uint64, cache *state.WorldStateCache, version core.TxVersion) *GasMeter {
	return &GasMeter{limit: limit, cache: cache, version: version}
}

func (m *GasMeter) Limit() uint64 { return m.limit }

// Remaining is the gas still available to the currently executing command:
// limit minus everything already committed (inclusion + prior commands)
// minus what the current command has spent so far.
func (m *GasMeter) Remaining() uint64 {
	spent := m.gasUsedForTxnInclusion + m.totalGasUsedForExecutedCommands + m.gasUsedForCurrentCommand
	if spent >= m.limit {
		return 0
	}
	return m.limit - spent
}

func (m *GasMeter) TotalUsed() uint64 {
	return m.gasUsedForTxnInclusion + m.totalGasUsedForExecutedCommands + m.gasUsedForCurrentCommand
}

// ChargeTxInclusion charges the fixed per-transaction inclusion cost
// during PreCharge, before any command runs (spec §4.5).
func (m *GasMeter) ChargeTxInclusion(cost uint64) error {
	if cost > m.Remaining() {
		return ErrGasLimitExceeded
	}
	m.gasUsedForTxnInclusion += cost
	return nil
}

// charge deducts cost from the current command's running counter,
// recording the operation for telemetry (SUPPLEMENT, §13), and rejects
// the charge outright if it would exceed the remaining budget — the
// caller is responsible for then aborting and reverting the command.
func (m *GasMeter) charge(op OperationKind, change CostChange) (ChargeResult, error) {
	net := change.Net()
	if net > m.Remaining() {
		return ChargeResult{}, ErrGasLimitExceeded
	}
	m.gasUsedForCurrentCommand += net
	result := ChargeResult{Change: change, Op: op}
	m.history = append(m.history, result)
	return result, nil
}

// TakeCurrentCommandResult folds gas_used_for_current_command into
// total_gas_used_for_executed_commands and resets the per-command
// counter to zero, clamping at the remaining budget so a command that
// somehow over-spent never drives the running total above the limit
// (spec §4.3 take_current_command_result). Called once per command by
// the CommandLoop, win or lose.
func (m *GasMeter) TakeCurrentCommandResult() uint64 {
	used := m.gasUsedForCurrentCommand
	available := m.limit - m.gasUsedForTxnInclusion - m.totalGasUsedForExecutedCommands
	if used > available {
		used = available
	}
	m.totalGasUsedForExecutedCommands += used
	m.gasUsedForCurrentCommand = 0
	return used
}

// DiscardCurrentCommand resets the per-command counter without folding it
// into the executed-commands total — used when a command's effects (and
// the gas notionally spent performing them) are reverted in full and the
// caller instead wants to charge a fixed error surcharge via charge().
func (m *GasMeter) DiscardCurrentCommand() {
	m.gasUsedForCurrentCommand = 0
}

func (m *GasMeter) History() []ChargeResult {
	return append([]ChargeResult(nil), m.history...)
}

// GetBalance/SetBalance/StorageData/SetStorageData/ContractCode/
// SetContractCode/CBIVersion/SetCBIVersion wrap the matching
// WorldStateCache accessor with the appropriate CostFormula charge,
// so every CommandExecutor reads/writes state exclusively through the
// meter and can never forget to pay for an access (spec §4.3).

func (m *GasMeter) GetBalance(addr core.Address) (uint64, error) {
	if _, err := m.charge(OpBalanceRead, CostChange{Deduct: GetCostTraverse(AccountTrieKeyLength) + GetCostRead(8)}); err != nil {
		return 0, err
	}
	return m.cache.GetBalance(addr)
}

func (m *GasMeter) SetBalance(addr core.Address, val uint64) error {
	if _, err := m.charge(OpBalanceWrite, SetCost(AccountTrieKeyLength, 8, 8)); err != nil {
		return err
	}
	m.cache.SetBalance(addr, val)
	return nil
}

func (m *GasMeter) StorageData(addr core.Address, key []byte) ([]byte, error) {
	length, keccakCost := StorageTrieTraversedKeyLen(m.version, key)
	if keccakCost > 0 {
		if _, err := m.charge(OpKeccak256, CostChange{Deduct: keccakCost}); err != nil {
			return nil, err
		}
	}
	if _, err := m.charge(OpStorageGet, CostChange{Deduct: GetCostTraverse(length)}); err != nil {
		return nil, err
	}
	val, err := m.cache.StorageData(addr, key)
	if err != nil {
		return nil, err
	}
	if _, err := m.charge(OpStorageGet, CostChange{Deduct: GetCostRead(uint64(len(val)))}); err != nil {
		return nil, err
	}
	return val, nil
}

func (m *GasMeter) SetStorageData(addr core.Address, key, value []byte) error {
	old, err := m.cache.StorageData(addr, key)
	if err != nil {
		return err
	}
	length, keccakCost := StorageTrieTraversedKeyLen(m.version, key)
	if keccakCost > 0 {
		if _, err := m.charge(OpKeccak256, CostChange{Deduct: keccakCost}); err != nil {
			return err
		}
	}
	cost := SetCost(length, uint64(len(old)), uint64(len(value)))
	if _, err := m.charge(OpStorageSet, cost); err != nil {
		return err
	}
	m.cache.SetStorageData(addr, key, value)
	return nil
}

func (m *GasMeter) ContractCode(addr core.Address) ([]byte, error) {
	if _, err := m.charge(OpCodeRead, CostChange{Deduct: GetCostTraverse(AccountTrieKeyLength)}); err != nil {
		return nil, err
	}
	code, err := m.cache.ContractCode(addr)
	if err != nil {
		return nil, err
	}
	if _, err := m.charge(OpCodeRead, CostChange{Deduct: DiscountCodeRead(GetCostRead(uint64(len(code))))}); err != nil {
		return nil, err
	}
	return code, nil
}

func (m *GasMeter) SetContractCode(addr core.Address, code []byte) error {
	if _, err := m.charge(OpCodeWrite, SetCost(AccountTrieKeyLength, 0, uint64(len(code)))); err != nil {
		return err
	}
	m.cache.SetContractCode(addr, code)
	return nil
}

func (m *GasMeter) CBIVersion(addr core.Address) (uint32, bool, error) {
	if _, err := m.charge(OpCBIVersionReadWrite, CostChange{Deduct: GetCostTraverse(AccountTrieKeyLength) + GetCostRead(4)}); err != nil {
		return 0, false, err
	}
	return m.cache.CBIVersion(addr)
}

func (m *GasMeter) SetCBIVersion(addr core.Address, version uint32) error {
	if _, err := m.charge(OpCBIVersionReadWrite, SetCost(AccountTrieKeyLength, 4, 4)); err != nil {
		return err
	}
	m.cache.SetCBIVersion(addr, version)
	return nil
}

// ChargeSHA256/ChargeKeccak256/ChargeRIPEMD160/ChargeEd25519Verify charge
// for a single invocation of the matching host-exposed cryptographic
// primitive, sized by input length (spec §4.1, §4.7).
func (m *GasMeter) ChargeSHA256(nbytes uint64) error {
	_, err := m.charge(OpSHA256, CostChange{Deduct: CryptoSHA256PerByte * nbytes})
	return err
}

func (m *GasMeter) ChargeKeccak256(nbytes uint64) error {
	_, err := m.charge(OpKeccak256, CostChange{Deduct: CryptoKeccak256PerByte * nbytes})
	return err
}

func (m *GasMeter) ChargeRIPEMD160(nbytes uint64) error {
	_, err := m.charge(OpRIPEMD160, CostChange{Deduct: CryptoRIPEMD160PerByte * nbytes})
	return err
}

func (m *GasMeter) ChargeEd25519Verify(nbytes uint64) error {
	_, err := m.charge(OpEd25519Verify, CostChange{Deduct: Ed25519VerifyBase + Ed25519VerifyPerByte*nbytes})
	return err
}

// ChargeReturnValue charges for a Wasm call's `return_value` host
// function writing nbytes into the command's output — or, identically
// shaped, a staking command's "amount moved" output field (spec §1,
// §4.3 "Special path"). If this exceeds the remaining budget the caller
// must surface gas exhaustion with the output field absent rather than
// partially written (spec §4.3, §8 scenario 5).
func (m *GasMeter) ChargeReturnValue(nbytes uint64) error {
	_, err := m.charge(OpReturnValue, CostChange{Deduct: ReturnValueWriteCost(nbytes)})
	return err
}

// ChargeLog charges a single `log` host-function emission (spec §1,
// §4.7).
func (m *GasMeter) ChargeLog(topicLen, valueLen uint64) error {
	_, err := m.charge(OpLog, CostChange{Deduct: LogWriteCost(topicLen, valueLen)})
	return err
}

// ChargeWasmMemory charges for a Wasm guest allocating/growing linear
// memory, billed in 8-byte words (spec §4.7).
func (m *GasMeter) ChargeWasmMemory(nbytes uint64) error {
	words := (nbytes + 7) / 8
	_, err := m.charge(OpWasmMemory, CostChange{Deduct: WasmMemoryPer8Bytes * words})
	return err
}

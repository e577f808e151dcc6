package core

import "errors"

// TransitionError is the taxonomy of outcomes a transition can surface
// instead of (or alongside) a receipt. Values are sentinels, wrapped at call
// sites with fmt.Errorf("%w: ...", ...) in the teacher's idiom
// (internal/vm/vm.go).
var (
	// Pre-execution: abort before any command runs, no receipt at all.
	ErrWrongNonce                  = errors.New("transition: wrong nonce")
	ErrPreExecutionGasExhausted    = errors.New("transition: pre-execution gas exhausted")
	ErrNotEnoughBalanceForGasLimit = errors.New("transition: not enough balance for gas limit")
	ErrInvalidNextEpochCommand     = errors.New("transition: invalid NextEpoch command")

	// Execution: per-command errors inside the command loop.
	ErrNotEnoughBalanceForTransfer = errors.New("command: not enough balance for transfer")
	ErrExecutionProperGasExhausted = errors.New("command: execution gas exhausted")
	ErrRuntimeError                = errors.New("command: wasm runtime error")
	ErrGasExhaustionError          = errors.New("command: gas exhausted during wasm call")

	// Contract.
	ErrInvalidCBI               = errors.New("command: invalid or incompatible cbi version")
	ErrNoContractCode           = errors.New("command: no contract code at address")
	ErrCannotCompile            = errors.New("command: wasm module failed to compile")
	ErrDisallowedOpcode         = errors.New("command: module contains a disallowed opcode")
	ErrNoExportedContractMethod = errors.New("command: module does not export entrypoint")
	ErrContractAlreadyExists    = errors.New("command: contract already exists at address")
	ErrOtherDeployError         = errors.New("command: deploy failed")

	// Staking.
	ErrPoolAlreadyExists     = errors.New("command: pool already exists")
	ErrPoolNotExists         = errors.New("command: pool does not exist")
	ErrInvalidPoolPolicy     = errors.New("command: invalid pool policy")
	ErrDepositsAlreadyExists = errors.New("command: deposit already exists")
	ErrDepositsNotExists     = errors.New("command: deposit does not exist")
	ErrInvalidDepositPolicy  = errors.New("command: invalid deposit policy")
	ErrInvalidStakeAmount    = errors.New("command: invalid stake amount")
	ErrPoolHasNoStakes       = errors.New("command: pool has no stakes")
)

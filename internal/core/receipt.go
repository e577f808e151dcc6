package core

// CommandReceiptV1 is the fixed-shape per-command receipt used by V1
// transactions. Staking amount fields (withdrawal/stake/unstake) are
// encoded little-endian into ReturnValue rather than carried as separate
// fields (spec §6).
type CommandReceiptV1 struct {
	ExitCode    ExitCode
	GasUsed     uint64
	ReturnValue []byte
	Logs        []Log
}

// ReceiptV1 is the flat per-transaction receipt for V1 transactions: one
// CommandReceiptV1 per executed-or-aborting command; commands after an
// aborting command are simply absent (spec §4.5, §7).
type ReceiptV1 struct {
	Commands []CommandReceiptV1
}

// CommandReceiptV2 is the tagged-union per-command receipt used by V2
// transactions. Unlike V1, a receipt is emitted for every command in the
// transaction, including ones that never ran (ExitNotExecuted, zero gas).
type CommandReceiptV2 struct {
	Kind            CommandKind
	ExitCode        ExitCode
	GasUsed         uint64
	ReturnValue     []byte
	Logs            []Log
	AmountWithdrawn uint64
	AmountStaked    uint64
	AmountUnstaked  uint64
}

// ReceiptV2 is the whole-transaction receipt for V2 transactions.
type ReceiptV2 struct {
	GasUsedTotal    uint64
	ExitCode        ExitCode
	CommandReceipts []CommandReceiptV2
}

// ValidatorSetEntry is a (operator, power) pair as it appears in nvp/vp/pvp.
type ValidatorSetEntry struct {
	Operator Address
	Power    uint64
}

// ValidatorChanges is the optional NextEpoch side-output describing the
// delta between the previous validator set (pools_in_vp) and the new one
// (next_validator_set), per spec §4.6 step 7.
type ValidatorChanges struct {
	NewValidatorSet    []ValidatorSetEntry
	RemoveValidatorSet []Address
}

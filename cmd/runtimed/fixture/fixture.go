// Package fixture decodes the JSON fixture files cmd/runtimed drives
// transition_v1/v2 and view_v1/v2 from (SPEC_FULL.md §10 CLI): a starting
// WorldState snapshot, one transaction, and the block-level params. This
// is deliberately a thin, test-fixture-shaped format, not a production
// wire codec — transaction deserialization is an external collaborator's
// concern per spec.md §1 Non-goals.
package fixture

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/state"
)

// Account is one entry of the fixture's starting account set.
type Account struct {
	Address    string            `json:"address"`
	Balance    uint64            `json:"balance"`
	Nonce      uint64            `json:"nonce"`
	HasCBI     bool              `json:"has_cbi"`
	CBIVersion uint32            `json:"cbi_version"`
	CodeHex    string            `json:"code_hex"`
	Storage    map[string]string `json:"storage"` // hex key -> hex value
}

// Command is the JSON shape of one core.Command; fields outside Kind's
// family are simply left zero-valued, same as core.Command itself.
type Command struct {
	Kind             string `json:"kind"`
	Recipient        string `json:"recipient"`
	Amount           uint64 `json:"amount"`
	Target           string `json:"target"`
	Method           string `json:"method"`
	ArgumentsHex     string `json:"arguments_hex"`
	CodeHex          string `json:"code_hex"`
	CBIVersion       uint32 `json:"cbi_version"`
	CommissionRate   uint8  `json:"commission_rate"`
	Operator         string `json:"operator"`
	DepositBalance   uint64 `json:"deposit_balance"`
	AutoStakeRewards bool   `json:"auto_stake_rewards"`
	MaxAmount        uint64 `json:"max_amount"`
}

// Transaction is the fixture's transaction shape; Hash/Size are always
// recomputed via core.Transaction.ComputeHash rather than trusted from the
// file, since the fixture's whole point is "given these commands, what
// receipt comes out" rather than round-tripping an opaque hash.
type Transaction struct {
	Version           string    `json:"version"` // "v1" or "v2"
	Signer            string    `json:"signer"`
	Nonce             uint64    `json:"nonce"`
	GasLimit          uint64    `json:"gas_limit"`
	MaxBaseFeePerGas  uint64    `json:"max_base_fee_per_gas"`
	PriorityFeePerGas uint64    `json:"priority_fee_per_gas"`
	Commands          []Command `json:"commands"`
}

// BlockParams mirrors core.BlockchainParams in JSON-friendly form.
type BlockParams struct {
	BlockHeight     uint64            `json:"block_height"`
	BlockTimestamp  uint64            `json:"block_timestamp"`
	PrevBlockHash   string            `json:"prev_block_hash"`
	BaseFeePerGas   uint64            `json:"base_fee_per_gas"`
	ProposerAddress string            `json:"proposer_address"`
	TreasuryAddress string            `json:"treasury_address"`
	RandomBytes     string            `json:"random_bytes"`
	BlocksPerEpoch  uint64            `json:"blocks_per_epoch,omitempty"`
	Stats           map[string]uint64 `json:"validator_stats,omitempty"` // hex address -> blocks proposed
}

// File is the whole fixture document: a starting WorldState plus one
// transaction and its block params.
type File struct {
	Accounts    []Account   `json:"accounts"`
	Transaction Transaction `json:"transaction"`
	Block       BlockParams `json:"block"`
}

// Load reads and parses a fixture file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: failed to read %q: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fixture: failed to parse %q: %w", path, err)
	}
	return &f, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func decodeAddress(s string) (core.Address, error) {
	if s == "" {
		return core.Address{}, nil
	}
	return core.AddressFromHex(s)
}

// BuildWorldState materializes f.Accounts into a fresh in-memory WorldState,
// the way a real deployment would load a trie snapshot; cmd/runtimed always
// uses state.MemKVStore so a fixture run never touches disk.
func (f *File) BuildWorldState(version core.TxVersion) (*state.WorldState, error) {
	kv := state.NewMemKVStore()
	ws := state.NewWorldState(kv, version)
	for _, a := range f.Accounts {
		addr, err := decodeAddress(a.Address)
		if err != nil {
			return nil, fmt.Errorf("fixture: invalid account address %q: %w", a.Address, err)
		}
		code, err := decodeHex(a.CodeHex)
		if err != nil {
			return nil, fmt.Errorf("fixture: invalid code_hex for %q: %w", a.Address, err)
		}
		rec := state.AccountRecord{Balance: a.Balance, Nonce: a.Nonce, HasCBI: a.HasCBI, CBIVersion: a.CBIVersion, Code: code}
		if err := ws.PutAccount(addr, rec); err != nil {
			return nil, err
		}
		for keyHex, valHex := range a.Storage {
			key, err := decodeHex(keyHex)
			if err != nil {
				return nil, fmt.Errorf("fixture: invalid storage key %q for %q: %w", keyHex, a.Address, err)
			}
			val, err := decodeHex(valHex)
			if err != nil {
				return nil, fmt.Errorf("fixture: invalid storage value %q for %q: %w", valHex, a.Address, err)
			}
			if err := ws.PutStorage(addr, key, val); err != nil {
				return nil, err
			}
		}
	}
	return ws, nil
}

var commandKindByName = map[string]core.CommandKind{
	"Transfer":           core.CmdTransfer,
	"Call":                core.CmdCall,
	"Deploy":              core.CmdDeploy,
	"CreatePool":          core.CmdCreatePool,
	"SetPoolSettings":     core.CmdSetPoolSettings,
	"DeletePool":          core.CmdDeletePool,
	"CreateDeposit":       core.CmdCreateDeposit,
	"SetDepositSettings":  core.CmdSetDepositSettings,
	"TopUpDeposit":        core.CmdTopUpDeposit,
	"WithdrawDeposit":     core.CmdWithdrawDeposit,
	"StakeDeposit":        core.CmdStakeDeposit,
	"UnstakeDeposit":      core.CmdUnstakeDeposit,
	"NextEpoch":           core.CmdNextEpoch,
}

func (c Command) toCore() (core.Command, error) {
	kind, ok := commandKindByName[c.Kind]
	if !ok {
		return core.Command{}, fmt.Errorf("fixture: unknown command kind %q", c.Kind)
	}
	out := core.Command{
		Kind:             kind,
		Amount:           c.Amount,
		Method:           c.Method,
		CBIVersion:       c.CBIVersion,
		CommissionRate:   c.CommissionRate,
		DepositBalance:   c.DepositBalance,
		AutoStakeRewards: c.AutoStakeRewards,
		MaxAmount:        c.MaxAmount,
	}
	var err error
	if out.Recipient, err = decodeAddress(c.Recipient); err != nil {
		return core.Command{}, fmt.Errorf("fixture: invalid recipient: %w", err)
	}
	if out.Target, err = decodeAddress(c.Target); err != nil {
		return core.Command{}, fmt.Errorf("fixture: invalid target: %w", err)
	}
	if out.Operator, err = decodeAddress(c.Operator); err != nil {
		return core.Command{}, fmt.Errorf("fixture: invalid operator: %w", err)
	}
	if out.Arguments, err = decodeHex(c.ArgumentsHex); err != nil {
		return core.Command{}, fmt.Errorf("fixture: invalid arguments_hex: %w", err)
	}
	if out.Code, err = decodeHex(c.CodeHex); err != nil {
		return core.Command{}, fmt.Errorf("fixture: invalid code_hex: %w", err)
	}
	return out, nil
}

// BuildTransaction converts the fixture's Transaction into a core.Transaction
// with Hash/Size/CommandKinds computed via ComputeHash.
func (f *File) BuildTransaction() (core.Transaction, core.TxVersion, error) {
	version := core.TxV1
	if f.Transaction.Version == "v2" {
		version = core.TxV2
	}
	signer, err := decodeAddress(f.Transaction.Signer)
	if err != nil {
		return core.Transaction{}, version, fmt.Errorf("fixture: invalid signer: %w", err)
	}
	cmds := make([]core.Command, len(f.Transaction.Commands))
	for i, c := range f.Transaction.Commands {
		cmd, err := c.toCore()
		if err != nil {
			return core.Transaction{}, version, err
		}
		cmds[i] = cmd
	}
	tx := core.Transaction{
		Meta: core.TxMeta{
			Version:           version,
			Signer:            signer,
			Nonce:             f.Transaction.Nonce,
			GasLimit:          f.Transaction.GasLimit,
			MaxBaseFeePerGas:  f.Transaction.MaxBaseFeePerGas,
			PriorityFeePerGas: f.Transaction.PriorityFeePerGas,
		},
		Commands: cmds,
	}
	if err := tx.ComputeHash(); err != nil {
		return core.Transaction{}, version, fmt.Errorf("fixture: failed to hash transaction: %w", err)
	}
	return tx, version, nil
}

// BuildBlockchainParams converts f.Block into core.BlockchainParams.
func (f *File) BuildBlockchainParams() (core.BlockchainParams, error) {
	b := f.Block
	prevHashBytes, err := decodeHex(b.PrevBlockHash)
	if err != nil {
		return core.BlockchainParams{}, fmt.Errorf("fixture: invalid prev_block_hash: %w", err)
	}
	randBytes, err := decodeHex(b.RandomBytes)
	if err != nil {
		return core.BlockchainParams{}, fmt.Errorf("fixture: invalid random_bytes: %w", err)
	}
	proposer, err := decodeAddress(b.ProposerAddress)
	if err != nil {
		return core.BlockchainParams{}, fmt.Errorf("fixture: invalid proposer_address: %w", err)
	}
	treasury, err := decodeAddress(b.TreasuryAddress)
	if err != nil {
		return core.BlockchainParams{}, fmt.Errorf("fixture: invalid treasury_address: %w", err)
	}
	bd := core.BlockchainParams{
		BlockHeight:     b.BlockHeight,
		BlockTimestamp:  b.BlockTimestamp,
		BaseFeePerGas:   b.BaseFeePerGas,
		ProposerAddress: proposer,
		TreasuryAddress: treasury,
	}
	copy(bd.PrevBlockHash[:], prevHashBytes)
	copy(bd.RandomBytes[:], randBytes)
	if len(b.Stats) > 0 {
		stats := make(map[core.Address]uint64, len(b.Stats))
		for hexAddr, n := range b.Stats {
			addr, err := decodeAddress(hexAddr)
			if err != nil {
				return core.BlockchainParams{}, fmt.Errorf("fixture: invalid validator_stats address %q: %w", hexAddr, err)
			}
			stats[addr] = n
		}
		bd.ValidatorPerformance = &core.ValidatorPerformance{BlocksPerEpoch: b.BlocksPerEpoch, Stats: stats}
	}
	return bd, nil
}

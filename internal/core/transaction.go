package core

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
)

// TxVersion distinguishes the flat V1 receipt shape from the tagged-union
// V2 shape (spec §3, §6).
type TxVersion uint8

const (
	TxV1 TxVersion = iota
	TxV2
)

// TxMeta carries everything the PhaseOrchestrator needs about a transaction
// that is not itself a Command (spec §3). Signature verification that
// produced Signer/Hash is an external collaborator's concern (spec §1
// Non-goals); TxMeta simply records its result.
type TxMeta struct {
	Version           TxVersion
	Signer            Address
	Nonce             uint64
	GasLimit          uint64
	MaxBaseFeePerGas  uint64
	PriorityFeePerGas uint64
	Hash              [32]byte
	Size              uint64
	CommandKinds      []CommandKind
}

// Transaction bundles TxMeta with its ordered Commands. NextEpoch, when
// present, must be the sole command (enforced by PhaseOrchestrator's
// Pre-Charge, not here — this type only carries data).
type Transaction struct {
	Meta     TxMeta
	Commands []Command
}

var (
	ErrEmptyTransaction      = errors.New("core: transaction has no commands")
	ErrTxDataForHashingFail  = errors.New("core: failed to canonicalize transaction for hashing")
	ErrTxSignatureGeneration = errors.New("core: failed to generate transaction signature")
)

// txDataForJSONHashing is the alphabetized, cross-language-stable shape
// canonically hashed to produce TxMeta.Hash — mirrors the teacher's
// TxDataForJSONHashing in internal/core/transaction.go (dedicated struct
// with sorted field order instead of hashing the Go struct directly, so the
// wire hash does not depend on Go's struct layout).
type txDataForJSONHashing struct {
	CommandKinds      []CommandKind `json:"command_kinds"`
	Commands          []Command     `json:"commands"`
	GasLimit          uint64        `json:"gas_limit"`
	MaxBaseFeePerGas  uint64        `json:"max_base_fee_per_gas"`
	Nonce             uint64        `json:"nonce"`
	PriorityFeePerGas uint64        `json:"priority_fee_per_gas"`
	Signer            string        `json:"signer"`
	Version           TxVersion     `json:"version"`
}

// ComputeHash canonicalizes the transaction to JSON with alphabetized keys
// and hashes it with SHA-256, filling in Meta.Hash and Meta.Size. Intended
// for test fixtures and cmd/runtimed, not for the transition pipeline
// itself (which treats Hash/Size as already-validated inputs).
func (tx *Transaction) ComputeHash() error {
	if len(tx.Commands) == 0 {
		return ErrEmptyTransaction
	}
	kinds := make([]CommandKind, len(tx.Commands))
	for i, c := range tx.Commands {
		kinds[i] = c.Kind
	}
	payload := txDataForJSONHashing{
		CommandKinds:      kinds,
		Commands:          tx.Commands,
		GasLimit:          tx.Meta.GasLimit,
		MaxBaseFeePerGas:  tx.Meta.MaxBaseFeePerGas,
		Nonce:             tx.Meta.Nonce,
		PriorityFeePerGas: tx.Meta.PriorityFeePerGas,
		Signer:            tx.Meta.Signer.String(),
		Version:           tx.Meta.Version,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTxDataForHashingFail, err)
	}
	tx.Meta.Hash = sha256.Sum256(data)
	tx.Meta.Size = uint64(len(data))
	tx.Meta.CommandKinds = kinds
	return nil
}

// Sign produces an ECDSA signature over tx.Meta.Hash, following the
// teacher's stdlib ECDSA signing pattern. Kept for fixture generation; the
// runtime itself never calls this (signature verification is an external
// collaborator per spec §1).
func Sign(privKey *ecdsa.PrivateKey, hash [32]byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, privKey, hash[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTxSignatureGeneration, err)
	}
	size := (privKey.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])
	return sig, nil
}

// VerifySignature checks a two-part r||s signature against the given
// public key and hash. Provided for fixture round-trip tests; production
// verification happens upstream of THE CORE.
func VerifySignature(pubKey *ecdsa.PublicKey, hash [32]byte, sig []byte) bool {
	half := len(sig) / 2
	if half == 0 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:half])
	s := new(big.Int).SetBytes(sig[half:])
	return ecdsa.Verify(pubKey, hash[:], r, s)
}

// SortCommandsCanonically returns a deterministically-ordered copy of cmds
// (by Kind, then Target bytes) for use by test fixtures that want stable
// diffs; the runtime itself always preserves submission order (spec §5)
// and must never call this.
func SortCommandsCanonically(cmds []Command) []Command {
	out := make([]Command, len(cmds))
	copy(out, cmds)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return bytes.Compare(out[i].Target.Bytes(), out[j].Target.Bytes()) < 0
	})
	return out
}

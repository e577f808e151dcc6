package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/crypto"
)

var ErrAccountNotFound = errors.New("state: account not found")

// AccountRecord is the account-trie leaf shape (spec §3):
// {balance, nonce, cbi_version?, code?}.
type AccountRecord struct {
	Balance    uint64
	Nonce      uint64
	HasCBI     bool
	CBIVersion uint32
	Code       []byte
}

const (
	accountPrefix = 'A'
	storagePrefix = 'S'
)

func accountKey(addr core.Address) []byte {
	return append([]byte{accountPrefix}, addr.Bytes()...)
}

// storageKey derives the KVStore key for a per-account storage-trie entry,
// applying the V1/V2 key-path rule (spec §3): V1 uses the raw key, V2
// hashes keys >= 32 bytes with Keccak-256 before descent.
func storageKey(version core.TxVersion, addr core.Address, key []byte) []byte {
	effective := key
	if version == core.TxV2 && len(key) >= 32 {
		h := crypto.Keccak256(key)
		effective = h[:]
	}
	out := make([]byte, 0, 1+core.AddressLength+len(effective))
	out = append(out, storagePrefix)
	out = append(out, addr.Bytes()...)
	out = append(out, effective...)
	return out
}

// WorldState is the external, read-mutate persistent store: an account
// trie keyed by 32-byte addresses and per-account storage tries, both
// flattened onto a single KVStore (spec §3). The trie engine itself —
// node hashing, proofs, on-disk layout — is the external collaborator's
// concern (spec §1 Non-goals); this type only owns the addressing scheme.
type WorldState struct {
	kv      KVStore
	version core.TxVersion
}

func NewWorldState(kv KVStore, version core.TxVersion) *WorldState {
	return &WorldState{kv: kv, version: version}
}

func (ws *WorldState) Version() core.TxVersion { return ws.version }

func (ws *WorldState) GetAccount(addr core.Address) (AccountRecord, bool, error) {
	raw, err := ws.kv.Get(accountKey(addr))
	if errors.Is(err, ErrKeyNotFound) {
		return AccountRecord{}, false, nil
	}
	if err != nil {
		return AccountRecord{}, false, err
	}
	rec, err := decodeAccountRecord(raw)
	if err != nil {
		return AccountRecord{}, false, err
	}
	return rec, true, nil
}

func (ws *WorldState) PutAccount(addr core.Address, rec AccountRecord) error {
	return ws.kv.Put(accountKey(addr), encodeAccountRecord(rec))
}

func (ws *WorldState) GetStorage(addr core.Address, key []byte) ([]byte, bool, error) {
	raw, err := ws.kv.Get(storageKey(ws.version, addr, key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (ws *WorldState) PutStorage(addr core.Address, key, value []byte) error {
	if len(value) == 0 {
		return ws.kv.Delete(storageKey(ws.version, addr, key))
	}
	return ws.kv.Put(storageKey(ws.version, addr, key), value)
}

// encodeAccountRecord/decodeAccountRecord use a small fixed-width binary
// layout rather than JSON/gob: balance(8) || nonce(8) || has_cbi(1) ||
// cbi_version(4) || code_len(4) || code — this is a protocol-internal
// leaf format (the on-wire tx/receipt formats are the external concern
// called out in spec §9's Open Questions), so a compact bespoke codec
// matching the teacher's encodeInt64/decodeInt64 idiom (internal/core/utils.go)
// is preferred over pulling in a generic serialization library here.
func encodeAccountRecord(rec AccountRecord) []byte {
	buf := make([]byte, 8+8+1+4+4+len(rec.Code))
	binary.BigEndian.PutUint64(buf[0:8], rec.Balance)
	binary.BigEndian.PutUint64(buf[8:16], rec.Nonce)
	if rec.HasCBI {
		buf[16] = 1
	}
	binary.BigEndian.PutUint32(buf[17:21], rec.CBIVersion)
	binary.BigEndian.PutUint32(buf[21:25], uint32(len(rec.Code)))
	copy(buf[25:], rec.Code)
	return buf
}

func decodeAccountRecord(buf []byte) (AccountRecord, error) {
	if len(buf) < 25 {
		return AccountRecord{}, fmt.Errorf("state: truncated account record (%d bytes)", len(buf))
	}
	rec := AccountRecord{
		Balance:    binary.BigEndian.Uint64(buf[0:8]),
		Nonce:      binary.BigEndian.Uint64(buf[8:16]),
		HasCBI:     buf[16] == 1,
		CBIVersion: binary.BigEndian.Uint32(buf[17:21]),
	}
	codeLen := binary.BigEndian.Uint32(buf[21:25])
	if uint32(len(buf[25:])) < codeLen {
		return AccountRecord{}, fmt.Errorf("state: truncated account code (want %d, have %d)", codeLen, len(buf[25:]))
	}
	rec.Code = append([]byte(nil), buf[25:25+codeLen]...)
	return rec, nil
}

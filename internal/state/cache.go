package state

import (
	"github.com/empower1/empower1/internal/core"
)

// WorldStateCache is the layered read/write overlay described in spec §3,
// §4.2: four typed sub-caches, each a pair {reads, writes}. On get, writes
// takes precedence, then reads, then the underlying WorldState (caching
// the result into reads). On set, the value goes only into writes. Revert
// clears both maps; commit flushes writes to the WorldState.
//
// Grounded on the teacher's internal/state/contract_state.go pattern of a
// mutex-guarded map-backed store with typed accessors returning defensive
// copies — generalized here into the read-your-writes overlay the spec
// requires instead of a single flat map.
type WorldStateCache struct {
	ws *WorldState

	balanceReads  map[core.Address]uint64
	balanceWrites map[core.Address]uint64

	cbiReads  map[core.Address]*uint32
	cbiWrites map[core.Address]*uint32

	codeReads  map[core.Address][]byte
	codeWrites map[core.Address][]byte

	storageReads  map[string][]byte
	storageWrites map[string][]byte
}

func NewWorldStateCache(ws *WorldState) *WorldStateCache {
	return &WorldStateCache{
		ws:            ws,
		balanceReads:  make(map[core.Address]uint64),
		balanceWrites: make(map[core.Address]uint64),
		cbiReads:      make(map[core.Address]*uint32),
		cbiWrites:     make(map[core.Address]*uint32),
		codeReads:     make(map[core.Address][]byte),
		codeWrites:    make(map[core.Address][]byte),
		storageReads:  make(map[string][]byte),
		storageWrites: make(map[string][]byte),
	}
}

func storageCacheKey(addr core.Address, key []byte) string {
	return string(core.JoinKey(addr, key))
}

// GetBalance implements read-your-writes over the account trie's balance
// field; a nonexistent account reads as balance 0.
func (c *WorldStateCache) GetBalance(addr core.Address) (uint64, error) {
	if v, ok := c.balanceWrites[addr]; ok {
		return v, nil
	}
	if v, ok := c.balanceReads[addr]; ok {
		return v, nil
	}
	acct, found, err := c.ws.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	bal := uint64(0)
	if found {
		bal = acct.Balance
	}
	c.balanceReads[addr] = bal
	return bal, nil
}

func (c *WorldStateCache) SetBalance(addr core.Address, val uint64) {
	c.balanceWrites[addr] = val
}

// PurgeBalance returns the current (possibly pending) balance and removes
// it from the write set, so Charge can finalize it directly through a
// bypass write without the normal commit path double-applying it
// (spec §4.2).
func (c *WorldStateCache) PurgeBalance(addr core.Address) (uint64, error) {
	bal, err := c.GetBalance(addr)
	if err != nil {
		return 0, err
	}
	delete(c.balanceWrites, addr)
	return bal, nil
}

// CBIVersion returns (version, present).
func (c *WorldStateCache) CBIVersion(addr core.Address) (uint32, bool, error) {
	if v, ok := c.cbiWrites[addr]; ok {
		if v == nil {
			return 0, false, nil
		}
		return *v, true, nil
	}
	if v, ok := c.cbiReads[addr]; ok {
		if v == nil {
			return 0, false, nil
		}
		return *v, true, nil
	}
	acct, found, err := c.ws.GetAccount(addr)
	if err != nil {
		return 0, false, err
	}
	if !found || !acct.HasCBI {
		c.cbiReads[addr] = nil
		return 0, false, nil
	}
	v := acct.CBIVersion
	c.cbiReads[addr] = &v
	return v, true, nil
}

func (c *WorldStateCache) SetCBIVersion(addr core.Address, version uint32) {
	v := version
	c.cbiWrites[addr] = &v
}

func (c *WorldStateCache) ContractCode(addr core.Address) ([]byte, error) {
	if v, ok := c.codeWrites[addr]; ok {
		return v, nil
	}
	if v, ok := c.codeReads[addr]; ok {
		return v, nil
	}
	acct, found, err := c.ws.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	var code []byte
	if found {
		code = acct.Code
	}
	c.codeReads[addr] = code
	return code, nil
}

func (c *WorldStateCache) SetContractCode(addr core.Address, code []byte) {
	c.codeWrites[addr] = code
}

func (c *WorldStateCache) StorageData(addr core.Address, key []byte) ([]byte, error) {
	ck := storageCacheKey(addr, key)
	if v, ok := c.storageWrites[ck]; ok {
		return v, nil
	}
	if v, ok := c.storageReads[ck]; ok {
		return v, nil
	}
	v, _, err := c.ws.GetStorage(addr, key)
	if err != nil {
		return nil, err
	}
	c.storageReads[ck] = v
	return v, nil
}

// ContainsStorageData distinguishes "present with empty value" from
// "never set / deleted" — only this accessor interprets a zero-length
// write as a deletion (spec §4.2).
func (c *WorldStateCache) ContainsStorageData(addr core.Address, key []byte) (bool, error) {
	ck := storageCacheKey(addr, key)
	if v, ok := c.storageWrites[ck]; ok {
		return len(v) > 0, nil
	}
	v, err := c.StorageData(addr, key)
	if err != nil {
		return false, err
	}
	return len(v) > 0, nil
}

func (c *WorldStateCache) SetStorageData(addr core.Address, key, value []byte) {
	ck := storageCacheKey(addr, key)
	// Cache the prior value into reads first so a later get of the same
	// key within this transaction still resolves through writes while the
	// gas formula (computed by the caller before this call) can still see
	// the "old" value exactly once.
	if _, ok := c.storageReads[ck]; !ok {
		if v, _, err := c.ws.GetStorage(addr, key); err == nil {
			c.storageReads[ck] = v
		}
	}
	c.storageWrites[ck] = value
}

// Revert discards every pending write made since the cache was created
// (spec §4.5: "revert_changes() discards all pending writes made during
// the tx"). The read maps are cleared as well, so the next get of any key
// reads through to the underlying WorldState.
func (c *WorldStateCache) Revert() {
	c.balanceReads = make(map[core.Address]uint64)
	c.cbiReads = make(map[core.Address]*uint32)
	c.codeReads = make(map[core.Address][]byte)
	c.storageReads = make(map[string][]byte)
	c.balanceWrites = make(map[core.Address]uint64)
	c.cbiWrites = make(map[core.Address]*uint32)
	c.codeWrites = make(map[core.Address][]byte)
	c.storageWrites = make(map[string][]byte)
}

// CommitToWorldState consumes the cache and flushes writes to the
// underlying WorldState (spec §4.2). Nonce is intentionally not touched
// here — Charge writes it directly through a bypass API.
func (c *WorldStateCache) CommitToWorldState() (*WorldState, error) {
	for addr, bal := range c.balanceWrites {
		acct, _, err := c.ws.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		acct.Balance = bal
		if err := c.ws.PutAccount(addr, acct); err != nil {
			return nil, err
		}
	}
	for addr, v := range c.cbiWrites {
		acct, _, err := c.ws.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		if v == nil {
			acct.HasCBI = false
			acct.CBIVersion = 0
		} else {
			acct.HasCBI = true
			acct.CBIVersion = *v
		}
		if err := c.ws.PutAccount(addr, acct); err != nil {
			return nil, err
		}
	}
	for addr, code := range c.codeWrites {
		acct, _, err := c.ws.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		acct.Code = code
		if err := c.ws.PutAccount(addr, acct); err != nil {
			return nil, err
		}
	}
	for ck, val := range c.storageWrites {
		addr, key := splitStorageCacheKey(ck)
		if err := c.ws.PutStorage(addr, key, val); err != nil {
			return nil, err
		}
	}
	return c.ws, nil
}

// BypassSetBalance and BypassSetNonce write directly to the underlying
// WorldState, skipping the cache entirely — used by PreCharge (signer
// gas prepayment, not revertable by command aborts) and Charge (nonce
// increment, final balance settlement) per spec §4.5. BypassSetBalance
// also drops any cached read of addr's balance, so a later GetBalance
// reads the bypass value through from the WorldState.
func (c *WorldStateCache) BypassSetBalance(addr core.Address, val uint64) error {
	acct, _, err := c.ws.GetAccount(addr)
	if err != nil {
		return err
	}
	acct.Balance = val
	if err := c.ws.PutAccount(addr, acct); err != nil {
		return err
	}
	delete(c.balanceReads, addr)
	return nil
}

func (c *WorldStateCache) BypassGetNonce(addr core.Address) (uint64, error) {
	acct, _, err := c.ws.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acct.Nonce, nil
}

func (c *WorldStateCache) BypassSetNonce(addr core.Address, nonce uint64) error {
	acct, _, err := c.ws.GetAccount(addr)
	if err != nil {
		return err
	}
	acct.Nonce = nonce
	return c.ws.PutAccount(addr, acct)
}

// splitStorageCacheKey reverses storageCacheKey's core.JoinKey encoding.
func splitStorageCacheKey(ck string) (core.Address, []byte) {
	b := []byte(ck)
	var addr core.Address
	copy(addr[:], b[:core.AddressLength])
	// b[core.AddressLength] is the joining 0x00 byte inserted by JoinKey.
	return addr, b[core.AddressLength+1:]
}

// Touched reports every key read or written so far this transaction — the
// SUPPLEMENT read/write-set export (original_source's read_write_set.rs,
// compressed out of spec.md's distillation; see SPEC_FULL.md §13). Useful
// to a future parallel-execution scheduler, never consumed by THE CORE
// itself.
func (c *WorldStateCache) Touched() (reads, writes []string) {
	seen := func(m map[string][]byte) []string {
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out
	}
	for addr := range c.balanceReads {
		reads = append(reads, "balance:"+addr.String())
	}
	for addr := range c.balanceWrites {
		writes = append(writes, "balance:"+addr.String())
	}
	reads = append(reads, prefixAll(seen(c.storageReads), "storage:")...)
	writes = append(writes, prefixAll(seen(c.storageWrites), "storage:")...)
	return reads, writes
}

func prefixAll(in []string, prefix string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = prefix + s
	}
	return out
}

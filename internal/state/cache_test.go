package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/empower1/internal/core"
)

func newTestCache() *WorldStateCache {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	return NewWorldStateCache(ws)
}

func TestWorldStateCacheGetBalanceDefaultsToZero(t *testing.T) {
	c := newTestCache()
	bal, err := c.GetBalance(testAddress(1))
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestWorldStateCacheReadYourWrites(t *testing.T) {
	c := newTestCache()
	addr := testAddress(1)
	c.SetBalance(addr, 100)

	bal, err := c.GetBalance(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)
}

func TestWorldStateCacheRevertDiscardsWrites(t *testing.T) {
	c := newTestCache()
	addr := testAddress(1)
	c.SetBalance(addr, 100)
	c.SetStorageData(addr, []byte("k"), []byte("v"))

	c.Revert()

	bal, err := c.GetBalance(addr)
	require.NoError(t, err)
	assert.Zero(t, bal, "reverted balance write must not be visible")

	present, err := c.ContainsStorageData(addr, []byte("k"))
	require.NoError(t, err)
	assert.False(t, present, "reverted storage write must not be visible")
}

func TestWorldStateCacheCommitFlushesToWorldState(t *testing.T) {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	c := NewWorldStateCache(ws)
	addr := testAddress(1)

	c.SetBalance(addr, 55)
	c.SetStorageData(addr, []byte("k"), []byte("v"))

	committed, err := c.CommitToWorldState()
	require.NoError(t, err)
	require.Same(t, ws, committed)

	acct, found, err := ws.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(55), acct.Balance)

	val, found, err := ws.GetStorage(addr, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)
}

func TestWorldStateCacheContainsStorageDataDistinguishesEmptyFromAbsent(t *testing.T) {
	c := newTestCache()
	addr := testAddress(1)

	present, err := c.ContainsStorageData(addr, []byte("k"))
	require.NoError(t, err)
	assert.False(t, present)

	c.SetStorageData(addr, []byte("k"), []byte{})
	present, err = c.ContainsStorageData(addr, []byte("k"))
	require.NoError(t, err)
	assert.False(t, present, "zero-length write is a deletion, not presence")

	c.SetStorageData(addr, []byte("k"), []byte{0x00})
	present, err = c.ContainsStorageData(addr, []byte("k"))
	require.NoError(t, err)
	assert.True(t, present)
}

func TestWorldStateCachePurgeBalanceRemovesFromWriteSet(t *testing.T) {
	c := newTestCache()
	addr := testAddress(1)
	c.SetBalance(addr, 10)

	bal, err := c.PurgeBalance(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)

	c.Revert()
	bal, err = c.GetBalance(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal, "the purged write is gone, so the balance reads through to the world state, which never held it")
}

func TestWorldStateCacheBypassSetBalanceSkipsCache(t *testing.T) {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	c := NewWorldStateCache(ws)
	addr := testAddress(1)

	require.NoError(t, c.BypassSetBalance(addr, 200))

	acct, found, err := ws.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(200), acct.Balance)

	bal, err := c.GetBalance(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bal, "cache reads through to a bypass write")
}

func TestWorldStateCacheBypassNonce(t *testing.T) {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	c := NewWorldStateCache(ws)
	addr := testAddress(1)

	nonce, err := c.BypassGetNonce(addr)
	require.NoError(t, err)
	assert.Zero(t, nonce)

	require.NoError(t, c.BypassSetNonce(addr, 5))
	nonce, err = c.BypassGetNonce(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), nonce)
}

func TestWorldStateCacheTouchedReportsReadsAndWrites(t *testing.T) {
	c := newTestCache()
	addr := testAddress(1)

	_, err := c.GetBalance(addr)
	require.NoError(t, err)
	c.SetStorageData(addr, []byte("k"), []byte("v"))

	reads, writes := c.Touched()
	assert.Contains(t, reads, "balance:"+addr.String())
	assert.NotEmpty(t, writes)
}

func TestWorldStateCacheCBIVersionAbsentByDefault(t *testing.T) {
	c := newTestCache()
	addr := testAddress(1)

	_, ok, err := c.CBIVersion(addr)
	require.NoError(t, err)
	assert.False(t, ok)

	c.SetCBIVersion(addr, 9)
	v, ok, err := c.CBIVersion(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(9), v)
}

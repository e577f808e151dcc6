package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/empower1/internal/core"
)

func testAddress(b byte) core.Address {
	var a core.Address
	a[core.AddressLength-1] = b
	return a
}

func TestWorldStateAccountRoundTrip(t *testing.T) {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	addr := testAddress(1)

	_, found, err := ws.GetAccount(addr)
	require.NoError(t, err)
	assert.False(t, found)

	rec := AccountRecord{Balance: 42, Nonce: 7, HasCBI: true, CBIVersion: 3, Code: []byte{0xde, 0xad, 0xbe, 0xef}}
	require.NoError(t, ws.PutAccount(addr, rec))

	got, found, err := ws.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)
}

func TestWorldStateAccountWithEmptyCode(t *testing.T) {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	addr := testAddress(2)

	rec := AccountRecord{Balance: 100, Nonce: 0}
	require.NoError(t, ws.PutAccount(addr, rec))

	got, found, err := ws.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.Balance, got.Balance)
	assert.False(t, got.HasCBI)
	assert.Empty(t, got.Code)
}

func TestWorldStateStorageRoundTrip(t *testing.T) {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	addr := testAddress(3)
	key := []byte("slot")

	_, found, err := ws.GetStorage(addr, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ws.PutStorage(addr, key, []byte("value")))
	val, found, err := ws.GetStorage(addr, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value"), val)
}

func TestWorldStateStorageDeleteOnEmptyValue(t *testing.T) {
	ws := NewWorldState(NewMemKVStore(), core.TxV1)
	addr := testAddress(4)
	key := []byte("slot")

	require.NoError(t, ws.PutStorage(addr, key, []byte("value")))
	require.NoError(t, ws.PutStorage(addr, key, nil))

	_, found, err := ws.GetStorage(addr, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWorldStateV2HashesLongStorageKeys(t *testing.T) {
	addr := testAddress(5)
	longKey := make([]byte, 40)
	for i := range longKey {
		longKey[i] = byte(i)
	}

	v1 := storageKey(core.TxV1, addr, longKey)
	v2 := storageKey(core.TxV2, addr, longKey)
	assert.NotEqual(t, v1, v2, "V2 must hash keys >= 32 bytes before descent")

	shortKey := []byte("short")
	assert.Equal(t, storageKey(core.TxV1, addr, shortKey), storageKey(core.TxV2, addr, shortKey),
		"V1 and V2 must agree on keys shorter than 32 bytes")
}

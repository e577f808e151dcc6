package core

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashDeterministic(t *testing.T) {
	signer, err := AddressFromBytes(make([]byte, AddressLength))
	require.NoError(t, err)

	mk := func() *Transaction {
		return &Transaction{
			Meta: TxMeta{
				Version:           TxV1,
				Signer:            signer,
				Nonce:             3,
				GasLimit:          10_000,
				MaxBaseFeePerGas:  1,
				PriorityFeePerGas: 0,
			},
			Commands: []Command{{Kind: CmdTransfer, Recipient: signer, Amount: 100}},
		}
	}

	tx1, tx2 := mk(), mk()
	require.NoError(t, tx1.ComputeHash())
	require.NoError(t, tx2.ComputeHash())

	assert.Equal(t, tx1.Meta.Hash, tx2.Meta.Hash, "identical transactions must hash identically")
	assert.Equal(t, tx1.Meta.Size, tx2.Meta.Size)
	assert.Equal(t, []CommandKind{CmdTransfer}, tx1.Meta.CommandKinds)
}

func TestComputeHashRejectsEmptyTransaction(t *testing.T) {
	tx := &Transaction{}
	err := tx.ComputeHash()
	assert.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestSignAndVerifySignatureRoundTrip(t *testing.T) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	hash := [32]byte{1, 2, 3}
	sig, err := Sign(privKey, hash)
	require.NoError(t, err)

	assert.True(t, VerifySignature(&privKey.PublicKey, hash, sig))

	otherHash := [32]byte{9, 9, 9}
	assert.False(t, VerifySignature(&privKey.PublicKey, otherHash, sig))
}

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, uint64(1<<64-1), SaturatingAdd(^uint64(0), 5))
	assert.Equal(t, uint64(0), SaturatingSub(3, 10))
	assert.Equal(t, uint64(7), SaturatingSub(10, 3))
}

package gas

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/empower1/empower1/internal/core"
)

func TestCostChangeNetSaturatesAtZero(t *testing.T) {
	cases := []struct {
		name   string
		change CostChange
		want   uint64
	}{
		{"deduct only", CostChange{Deduct: 10}, 10},
		{"reward below deduct", CostChange{Deduct: 10, Reward: 4}, 6},
		{"reward equals deduct", CostChange{Deduct: 10, Reward: 10}, 0},
		{"reward exceeds deduct", CostChange{Deduct: 10, Reward: 20}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.change.Net())
		})
	}
}

func TestCostChangeAddSaturates(t *testing.T) {
	max := ^uint64(0)
	a := CostChange{Deduct: max, Reward: 1}
	b := CostChange{Deduct: 5, Reward: 1}
	sum := a.Add(b)
	assert.Equal(t, max, sum.Deduct)
	assert.Equal(t, uint64(2), sum.Reward)
}

func TestSetCostRefundsHalfOldValueWhenOverwriting(t *testing.T) {
	fresh := SetCost(32, 0, 10)
	assert.Zero(t, fresh.Reward)

	overwrite := SetCost(32, 10, 10)
	assert.Equal(t, (MPTWritePerByte*10)/2, overwrite.Reward)
	assert.Less(t, overwrite.Net(), fresh.Net()+overwrite.Reward+1)
}

func TestGetCostTraverseAndRead(t *testing.T) {
	assert.Equal(t, MPTTraversePerByte*10, GetCostTraverse(10))
	assert.Equal(t, MPTReadPerByte*10, GetCostRead(10))
}

func TestDiscountCodeReadHalves(t *testing.T) {
	assert.Equal(t, uint64(50), DiscountCodeRead(100))
	assert.Equal(t, uint64(50), DiscountCodeRead(101))
}

func TestStorageTrieTraversedKeyLenV1AlwaysRaw(t *testing.T) {
	length, keccakCost := StorageTrieTraversedKeyLen(core.TxV1, make([]byte, 40))
	assert.Zero(t, keccakCost)
	assert.Equal(t, AccountTrieKeyLength+32+40, length)
}

func TestStorageTrieTraversedKeyLenV2HashesLongKeys(t *testing.T) {
	length, keccakCost := StorageTrieTraversedKeyLen(core.TxV2, make([]byte, 40))
	assert.Equal(t, AccountTrieKeyLength+32, length)
	assert.Equal(t, CryptoKeccak256PerByte*40, keccakCost)

	length, keccakCost = StorageTrieTraversedKeyLen(core.TxV2, make([]byte, 10))
	assert.Zero(t, keccakCost)
	assert.Equal(t, AccountTrieKeyLength+10, length)
}

func TestTxInclusionCostV1ScalesWithCommandCount(t *testing.T) {
	one := TxInclusionCost(100, []core.CommandKind{core.CmdTransfer}, core.TxV1)
	two := TxInclusionCost(100, []core.CommandKind{core.CmdTransfer, core.CmdTransfer}, core.TxV1)
	assert.Greater(t, two, one)
}

func TestTxInclusionCostV2VariesByCommandKind(t *testing.T) {
	transfer := TxInclusionCost(100, []core.CommandKind{core.CmdTransfer}, core.TxV2)
	deploy := TxInclusionCost(100, []core.CommandKind{core.CmdDeploy}, core.TxV2)
	assert.NotEqual(t, transfer, deploy, "Deploy's larger minimum receipt size must cost more to include")
}

func TestReturnValueWriteCostScalesWithLength(t *testing.T) {
	assert.Zero(t, ReturnValueWriteCost(0))
	assert.Equal(t, BlockchainWritePerByte*16, ReturnValueWriteCost(16))
}

func TestLogWriteCostCoversTopicAndValue(t *testing.T) {
	assert.Equal(t, BlockchainWritePerByte*(4+8), LogWriteCost(4, 8))
}

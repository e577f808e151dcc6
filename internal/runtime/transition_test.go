package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/state"
)

func testRuntimeAddr(b byte) core.Address {
	var a core.Address
	a[core.AddressLength-1] = b
	return a
}

func TestTransitionV1TransferSuccess(t *testing.T) {
	ws := state.NewWorldState(state.NewMemKVStore(), core.TxV1)
	signer := testRuntimeAddr(1)
	recipient := testRuntimeAddr(2)
	require.NoError(t, ws.PutAccount(signer, state.AccountRecord{Balance: 200_000}))

	tx := core.Transaction{
		Meta: core.TxMeta{
			Version: core.TxV1, Signer: signer, Nonce: 0, GasLimit: 100_000,
			CommandKinds: []core.CommandKind{core.CmdTransfer},
		},
		Commands: []core.Command{{Kind: core.CmdTransfer, Recipient: recipient, Amount: 1_000}},
	}

	result := TransitionV1(ws, tx, core.BlockchainParams{BaseFeePerGas: 1}, nil)
	require.NoError(t, result.Error)
	require.NotNil(t, result.Receipt)
	require.Len(t, result.Receipt.Commands, 1)
	assert.Equal(t, core.ExitSuccess, result.Receipt.Commands[0].ExitCode)

	recipientAcct, found, err := result.NewState.GetAccount(recipient)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(1_000), recipientAcct.Balance)
}

func TestTransitionV1PreExecErrProducesNoReceipt(t *testing.T) {
	ws := state.NewWorldState(state.NewMemKVStore(), core.TxV1)
	signer := testRuntimeAddr(1)
	recipient := testRuntimeAddr(2)

	tx := core.Transaction{
		Meta: core.TxMeta{
			Version: core.TxV1, Signer: signer, Nonce: 7, GasLimit: 100_000,
			CommandKinds: []core.CommandKind{core.CmdTransfer},
		},
		Commands: []core.Command{{Kind: core.CmdTransfer, Recipient: recipient, Amount: 1}},
	}

	result := TransitionV1(ws, tx, core.BlockchainParams{}, nil)
	assert.ErrorIs(t, result.Error, core.ErrWrongNonce)
	assert.Nil(t, result.Receipt)
	assert.Same(t, ws, result.NewState, "a pre-execution error must leave the input WorldState untouched")
}

func TestTransitionV2AggregatesGasAndExitCode(t *testing.T) {
	ws := state.NewWorldState(state.NewMemKVStore(), core.TxV2)
	signer := testRuntimeAddr(1)
	recipient := testRuntimeAddr(2)
	require.NoError(t, ws.PutAccount(signer, state.AccountRecord{Balance: 200_000}))

	tx := core.Transaction{
		Meta: core.TxMeta{
			Version: core.TxV2, Signer: signer, Nonce: 0, GasLimit: 100_000,
			CommandKinds: []core.CommandKind{core.CmdTransfer},
		},
		Commands: []core.Command{{Kind: core.CmdTransfer, Recipient: recipient, Amount: 1_000}},
	}

	result := TransitionV2(ws, tx, core.BlockchainParams{BaseFeePerGas: 1}, nil)
	require.NoError(t, result.Error)
	require.NotNil(t, result.Receipt)
	assert.Equal(t, core.ExitSuccess, result.Receipt.ExitCode)
	assert.Greater(t, result.Receipt.GasUsedTotal, uint64(0))
	require.Len(t, result.Receipt.CommandReceipts, 1)
	assert.Equal(t, core.CmdTransfer, result.Receipt.CommandReceipts[0].Kind)
}

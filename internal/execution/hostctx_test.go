package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/gas"
)

// TestHostAdapterReturnValueGasExhaustionPreservesLogs covers spec §8
// scenario 5 and §4.3's Special path at the level where the charge
// actually happens: a log written before the return-value write succeeds
// and is preserved even though the return-value write itself then runs
// the command out of gas, with the return value absent.
func TestHostAdapterReturnValueGasExhaustionPreservesLogs(t *testing.T) {
	ws := newTestWorldState(t)
	logCost := gas.LogWriteCost(4, 4)
	// Leave just enough gas for the log but not for a 64-byte return value.
	es := NewExecutionState(ws, core.TxMeta{Version: core.TxV1, GasLimit: logCost + 4}, core.BlockchainParams{}, nil)
	frame := &CallFrame{Current: testAddr(1)}
	adapter := &hostAdapter{es: es, frame: frame}

	require.NoError(t, adapter.Log([]byte("top1"), []byte("val1")))
	require.Len(t, frame.Logs, 1)

	err := adapter.SetReturnValue(make([]byte, 64))
	assert.ErrorIs(t, err, gas.ErrGasLimitExceeded)
	assert.Empty(t, frame.ReturnValue, "a gas-exhausted return-value write must leave the field absent")
	assert.Len(t, frame.Logs, 1, "logs written before the failing write are preserved")
}

// TestHostAdapterSetReturnValueChargesGas checks that SetReturnValue is
// not free: writing a non-trivial payload visibly reduces Remaining() and
// stores the value in the frame.
func TestHostAdapterSetReturnValueChargesGas(t *testing.T) {
	ws := newTestWorldState(t)
	es := NewExecutionState(ws, core.TxMeta{Version: core.TxV1, GasLimit: 1_000_000}, core.BlockchainParams{}, nil)
	frame := &CallFrame{Current: testAddr(1)}
	adapter := &hostAdapter{es: es, frame: frame}

	before := es.Ctx.Gas.Remaining()
	require.NoError(t, adapter.SetReturnValue([]byte("hello")))
	after := es.Ctx.Gas.Remaining()
	assert.Less(t, after, before, "writing a return value must cost gas")
	assert.Equal(t, []byte("hello"), frame.ReturnValue)
}

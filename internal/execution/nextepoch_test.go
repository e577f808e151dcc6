package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/state"
)

// TestNextEpochTwoCycles covers spec §8 scenario 6: a single pool with an
// operator stake and a delegator stake, auto_stake_rewards off for both.
// The first NextEpoch transition only promotes nvp into vp (vp starts
// empty, so nothing is rewarded yet); the second distributes a reward
// against that now-populated vp. After both, pvp and vp must agree and
// match the pool's unchanged power, nvp must be untouched (no auto-stake
// to feed it), and both deposits must be credited with their computed
// share of the reward.
func TestNextEpochTwoCycles(t *testing.T) {
	ws := state.NewWorldState(state.NewMemKVStore(), core.TxV1)
	operator := testAddr(10)
	delegator := testAddr(11)

	cache := state.NewWorldStateCache(ws)
	net := state.NewNetworkAccount(cache)
	net.SetPool(state.Pool{Operator: operator, Power: 100_000, CommissionRate: 10, Enabled: true})
	net.SetDeposit(state.Deposit{Operator: operator, Owner: operator, Balance: 80_000, StakedPower: 80_000})
	net.SetDeposit(state.Deposit{Operator: operator, Owner: delegator, Balance: 20_000, StakedPower: 20_000})
	_, err := net.IncreaseStakePower(operator, 100_000)
	require.NoError(t, err)
	newWS, err := cache.CommitToWorldState()
	require.NoError(t, err)
	ws = newWS

	perf := &core.ValidatorPerformance{
		BlocksPerEpoch: 100,
		Stats:          map[core.Address]uint64{operator: 100},
	}
	bd := core.BlockchainParams{ValidatorPerformance: perf}
	tx := core.Transaction{
		Meta: core.TxMeta{Version: core.TxV1, GasLimit: 1_000_000, CommandKinds: []core.CommandKind{core.CmdNextEpoch}},
		Commands: []core.Command{{Kind: core.CmdNextEpoch}},
	}

	outcome, err := Execute(ws, tx, bd, nil)
	require.NoError(t, err)
	require.Nil(t, outcome.PreExecErr)
	require.Equal(t, core.ExitSuccess, outcome.Commands[0].ExitCode)
	ws = outcome.NewState

	tx.Meta.Nonce = 1
	outcome, err = Execute(ws, tx, bd, nil)
	require.NoError(t, err)
	require.Nil(t, outcome.PreExecErr)
	require.Equal(t, core.ExitSuccess, outcome.Commands[0].ExitCode)
	ws = outcome.NewState

	cache = state.NewWorldStateCache(ws)
	net = state.NewNetworkAccount(cache)

	vp, err := net.VP()
	require.NoError(t, err)
	pvp, err := net.PVP()
	require.NoError(t, err)
	nvp, err := net.NVP()
	require.NoError(t, err)

	require.Len(t, vp, 1)
	require.Len(t, pvp, 1)
	require.Len(t, nvp, 1)
	assert.Equal(t, operator, vp[0].Operator)
	assert.Equal(t, uint64(100_000), vp[0].Power)
	assert.Equal(t, vp, pvp, "after two cycles pvp and vp must agree")
	assert.Equal(t, uint64(100_000), nvp[0].Power, "no auto-stake means nvp is untouched by reward distribution")

	opDep, exists, err := net.GetDeposit(operator, operator)
	require.NoError(t, err)
	require.True(t, exists)
	delDep, exists, err := net.GetDeposit(operator, delegator)
	require.NoError(t, err)
	require.True(t, exists)

	assert.Greater(t, opDep.Balance, uint64(80_000), "operator must be credited its share plus commission")
	assert.Greater(t, delDep.Balance, uint64(20_000), "delegator must be credited its share of the reward")
	assert.Equal(t, uint64(80_000), opDep.StakedPower, "auto_stake_rewards is off: staked power must not grow")
	assert.Equal(t, uint64(20_000), delDep.StakedPower)
}

package execution

import (
	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/state"
)

// Staking commands mutate NetworkAccount state only (spec §4.4); every
// read/write still flows through es.Ctx.Gas so storage access is metered
// exactly like a contract's. es.Ctx.Net wraps the same cache, so Net's
// reads/writes and Gas's reads/writes observe each other's pending writes
// within one transaction (read-your-writes, spec §4.2) even though Net's
// own accessors bypass per-access metering — the metering is charged
// here, once per logical field touched, rather than inside NetworkAccount
// itself.

func chargeStorageRead(es *ExecutionState, key []byte) error {
	_, err := es.Ctx.Gas.StorageData(core.NetworkAddress, key)
	return err
}

func chargeStorageWrite(es *ExecutionState, key, val []byte) error {
	return es.Ctx.Gas.SetStorageData(core.NetworkAddress, key, val)
}

func executeCreatePool(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if cmd.CommissionRate > 100 {
		return core.CommandOutput{}, core.ErrInvalidPoolPolicy
	}
	if err := chargeStorageRead(es, poolGasKey(signer)); err != nil {
		return core.CommandOutput{}, err
	}
	if _, exists, err := es.Ctx.Net.GetPool(signer); err != nil {
		return core.CommandOutput{}, err
	} else if exists {
		return core.CommandOutput{}, core.ErrPoolAlreadyExists
	}
	pool := state.Pool{Operator: signer, Power: 0, CommissionRate: cmd.CommissionRate, Enabled: true}
	if err := chargeStorageWrite(es, poolGasKey(signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.SetPool(pool)
	if _, err := es.Ctx.Net.IncreaseStakePower(signer, 0); err != nil {
		return core.CommandOutput{}, err
	}
	return core.CommandOutput{}, nil
}

func executeSetPoolSettings(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if cmd.CommissionRate > 100 {
		return core.CommandOutput{}, core.ErrInvalidPoolPolicy
	}
	if err := chargeStorageRead(es, poolGasKey(signer)); err != nil {
		return core.CommandOutput{}, err
	}
	pool, exists, err := es.Ctx.Net.GetPool(signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !exists {
		return core.CommandOutput{}, core.ErrPoolNotExists
	}
	if pool.CommissionRate == cmd.CommissionRate {
		return core.CommandOutput{}, core.ErrInvalidPoolPolicy
	}
	pool.CommissionRate = cmd.CommissionRate
	if err := chargeStorageWrite(es, poolGasKey(signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.SetPool(pool)
	return core.CommandOutput{}, nil
}

func executeDeletePool(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := chargeStorageRead(es, poolGasKey(signer)); err != nil {
		return core.CommandOutput{}, err
	}
	_, exists, err := es.Ctx.Net.GetPool(signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !exists {
		return core.CommandOutput{}, core.ErrPoolNotExists
	}
	if err := chargeStorageWrite(es, poolGasKey(signer), nil); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.DeletePool(signer)
	if err := es.Ctx.Net.ReduceStakePower(signer, ^uint64(0)); err != nil {
		return core.CommandOutput{}, err
	}
	return core.CommandOutput{}, nil
}

func executeCreateDeposit(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := chargeStorageRead(es, poolGasKey(cmd.Operator)); err != nil {
		return core.CommandOutput{}, err
	}
	if _, exists, err := es.Ctx.Net.GetPool(cmd.Operator); err != nil {
		return core.CommandOutput{}, err
	} else if !exists {
		return core.CommandOutput{}, core.ErrPoolNotExists
	}
	if err := chargeStorageRead(es, depositGasKey(cmd.Operator, signer)); err != nil {
		return core.CommandOutput{}, err
	}
	if _, exists, err := es.Ctx.Net.GetDeposit(cmd.Operator, signer); err != nil {
		return core.CommandOutput{}, err
	} else if exists {
		return core.CommandOutput{}, core.ErrDepositsAlreadyExists
	}
	bal, err := es.Ctx.Gas.GetBalance(signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if bal < cmd.DepositBalance {
		return core.CommandOutput{}, core.ErrNotEnoughBalanceForTransfer
	}
	if err := es.Ctx.Gas.SetBalance(signer, bal-cmd.DepositBalance); err != nil {
		return core.CommandOutput{}, err
	}
	dep := state.Deposit{Operator: cmd.Operator, Owner: signer, Balance: cmd.DepositBalance, AutoStakeRewards: cmd.AutoStakeRewards}
	if err := chargeStorageWrite(es, depositGasKey(cmd.Operator, signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.SetDeposit(dep)
	return core.CommandOutput{}, nil
}

func executeSetDepositSettings(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := chargeStorageRead(es, depositGasKey(cmd.Operator, signer)); err != nil {
		return core.CommandOutput{}, err
	}
	dep, exists, err := es.Ctx.Net.GetDeposit(cmd.Operator, signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !exists {
		return core.CommandOutput{}, core.ErrDepositsNotExists
	}
	if dep.AutoStakeRewards == cmd.AutoStakeRewards {
		return core.CommandOutput{}, core.ErrInvalidDepositPolicy
	}
	dep.AutoStakeRewards = cmd.AutoStakeRewards
	if err := chargeStorageWrite(es, depositGasKey(cmd.Operator, signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.SetDeposit(dep)
	return core.CommandOutput{}, nil
}

func executeTopUpDeposit(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := chargeStorageRead(es, depositGasKey(cmd.Operator, signer)); err != nil {
		return core.CommandOutput{}, err
	}
	dep, exists, err := es.Ctx.Net.GetDeposit(cmd.Operator, signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !exists {
		return core.CommandOutput{}, core.ErrDepositsNotExists
	}
	bal, err := es.Ctx.Gas.GetBalance(signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if bal < cmd.Amount {
		return core.CommandOutput{}, core.ErrNotEnoughBalanceForTransfer
	}
	if err := es.Ctx.Gas.SetBalance(signer, bal-cmd.Amount); err != nil {
		return core.CommandOutput{}, err
	}
	dep.Balance = core.SaturatingAdd(dep.Balance, cmd.Amount)
	if err := chargeStorageWrite(es, depositGasKey(cmd.Operator, signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.SetDeposit(dep)
	return core.CommandOutput{}, nil
}

// lockedStakePower returns the max of this (op, owner)'s power recorded in
// pvp/vp (spec §4.4 WithdrawDeposit: "locked = max(stake_power_in_pvp,
// stake_power_in_vp)"), read off the Deposit's own PVPStakedPower/
// VPStakedPower fields — per-owner snapshots NextEpoch maintains alongside
// its pool-level vp/pvp rotation (see nextepoch.go's
// snapshotDepositStakePower), since the pool-level ValidatorSetEntry sets
// carry only one aggregate power per operator and cannot answer a
// per-depositor question by themselves.
func lockedStakePower(es *ExecutionState, op, owner core.Address) (uint64, error) {
	dep, exists, err := es.Ctx.Net.GetDeposit(op, owner)
	if err != nil || !exists {
		return 0, err
	}
	locked := dep.PVPStakedPower
	if dep.VPStakedPower > locked {
		locked = dep.VPStakedPower
	}
	return locked, nil
}

func executeWithdrawDeposit(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := chargeStorageRead(es, depositGasKey(cmd.Operator, signer)); err != nil {
		return core.CommandOutput{}, err
	}
	dep, exists, err := es.Ctx.Net.GetDeposit(cmd.Operator, signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !exists {
		return core.CommandOutput{}, core.ErrDepositsNotExists
	}
	locked, err := lockedStakePower(es, cmd.Operator, signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	available := uint64(0)
	if dep.Balance > locked {
		available = dep.Balance - locked
	}
	withdrawal := cmd.MaxAmount
	if withdrawal > available {
		withdrawal = available
	}
	if withdrawal == 0 || cmd.MaxAmount == 0 {
		return core.CommandOutput{}, core.ErrInvalidStakeAmount
	}

	dep.Balance -= withdrawal
	if dep.Balance < dep.StakedPower {
		reduceBy := dep.StakedPower - dep.Balance
		if err := es.Ctx.Net.ReduceStakePower(cmd.Operator, reduceBy); err != nil {
			return core.CommandOutput{}, err
		}
		dep.StakedPower = dep.Balance
		if pool, exists, err := es.Ctx.Net.GetPool(cmd.Operator); err != nil {
			return core.CommandOutput{}, err
		} else if exists {
			if pool.Power > reduceBy {
				pool.Power -= reduceBy
			} else {
				pool.Power = 0
			}
			es.Ctx.Net.SetPool(pool)
		}
	}

	if err := chargeStorageWrite(es, depositGasKey(cmd.Operator, signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	if dep.Balance == 0 {
		es.Ctx.Net.DeleteDeposit(cmd.Operator, signer)
	} else {
		es.Ctx.Net.SetDeposit(dep)
	}

	bal, err := es.Ctx.Gas.GetBalance(signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if err := es.Ctx.Gas.SetBalance(signer, core.SaturatingAdd(bal, withdrawal)); err != nil {
		return core.CommandOutput{}, err
	}
	// Writing the "amount moved" output field is itself a metered write
	// (spec §4.3 "Special path"): if it would push gas over the limit,
	// the whole command reports gas exhaustion with the field absent,
	// and the caller reverts every write made above.
	if err := es.Ctx.Gas.ChargeReturnValue(8); err != nil {
		return core.CommandOutput{}, err
	}
	return core.CommandOutput{AmountWithdrawn: withdrawal}, nil
}

func executeStakeDeposit(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := chargeStorageRead(es, depositGasKey(cmd.Operator, signer)); err != nil {
		return core.CommandOutput{}, err
	}
	dep, exists, err := es.Ctx.Net.GetDeposit(cmd.Operator, signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !exists {
		return core.CommandOutput{}, core.ErrDepositsNotExists
	}
	if _, exists, err := es.Ctx.Net.GetPool(cmd.Operator); err != nil {
		return core.CommandOutput{}, err
	} else if !exists {
		return core.CommandOutput{}, core.ErrPoolNotExists
	}

	available := uint64(0)
	if dep.Balance > dep.StakedPower {
		available = dep.Balance - dep.StakedPower
	}
	increase := cmd.MaxAmount
	if increase > available {
		increase = available
	}
	if increase == 0 {
		return core.CommandOutput{}, core.ErrInvalidStakeAmount
	}

	evicted, err := es.Ctx.Net.IncreaseStakePower(cmd.Operator, increase)
	if err != nil {
		return core.CommandOutput{}, err
	}
	effective := increase
	if evicted != nil && evicted.Operator == cmd.Operator {
		effective = 0
	}
	dep.StakedPower += effective
	if err := chargeStorageWrite(es, depositGasKey(cmd.Operator, signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.SetDeposit(dep)

	pool, exists, err := es.Ctx.Net.GetPool(cmd.Operator)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if exists {
		pool.Power = core.SaturatingAdd(pool.Power, effective)
		es.Ctx.Net.SetPool(pool)
	}
	if err := es.Ctx.Gas.ChargeReturnValue(8); err != nil {
		return core.CommandOutput{}, err
	}
	return core.CommandOutput{AmountStaked: effective}, nil
}

func executeUnstakeDeposit(es *ExecutionState, signer core.Address, cmd core.Command) (core.CommandOutput, error) {
	if err := chargeStorageRead(es, depositGasKey(cmd.Operator, signer)); err != nil {
		return core.CommandOutput{}, err
	}
	dep, exists, err := es.Ctx.Net.GetDeposit(cmd.Operator, signer)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if !exists {
		return core.CommandOutput{}, core.ErrDepositsNotExists
	}
	if _, exists, err := es.Ctx.Net.GetPool(cmd.Operator); err != nil {
		return core.CommandOutput{}, err
	} else if !exists {
		return core.CommandOutput{}, core.ErrPoolNotExists
	}
	if dep.StakedPower == 0 {
		return core.CommandOutput{}, core.ErrPoolHasNoStakes
	}

	reduceBy := cmd.MaxAmount
	if reduceBy > dep.StakedPower {
		reduceBy = dep.StakedPower
	}
	if err := es.Ctx.Net.ReduceStakePower(cmd.Operator, reduceBy); err != nil {
		return core.CommandOutput{}, err
	}
	dep.StakedPower -= reduceBy
	if err := chargeStorageWrite(es, depositGasKey(cmd.Operator, signer), []byte{1}); err != nil {
		return core.CommandOutput{}, err
	}
	es.Ctx.Net.SetDeposit(dep)

	pool, exists, err := es.Ctx.Net.GetPool(cmd.Operator)
	if err != nil {
		return core.CommandOutput{}, err
	}
	if exists {
		if pool.Power > reduceBy {
			pool.Power -= reduceBy
		} else {
			pool.Power = 0
		}
		es.Ctx.Net.SetPool(pool)
	}
	if err := es.Ctx.Gas.ChargeReturnValue(8); err != nil {
		return core.CommandOutput{}, err
	}
	return core.CommandOutput{AmountUnstaked: reduceBy}, nil
}

func poolGasKey(operator core.Address) []byte {
	return append([]byte("pool:"), operator.Bytes()...)
}

func depositGasKey(operator, owner core.Address) []byte {
	k := append([]byte("deposit:"), operator.Bytes()...)
	return append(k, owner.Bytes()...)
}

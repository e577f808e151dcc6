package execution

import (
	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/state"
)

// IssuanceReward computes the gross per-epoch reward for a pool of the
// given power at the given epoch. The reward-issuance arithmetic constants
// are an explicit external-collaborator concern (spec §1 Non-goals); this
// is a deterministic stand-in (1% of pool power per epoch, flat) that
// callers embedding THE CORE are expected to replace with their own
// monetary-policy function. A package-level var rather than a parameter
// threaded through every call, matching the teacher's preference for a
// small number of package-level policy knobs over a configuration object
// passed through every layer (internal/consensus's reward constants).
var IssuanceReward = defaultIssuanceReward

func defaultIssuanceReward(epoch, poolPower uint64) uint64 {
	_ = epoch
	return poolPower / 100
}

type autoStakeEntry struct {
	operator core.Address
	owner    core.Address
	amount   uint64
}

// executeNextEpoch implements the Next-Epoch protocol command (spec §4.6):
// reward distribution over vp, auto-stake application, and pvp/vp/nvp
// rotation. It operates gas-free through NetworkAccount's bypass-style
// accessors — staking/epoch bookkeeping is protocol-owned, not
// user-chargeable (spec §4.6: "Operates gas-free through a bypass
// accessor").
func executeNextEpoch(es *ExecutionState, perf *core.ValidatorPerformance) (core.CommandOutput, *core.ValidatorChanges, error) {
	if perf == nil {
		return core.CommandOutput{}, nil, core.ErrInvalidNextEpochCommand
	}

	vp, err := es.Ctx.Net.VP()
	if err != nil {
		return core.CommandOutput{}, nil, err
	}
	poolsInVP := append([]state.ValidatorSetEntry(nil), vp...)

	epoch, err := es.Ctx.Net.CurrentEpoch()
	if err != nil {
		return core.CommandOutput{}, nil, err
	}

	var baseline uint64
	if len(vp) > 0 {
		baseline = perf.BlocksPerEpoch / uint64(len(vp))
	}

	var autoStakes []autoStakeEntry

	for _, entry := range vp {
		pool, exists, err := es.Ctx.Net.GetPool(entry.Operator)
		if err != nil {
			return core.CommandOutput{}, nil, err
		}
		if !exists || pool.Power == 0 {
			continue
		}

		proposed := perf.Stats[entry.Operator]
		reward := IssuanceReward(epoch, pool.Power)
		if baseline > 0 && proposed < baseline {
			reward = reward * proposed / baseline
		}
		if reward == 0 {
			continue
		}

		members, err := es.Ctx.Net.Members(entry.Operator)
		if err != nil {
			return core.CommandOutput{}, nil, err
		}

		var commissionSum, operatorShare uint64
		for _, owner := range members {
			if owner == entry.Operator {
				continue
			}
			dep, exists, err := es.Ctx.Net.GetDeposit(entry.Operator, owner)
			if err != nil {
				return core.CommandOutput{}, nil, err
			}
			if !exists || dep.StakedPower == 0 {
				continue
			}
			stakeShare := reward * dep.StakedPower / pool.Power
			commission := stakeShare * uint64(pool.CommissionRate) / 100
			stakerReward := stakeShare - commission
			commissionSum += commission

			dep.Balance = core.SaturatingAdd(dep.Balance, stakerReward)
			es.Ctx.Net.SetDeposit(dep)
			if dep.AutoStakeRewards {
				autoStakes = append(autoStakes, autoStakeEntry{entry.Operator, owner, stakerReward})
			}
		}

		opDep, exists, err := es.Ctx.Net.GetDeposit(entry.Operator, entry.Operator)
		if err != nil {
			return core.CommandOutput{}, nil, err
		}
		if !exists {
			opDep = state.Deposit{Operator: entry.Operator, Owner: entry.Operator}
		} else {
			operatorShare = reward * opDep.StakedPower / pool.Power
		}
		opDep.Balance = core.SaturatingAdd(opDep.Balance, operatorShare+commissionSum)
		es.Ctx.Net.SetDeposit(opDep)
		if opDep.AutoStakeRewards {
			autoStakes = append(autoStakes, autoStakeEntry{entry.Operator, entry.Operator, operatorShare + commissionSum})
		}
	}

	for _, as := range autoStakes {
		if _, exists, err := es.Ctx.Net.GetPool(as.operator); err != nil {
			return core.CommandOutput{}, nil, err
		} else if !exists {
			continue
		}
		if _, err := es.Ctx.Net.IncreaseStakePower(as.operator, as.amount); err != nil {
			return core.CommandOutput{}, nil, err
		}
		dep, exists, err := es.Ctx.Net.GetDeposit(as.operator, as.owner)
		if err != nil {
			return core.CommandOutput{}, nil, err
		}
		if !exists {
			continue
		}
		dep.StakedPower = core.SaturatingAdd(dep.StakedPower, as.amount)
		es.Ctx.Net.SetDeposit(dep)
		pool, exists, err := es.Ctx.Net.GetPool(as.operator)
		if err != nil {
			return core.CommandOutput{}, nil, err
		}
		if exists {
			pool.Power = core.SaturatingAdd(pool.Power, as.amount)
			es.Ctx.Net.SetPool(pool)
		}
	}

	// Snapshot every deposit's pvp/vp stake power alongside the pool-level
	// rotation below (spec §4.6 steps 4-5: "pvp := vp", "vp := nvp"), since
	// WithdrawDeposit's locked-amount formula (spec §4.4) needs a per-owner
	// breakdown the pool-level vp/nvp ValidatorSetEntry sets don't carry.
	// Order matters: pvp must capture the outgoing vp snapshot before vp
	// is overwritten with nvp's live values.
	if err := snapshotDepositStakePower(es, vp, func(d *state.Deposit) { d.PVPStakedPower = d.VPStakedPower }); err != nil {
		return core.CommandOutput{}, nil, err
	}
	es.Ctx.Net.SetPVP(vp)

	nvp, err := es.Ctx.Net.NVP()
	if err != nil {
		return core.CommandOutput{}, nil, err
	}
	if err := snapshotDepositStakePower(es, nvp, func(d *state.Deposit) { d.VPStakedPower = d.StakedPower }); err != nil {
		return core.CommandOutput{}, nil, err
	}
	es.Ctx.Net.SetVP(nvp)
	es.Ctx.Net.SetCurrentEpoch(epoch + 1)

	changes := computeValidatorChanges(poolsInVP, nvp)
	return core.CommandOutput{}, changes, nil
}

// snapshotDepositStakePower applies update to every deposit held under any
// operator in set (via NetworkAccount's membership index), used to carry
// each pool's pvp/vp rotation down onto its individual deposits' stake-
// power snapshots.
func snapshotDepositStakePower(es *ExecutionState, set []state.ValidatorSetEntry, update func(*state.Deposit)) error {
	for _, entry := range set {
		members, err := es.Ctx.Net.Members(entry.Operator)
		if err != nil {
			return err
		}
		for _, owner := range members {
			dep, exists, err := es.Ctx.Net.GetDeposit(entry.Operator, owner)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			update(&dep)
			es.Ctx.Net.SetDeposit(dep)
		}
	}
	return nil
}

// computeValidatorChanges derives the new/removed validator sets (spec
// §4.6 step 7): new_validator_set excludes operators whose power is
// unchanged from the previous vp snapshot; remove_validator_set is every
// previous-vp operator absent from the new validator set.
func computeValidatorChanges(prev, next []state.ValidatorSetEntry) *core.ValidatorChanges {
	prevPower := make(map[core.Address]uint64, len(prev))
	for _, e := range prev {
		prevPower[e.Operator] = e.Power
	}
	nextSet := make(map[core.Address]bool, len(next))
	var newSet []core.ValidatorSetEntry
	for _, e := range next {
		nextSet[e.Operator] = true
		if p, ok := prevPower[e.Operator]; !ok || p != e.Power {
			newSet = append(newSet, core.ValidatorSetEntry{Operator: e.Operator, Power: e.Power})
		}
	}
	var removed []core.Address
	for _, e := range prev {
		if !nextSet[e.Operator] {
			removed = append(removed, e.Operator)
		}
	}
	return &core.ValidatorChanges{NewValidatorSet: newSet, RemoveValidatorSet: removed}
}

package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/empower1/empower1/internal/core"
)

var (
	ErrPoolNotFound    = errors.New("state: pool not found")
	ErrDepositNotFound = errors.New("state: deposit not found")
)

// Pool is an operator's staking pool (spec §3, §4.4): the operator's own
// stake plus delegated stake, subject to a commission rate and a
// delegate-or-not switch.
type Pool struct {
	Operator         core.Address
	Power            uint64
	CommissionRate   uint8
	Enabled          bool // operator accepts delegated deposits
}

// Deposit is a single (operator, owner) stake position (spec §3, §4.4).
// StakedPower is the live stake power this deposit backs (mirrors nvp:
// mutated synchronously by StakeDeposit/UnstakeDeposit). VPStakedPower and
// PVPStakedPower are per-deposit snapshots of that same figure taken at
// the last two epoch rotations, maintained by NextEpoch alongside its
// pool-level vp/pvp snapshots — WithdrawDeposit's `locked` calculation
// (spec §4.4: "max(stake_power_in_pvp, stake_power_in_vp)") needs a
// per-owner breakdown that the pool-level ValidatorSetEntry sets alone
// cannot provide, since those only carry one aggregate power per operator.
type Deposit struct {
	Operator         core.Address
	Owner            core.Address
	Balance          uint64
	AutoStakeRewards bool
	StakedPower      uint64
	VPStakedPower    uint64
	PVPStakedPower   uint64
}

// ValidatorSetEntry mirrors core.ValidatorSetEntry for the in-progress,
// not-yet-finalized nvp/vp/pvp sets this package maintains.
type ValidatorSetEntry struct {
	Operator core.Address
	Power    uint64
}

const (
	networkKeyEpoch = "epoch"
	networkKeyPoolPrefix    = "pool:"
	networkKeyDepositPrefix = "deposit:"
	networkKeyNVP = "nvp"
	networkKeyVP  = "vp"
	networkKeyPVP = "pvp"

	// networkKeyMembersPrefix indexes which owners hold a deposit under a
	// given operator (SUPPLEMENT: the spec's delegated_stakes sorted set
	// doubles as this membership index in the reference implementation;
	// this package's flattened Pool/Deposit model, see DESIGN.md, needs an
	// explicit index instead since it has no per-pool stake collection to
	// walk. Maintained by SetDeposit/DeleteDeposit, consumed by NextEpoch.)
	networkKeyMembersPrefix = "members:"
)

// NetworkAccount is the logical typed view over the well-known
// NETWORK_ADDRESS account's storage trie (spec §3, §4.4, §4.6): pools,
// deposits, and the three validator-set generations (nvp/vp/pvp), all
// addressed as ordinary storage keys under core.NetworkAddress and
// routed through the same WorldStateCache every other command uses —
// staking has no separate storage backend.
//
// Grounded on the teacher's internal/consensus pool/validator bookkeeping
// pattern (sorted-slice membership with a fixed capacity), adapted from
// an in-memory slice onto the cache-backed storage-trie addressing
// scheme the spec requires.
type NetworkAccount struct {
	cache *WorldStateCache
}

func NewNetworkAccount(cache *WorldStateCache) *NetworkAccount {
	return &NetworkAccount{cache: cache}
}

func poolKey(operator core.Address) []byte {
	return append([]byte(networkKeyPoolPrefix), operator.Bytes()...)
}

func depositKey(operator, owner core.Address) []byte {
	k := append([]byte(networkKeyDepositPrefix), operator.Bytes()...)
	return append(k, owner.Bytes()...)
}

func (na *NetworkAccount) CurrentEpoch() (uint64, error) {
	raw, err := na.cache.StorageData(core.NetworkAddress, []byte(networkKeyEpoch))
	if err != nil {
		return 0, err
	}
	if len(raw) < 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (na *NetworkAccount) SetCurrentEpoch(epoch uint64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, epoch)
	na.cache.SetStorageData(core.NetworkAddress, []byte(networkKeyEpoch), buf)
}

func (na *NetworkAccount) GetPool(operator core.Address) (Pool, bool, error) {
	raw, err := na.cache.StorageData(core.NetworkAddress, poolKey(operator))
	if err != nil {
		return Pool{}, false, err
	}
	if len(raw) == 0 {
		return Pool{}, false, nil
	}
	p, err := decodePool(raw)
	return p, true, err
}

func (na *NetworkAccount) SetPool(p Pool) {
	na.cache.SetStorageData(core.NetworkAddress, poolKey(p.Operator), encodePool(p))
}

func (na *NetworkAccount) DeletePool(operator core.Address) {
	na.cache.SetStorageData(core.NetworkAddress, poolKey(operator), nil)
}

func (na *NetworkAccount) GetDeposit(operator, owner core.Address) (Deposit, bool, error) {
	raw, err := na.cache.StorageData(core.NetworkAddress, depositKey(operator, owner))
	if err != nil {
		return Deposit{}, false, err
	}
	if len(raw) == 0 {
		return Deposit{}, false, nil
	}
	d, err := decodeDeposit(raw)
	return d, true, err
}

func (na *NetworkAccount) SetDeposit(d Deposit) {
	na.cache.SetStorageData(core.NetworkAddress, depositKey(d.Operator, d.Owner), encodeDeposit(d))
	na.addMember(d.Operator, d.Owner)
}

func (na *NetworkAccount) DeleteDeposit(operator, owner core.Address) {
	na.cache.SetStorageData(core.NetworkAddress, depositKey(operator, owner), nil)
	na.removeMember(operator, owner)
}

func membersKey(operator core.Address) []byte {
	return append([]byte(networkKeyMembersPrefix), operator.Bytes()...)
}

func (na *NetworkAccount) members(operator core.Address) ([]core.Address, error) {
	raw, err := na.cache.StorageData(core.NetworkAddress, membersKey(operator))
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, nil
	}
	count := binary.BigEndian.Uint32(raw[0:4])
	out := make([]core.Address, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+core.AddressLength > len(raw) {
			break
		}
		addr, err := core.AddressFromBytes(raw[off : off+core.AddressLength])
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
		off += core.AddressLength
	}
	return out, nil
}

func (na *NetworkAccount) setMembers(operator core.Address, members []core.Address) {
	buf := make([]byte, 4, 4+len(members)*core.AddressLength)
	binary.BigEndian.PutUint32(buf, uint32(len(members)))
	for _, m := range members {
		buf = append(buf, m.Bytes()...)
	}
	na.cache.SetStorageData(core.NetworkAddress, membersKey(operator), buf)
}

func (na *NetworkAccount) addMember(operator, owner core.Address) {
	members, _ := na.members(operator)
	for _, m := range members {
		if m == owner {
			return
		}
	}
	na.setMembers(operator, append(members, owner))
}

func (na *NetworkAccount) removeMember(operator, owner core.Address) {
	members, _ := na.members(operator)
	out := members[:0]
	for _, m := range members {
		if m != owner {
			out = append(out, m)
		}
	}
	na.setMembers(operator, out)
}

// Members returns every owner address holding a deposit under operator
// (SUPPLEMENT, used by NextEpoch's per-deposit reward distribution).
func (na *NetworkAccount) Members(operator core.Address) ([]core.Address, error) {
	return na.members(operator)
}

// NVP/VP/PVP are the Next/current/Previous Validator Pool sorted sets
// (spec §3, §4.6), each bounded to core.MaxValidatorSetSize entries
// ordered by descending power with address as tie-break.

func (na *NetworkAccount) NVP() ([]ValidatorSetEntry, error) { return na.readSet(networkKeyNVP) }
func (na *NetworkAccount) VP() ([]ValidatorSetEntry, error)  { return na.readSet(networkKeyVP) }
func (na *NetworkAccount) PVP() ([]ValidatorSetEntry, error) { return na.readSet(networkKeyPVP) }

func (na *NetworkAccount) SetNVP(set []ValidatorSetEntry) { na.writeSet(networkKeyNVP, set) }
func (na *NetworkAccount) SetVP(set []ValidatorSetEntry)  { na.writeSet(networkKeyVP, set) }
func (na *NetworkAccount) SetPVP(set []ValidatorSetEntry) { na.writeSet(networkKeyPVP, set) }

func (na *NetworkAccount) readSet(key string) ([]ValidatorSetEntry, error) {
	raw, err := na.cache.StorageData(core.NetworkAddress, []byte(key))
	if err != nil {
		return nil, err
	}
	return decodeValidatorSet(raw)
}

func (na *NetworkAccount) writeSet(key string, set []ValidatorSetEntry) {
	na.cache.SetStorageData(core.NetworkAddress, []byte(key), encodeValidatorSet(set))
}

// IncreaseStakePower raises operator's power in the NVP by delta,
// inserting it if absent, then re-sorts and evicts the lowest-power
// entry past core.MaxValidatorSetSize (spec §4.4 increase_stake_power).
// Returns the entry evicted, if any.
func (na *NetworkAccount) IncreaseStakePower(operator core.Address, delta uint64) (evicted *ValidatorSetEntry, err error) {
	set, err := na.NVP()
	if err != nil {
		return nil, err
	}
	found := false
	for i := range set {
		if set[i].Operator == operator {
			set[i].Power = saturatingAddSet(set[i].Power, delta)
			found = true
			break
		}
	}
	if !found {
		set = append(set, ValidatorSetEntry{Operator: operator, Power: delta})
	}
	set = sortValidatorSet(set)
	if len(set) > core.MaxValidatorSetSize {
		ev := set[len(set)-1]
		set = set[:core.MaxValidatorSetSize]
		evicted = &ev
	}
	na.SetNVP(set)
	return evicted, nil
}

// ReduceStakePower lowers operator's power in the NVP by delta, removing
// the entry entirely if its power reaches zero (spec §4.4
// reduce_stake_power).
func (na *NetworkAccount) ReduceStakePower(operator core.Address, delta uint64) error {
	set, err := na.NVP()
	if err != nil {
		return err
	}
	out := set[:0]
	for _, e := range set {
		if e.Operator == operator {
			if e.Power <= delta {
				continue // removed
			}
			e.Power -= delta
		}
		out = append(out, e)
	}
	out = sortValidatorSet(out)
	na.SetNVP(out)
	return nil
}

func saturatingAddSet(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

func sortValidatorSet(set []ValidatorSetEntry) []ValidatorSetEntry {
	sort.SliceStable(set, func(i, j int) bool {
		if set[i].Power != set[j].Power {
			return set[i].Power > set[j].Power
		}
		return bytes.Compare(set[i].Operator.Bytes(), set[j].Operator.Bytes()) < 0
	})
	return set
}

// encode/decode helpers use the same fixed-width style as
// world_state.go's AccountRecord codec.

func encodePool(p Pool) []byte {
	buf := make([]byte, core.AddressLength+8+1+1)
	copy(buf[0:core.AddressLength], p.Operator.Bytes())
	binary.BigEndian.PutUint64(buf[core.AddressLength:core.AddressLength+8], p.Power)
	buf[core.AddressLength+8] = p.CommissionRate
	if p.Enabled {
		buf[core.AddressLength+9] = 1
	}
	return buf
}

func decodePool(buf []byte) (Pool, error) {
	if len(buf) < core.AddressLength+10 {
		return Pool{}, fmt.Errorf("state: truncated pool record (%d bytes)", len(buf))
	}
	addr, err := core.AddressFromBytes(buf[0:core.AddressLength])
	if err != nil {
		return Pool{}, err
	}
	return Pool{
		Operator:       addr,
		Power:          binary.BigEndian.Uint64(buf[core.AddressLength : core.AddressLength+8]),
		CommissionRate: buf[core.AddressLength+8],
		Enabled:        buf[core.AddressLength+9] == 1,
	}, nil
}

func encodeDeposit(d Deposit) []byte {
	buf := make([]byte, core.AddressLength*2+8+1+8+8+8)
	off := 0
	copy(buf[off:off+core.AddressLength], d.Operator.Bytes())
	off += core.AddressLength
	copy(buf[off:off+core.AddressLength], d.Owner.Bytes())
	off += core.AddressLength
	binary.BigEndian.PutUint64(buf[off:off+8], d.Balance)
	off += 8
	if d.AutoStakeRewards {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], d.StakedPower)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], d.VPStakedPower)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], d.PVPStakedPower)
	return buf
}

func decodeDeposit(buf []byte) (Deposit, error) {
	want := core.AddressLength*2 + 8 + 1 + 8 + 8 + 8
	if len(buf) < want {
		return Deposit{}, fmt.Errorf("state: truncated deposit record (%d bytes)", len(buf))
	}
	off := 0
	operator, err := core.AddressFromBytes(buf[off : off+core.AddressLength])
	if err != nil {
		return Deposit{}, err
	}
	off += core.AddressLength
	owner, err := core.AddressFromBytes(buf[off : off+core.AddressLength])
	if err != nil {
		return Deposit{}, err
	}
	off += core.AddressLength
	balance := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	auto := buf[off] == 1
	off++
	power := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	vpPower := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	pvpPower := binary.BigEndian.Uint64(buf[off : off+8])
	return Deposit{
		Operator:         operator,
		Owner:            owner,
		Balance:          balance,
		AutoStakeRewards: auto,
		StakedPower:      power,
		VPStakedPower:    vpPower,
		PVPStakedPower:   pvpPower,
	}, nil
}

func encodeValidatorSet(set []ValidatorSetEntry) []byte {
	buf := make([]byte, 0, 4+len(set)*(core.AddressLength+8))
	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(set)))
	buf = append(buf, count...)
	for _, e := range set {
		buf = append(buf, e.Operator.Bytes()...)
		pw := make([]byte, 8)
		binary.BigEndian.PutUint64(pw, e.Power)
		buf = append(buf, pw...)
	}
	return buf
}

func decodeValidatorSet(buf []byte) ([]ValidatorSetEntry, error) {
	if len(buf) < 4 {
		return nil, nil
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	entries := make([]ValidatorSetEntry, 0, count)
	off := 4
	stride := core.AddressLength + 8
	for i := uint32(0); i < count; i++ {
		if off+stride > len(buf) {
			return nil, fmt.Errorf("state: truncated validator set (entry %d)", i)
		}
		addr, err := core.AddressFromBytes(buf[off : off+core.AddressLength])
		if err != nil {
			return nil, err
		}
		power := binary.BigEndian.Uint64(buf[off+core.AddressLength : off+stride])
		entries = append(entries, ValidatorSetEntry{Operator: addr, Power: power})
		off += stride
	}
	return entries, nil
}

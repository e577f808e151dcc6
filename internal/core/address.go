package core

import (
	"encoding/hex"
	"errors"
)

// AddressLength is the fixed byte width of every account-trie key, matching
// the teacher's preference for raw public-key-derived identifiers over a
// checksum-prefixed string. This repository has no checksummed or other
// human-facing address format.
const AddressLength = 32

// Address identifies an account-trie entry: an externally-owned account,
// a deployed contract, or the well-known network account.
type Address [AddressLength]byte

var ErrInvalidAddressLength = errors.New("core: address must be exactly 32 bytes")

// AddressFromBytes copies a byte slice into a fixed Address, rejecting any
// length other than AddressLength.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, ErrInvalidAddressLength
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

// AddressFromHex parses a hex-encoded 32-byte address, as accepted by
// cmd/runtimed fixtures.
func AddressFromHex(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	return AddressFromBytes(b)
}

// NetworkAddress is the fixed well-known address under which all staking
// and epoch bookkeeping lives (spec §3, NetworkAccount).
var NetworkAddress = Address{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe,
}

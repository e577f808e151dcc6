package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeUint64 converts a uint64 to big-endian bytes, following the
// teacher's encodeInt64 helper in internal/core/utils.go. No other code
// in this repository calls it.
func EncodeUint64(num uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, num)
	return buf
}

// DecodeUint64 is the inverse of EncodeUint64.
func DecodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("core: expected 8 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// EncodeUint64LE little-endian-encodes a uint64, the wire format
// CommandReceiptV1 uses for withdrawal/stake/unstake amounts written into
// ReturnValue (spec §6).
func EncodeUint64LE(num uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, num)
	return buf
}

// SaturatingAdd adds two uint64s, clamping to math.MaxUint64 on overflow
// (spec §4.4: "increment recipient's balance saturating to u64::MAX").
func SaturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

// SaturatingSub subtracts b from a, clamping to zero instead of wrapping.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// JoinKey joins an address and a storage key into a single byte slice
// with one 0x00 separator byte between them, the shape WorldStateCache uses for its storage sub-cache key
// (spec §3: storage: (Address, key_bytes) -> bytes).
func JoinKey(addr Address, key []byte) []byte {
	return bytes.Join([][]byte{addr.Bytes(), key}, []byte{0})
}

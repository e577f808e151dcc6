package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required by the CBI ripemd host call
	"golang.org/x/crypto/sha3"
)

// SHA256 backs the CBI `sha256` host call (spec §4.7); crypto/sha256
// covers this natively.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Keccak256 backs the CBI `keccak256` host call and the V2 storage-trie
// key-hashing rule (spec §3: "V2 hashes storage-trie keys >= 32 bytes with
// Keccak-256 before descent"). golang.org/x/crypto/sha3 is the ecosystem
// source for Keccak the teacher doesn't carry natively in stdlib.
func Keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RIPEMD160 backs the CBI `ripemd` host call.
func RIPEMD160(data []byte) [20]byte {
	h := ripemd160.New()
	h.Write(data)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

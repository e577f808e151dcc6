package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Secp256k1 keypair, signing and verification helpers, on the curve the
// teacher's go.mod already pulls in transitively via libp2p's peer
// identity stack. No other code in this repository calls them: contract
// addresses are derived with SHA-256, and the CBI verifies only Ed25519
// signatures.
var (
	ErrSecp256k1KeyGeneration = errors.New("crypto: secp256k1 key generation failed")
	ErrSecp256k1Signature     = errors.New("crypto: secp256k1 signature invalid")
)

// GenerateSecp256k1KeyPair returns a fresh secp256k1 private/public keypair.
func GenerateSecp256k1KeyPair() (*secp256k1.PrivateKey, error) {
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecp256k1KeyGeneration, err)
	}
	return privKey, nil
}

// Secp256k1PublicKeyBytes returns the compressed 33-byte encoding used as
// the canonical on-chain representation.
func Secp256k1PublicKeyBytes(privKey *secp256k1.PrivateKey) []byte {
	return privKey.PubKey().SerializeCompressed()
}

// SignSecp256k1 produces a DER-encoded ECDSA signature over digest.
func SignSecp256k1(privKey *secp256k1.PrivateKey, digest []byte) []byte {
	sig := ecdsa.Sign(privKey, digest)
	return sig.Serialize()
}

// VerifySecp256k1 checks a DER-encoded signature against a compressed
// public key and digest.
func VerifySecp256k1(pubKeyBytes, digest, derSig []byte) (bool, error) {
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSecp256k1Signature, err)
	}
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSecp256k1Signature, err)
	}
	return sig.Verify(digest, pubKey), nil
}

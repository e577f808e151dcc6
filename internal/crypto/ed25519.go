package crypto

import "crypto/ed25519"

// VerifyEd25519Signature backs the CBI `verify_ed25519_signature` host
// call (spec §4.7). stdlib crypto/ed25519 is authoritative here — no
// example repo in the pack wires a third-party Ed25519 implementation, and
// crypto/ed25519 is the canonical Go source for this primitive.
func VerifyEd25519Signature(pubKey, message, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), message, sig)
}

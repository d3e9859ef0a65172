package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Digest computes the base64 BLAKE2b-512 digest of the raw payload bytes.
// The digest must be computed over the exact bytes sent on the wire; any
// re-serialization between signing and sending breaks verification.
func Digest(payload []byte) string {
	sum := blake2b.Sum512(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SigningString assembles the string that is actually signed: the header
// validity window plus the payload digest, in the fixed field order every
// verifier on the network reconstructs.
func SigningString(created, expires int64, payload []byte) string {
	return fmt.Sprintf("(created): %d\n(expires): %d\ndigest: BLAKE-512=%s", created, expires, Digest(payload))
}

// Sign produces the detached signature over the signing string for the given
// payload and validity window.
func Sign(payload []byte, created, expires int64, priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadKey, len(priv))
	}
	return ed25519.Sign(priv, []byte(SigningString(created, expires, payload))), nil
}

// Package signing implements the detached Ed25519 signature scheme used on
// every network message: a BLAKE2b-512 digest of the raw body is folded into
// a signing string together with the header validity window, signed, and
// transported in an HTTP Signature-style Authorization header.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrBadKey reports signing material that is not a usable Ed25519 key.
var ErrBadKey = errors.New("malformed signing key")

// GenerateKeyPair returns a fresh Ed25519 key pair.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key pair: %w", err)
	}
	return pub, priv, nil
}

// DecodePrivateKey decodes a base64 private key as stored in node settings.
// Both the 64-byte private key and the 32-byte seed form are accepted.
func DecodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	}
	return nil, fmt.Errorf("%w: %d bytes", ErrBadKey, len(raw))
}

// DecodePublicKey decodes a base64 public key as published in the registry.
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadKey, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// EncodeKey renders key bytes in the base64 form the registry exchanges.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

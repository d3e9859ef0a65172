package signing

import (
	"context"
	"crypto/ed25519"
	"time"
)

// VerifyResult classifies the outcome of verifying an inbound message. The
// distinct rejection reasons matter: an expired window and a forged signature
// get different negative acknowledgements.
type VerifyResult string

const (
	Valid            VerifyResult = "valid"
	InvalidSignature VerifyResult = "invalid_signature"
	Expired          VerifyResult = "expired"
	MalformedHeader  VerifyResult = "malformed_header"
	UnknownSigner    VerifyResult = "unknown_signer"
)

// KeyResolver looks up a signer's public key, normally backed by the registry
// client. A nil key with nil error means the signer is unknown.
type KeyResolver interface {
	ResolveKey(ctx context.Context, subscriberID, uniqueKeyID string) (ed25519.PublicKey, error)
}

// KeyResolverFunc adapts a function to the KeyResolver interface.
type KeyResolverFunc func(ctx context.Context, subscriberID, uniqueKeyID string) (ed25519.PublicKey, error)

func (f KeyResolverFunc) ResolveKey(ctx context.Context, subscriberID, uniqueKeyID string) (ed25519.PublicKey, error) {
	return f(ctx, subscriberID, uniqueKeyID)
}

// Verifier checks inbound signature headers. Leeway is applied symmetrically
// to both window bounds to tolerate clock skew between participants.
type Verifier struct {
	Leeway time.Duration
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Verify parses the header, resolves the signer's key, recomputes the digest
// over the exact payload bytes and checks the signature. Signature and window
// checks are independent gates; both must pass for Valid.
func (v *Verifier) Verify(ctx context.Context, payload []byte, header string, resolver KeyResolver) (VerifyResult, AuthHeader) {
	parsed, err := ParseAuthHeader(header)
	if err != nil {
		return MalformedHeader, AuthHeader{}
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	notBefore := time.Unix(parsed.Created, 0).Add(-v.Leeway)
	notAfter := time.Unix(parsed.Expires, 0).Add(v.Leeway)
	if now.Before(notBefore) || now.After(notAfter) {
		return Expired, parsed
	}

	return v.verifySignature(ctx, payload, parsed, resolver), parsed
}

func (v *Verifier) verifySignature(ctx context.Context, payload []byte, parsed AuthHeader, resolver KeyResolver) VerifyResult {
	if resolver == nil {
		return UnknownSigner
	}
	pub, err := resolver.ResolveKey(ctx, parsed.SubscriberID, parsed.UniqueKeyID)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return UnknownSigner
	}
	msg := []byte(SigningString(parsed.Created, parsed.Expires, payload))
	if !ed25519.Verify(pub, msg, parsed.Signature) {
		return InvalidSignature
	}
	return Valid
}

package testutil

import (
	"crypto/ed25519"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"becknet/internal/signing"
)

// KeyPair is a deterministic-free Ed25519 pair for tests.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewKeyPair generates a fresh Ed25519 key pair.
func NewKeyPair(t *testing.T) KeyPair {
	t.Helper()
	pub, priv, err := signing.GenerateKeyPair()
	require.NoError(t, err, "failed to generate key pair")
	return KeyPair{Public: pub, Private: priv}
}

// SignRequest attaches a valid Authorization header over the given body,
// created now and expiring in five minutes.
func SignRequest(t *testing.T, req *http.Request, body []byte, subscriberID, keyID string, priv ed25519.PrivateKey) *http.Request {
	t.Helper()
	created := time.Now().Unix()
	expires := created + int64((5 * time.Minute).Seconds())
	sig, err := signing.Sign(body, created, expires, priv)
	require.NoError(t, err, "failed to sign request body")
	req.Header.Set("Authorization", signing.BuildAuthHeader(subscriberID, keyID, sig, created, expires))
	return req
}

package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_ExactBytesMatter(t *testing.T) {
	// Semantically equal JSON with different whitespace must produce a
	// different digest: verification runs over raw wire bytes.
	a := Digest([]byte(`{"context":{"action":"search"}}`))
	b := Digest([]byte(`{"context": {"action": "search"}}`))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Digest([]byte(`{"context":{"action":"search"}}`)))
}

func TestSigningString_Layout(t *testing.T) {
	s := SigningString(100, 400, []byte(`{}`))
	lines := strings.Split(s, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "(created): 100", lines[0])
	assert.Equal(t, "(expires): 400", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "digest: BLAKE-512="))
}

func TestSign_RejectsShortKey(t *testing.T) {
	_, err := Sign([]byte(`{}`), 1, 2, make([]byte, 31))
	require.ErrorIs(t, err, ErrBadKey)
}

func TestDecodePrivateKey(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	t.Run("full private key", func(t *testing.T) {
		got, err := DecodePrivateKey(EncodeKey(priv))
		require.NoError(t, err)
		assert.True(t, priv.Equal(got))
	})

	t.Run("seed form", func(t *testing.T) {
		got, err := DecodePrivateKey(EncodeKey(priv.Seed()))
		require.NoError(t, err)
		assert.True(t, priv.Equal(got))
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := DecodePrivateKey(base64.StdEncoding.EncodeToString([]byte("short")))
		assert.ErrorIs(t, err, ErrBadKey)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := DecodePrivateKey("%%%")
		assert.ErrorIs(t, err, ErrBadKey)
	})

	t.Run("public key round trip", func(t *testing.T) {
		got, err := DecodePublicKey(EncodeKey(pub))
		require.NoError(t, err)
		assert.Equal(t, ed25519.PublicKey(pub), got)
	})
}

func TestBuildAndParseAuthHeader(t *testing.T) {
	_, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	payload := []byte(`{"message":{"intent":{}}}`)
	sig, err := Sign(payload, 1700000000, 1700000300, priv)
	require.NoError(t, err)

	header := BuildAuthHeader("buyer.example.com", "key1", sig, 1700000000, 1700000300)
	assert.True(t, strings.HasPrefix(header, "Signature "))

	parsed, err := ParseAuthHeader(header)
	require.NoError(t, err)
	assert.Equal(t, "buyer.example.com", parsed.SubscriberID)
	assert.Equal(t, "key1", parsed.UniqueKeyID)
	assert.Equal(t, Algorithm, parsed.Algorithm)
	assert.Equal(t, int64(1700000000), parsed.Created)
	assert.Equal(t, int64(1700000300), parsed.Expires)
	assert.Equal(t, CoveredHeaders, parsed.Headers)
	assert.Equal(t, sig, parsed.Signature)
	assert.Equal(t, "buyer.example.com|key1|ed25519", parsed.KeyID())
}

func TestParseAuthHeader_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"not a signature header", "Bearer abc123"},
		{"missing key id parts", `Signature keyId="buyer.example.com",algorithm="ed25519",created="1",expires="2",signature="c2ln"`},
		{"bad created", `Signature keyId="a|b|ed25519",algorithm="ed25519",created="soon",expires="2",signature="c2ln"`},
		{"bad expires", `Signature keyId="a|b|ed25519",algorithm="ed25519",created="1",expires="later",signature="c2ln"`},
		{"bad signature encoding", `Signature keyId="a|b|ed25519",algorithm="ed25519",created="1",expires="2",signature="%%%"`},
		{"empty signature", `Signature keyId="a|b|ed25519",algorithm="ed25519",created="1",expires="2",signature=""`},
		{"wrong algorithm", `Signature keyId="a|b|rsa",algorithm="rsa",created="1",expires="2",signature="c2ln"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAuthHeader(tc.value)
			assert.ErrorIs(t, err, ErrMalformedHeader)
		})
	}
}

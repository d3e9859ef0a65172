package signing

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// Algorithm is the only signature algorithm the network accepts.
	Algorithm = "ed25519"
	// CoveredHeaders is the fixed list of pseudo-headers the signature covers.
	CoveredHeaders = "(created) (expires) digest"
)

// ErrMalformedHeader reports an Authorization header that does not parse as a
// network signature header.
var ErrMalformedHeader = errors.New("malformed authorization header")

// AuthHeader is the parsed form of the signature credential attached to every
// message.
type AuthHeader struct {
	SubscriberID string
	UniqueKeyID  string
	Algorithm    string
	Created      int64
	Expires      int64
	Headers      string
	Signature    []byte
}

// KeyID renders the composite key identifier carried in the header.
func (h AuthHeader) KeyID() string {
	return fmt.Sprintf("%s|%s|%s", h.SubscriberID, h.UniqueKeyID, h.Algorithm)
}

// BuildAuthHeader assembles the transportable credential string. Pure
// formatting; the signature is produced separately by Sign.
func BuildAuthHeader(subscriberID, uniqueKeyID string, signature []byte, created, expires int64) string {
	return fmt.Sprintf(
		`Signature keyId="%s|%s|%s",algorithm="%s",created="%d",expires="%d",headers="%s",signature="%s"`,
		subscriberID, uniqueKeyID, Algorithm,
		Algorithm, created, expires, CoveredHeaders,
		base64.StdEncoding.EncodeToString(signature),
	)
}

var headerParamPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseAuthHeader parses the Authorization header value into its components.
func ParseAuthHeader(value string) (AuthHeader, error) {
	value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "Signature "))
	if value == "" {
		return AuthHeader{}, ErrMalformedHeader
	}

	params := make(map[string]string)
	for _, m := range headerParamPattern.FindAllStringSubmatch(value, -1) {
		params[m[1]] = m[2]
	}
	if len(params) == 0 {
		return AuthHeader{}, ErrMalformedHeader
	}

	keyParts := strings.Split(params["keyId"], "|")
	if len(keyParts) != 3 {
		return AuthHeader{}, fmt.Errorf("%w: keyId %q", ErrMalformedHeader, params["keyId"])
	}

	created, err := strconv.ParseInt(params["created"], 10, 64)
	if err != nil {
		return AuthHeader{}, fmt.Errorf("%w: created %q", ErrMalformedHeader, params["created"])
	}
	expires, err := strconv.ParseInt(params["expires"], 10, 64)
	if err != nil {
		return AuthHeader{}, fmt.Errorf("%w: expires %q", ErrMalformedHeader, params["expires"])
	}

	sig, err := base64.StdEncoding.DecodeString(params["signature"])
	if err != nil || len(sig) == 0 {
		return AuthHeader{}, fmt.Errorf("%w: bad signature encoding", ErrMalformedHeader)
	}

	h := AuthHeader{
		SubscriberID: keyParts[0],
		UniqueKeyID:  keyParts[1],
		Algorithm:    params["algorithm"],
		Created:      created,
		Expires:      expires,
		Headers:      params["headers"],
		Signature:    sig,
	}
	if h.Algorithm != Algorithm || keyParts[2] != Algorithm {
		return AuthHeader{}, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHeader, h.Algorithm)
	}
	return h, nil
}

package fulmine

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// ErrMalformedBearerToken is returned when a presented bearer token cannot be
// decoded or is too short to contain both a session key and a secret.
var ErrMalformedBearerToken = fmt.Errorf("malformed bearer token")

// NewBearerToken generates a bearer token string of nBytes random bytes,
// encoded with unpadded URL-safe base64. The same generator is used for
// access tokens, refresh tokens and authorization codes; only the byte
// length differs.
func NewBearerToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		return "", fmt.Errorf("token byte length must be positive, got %d", nBytes)
	}
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ParseBearer splits a bearer access token into its public session key (the
// first sessionKeyBytes decoded bytes, re-encoded) and the remaining secret.
// The session key locates the session record; the secret is verified against
// the record on every authenticated request, so a leaked session key alone
// never grants access.
func ParseBearer(token string, sessionKeyBytes int) (sessionKey, secret string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedBearerToken, err)
	}
	if len(raw) <= sessionKeyBytes {
		return "", "", fmt.Errorf("%w: %d bytes, need more than %d", ErrMalformedBearerToken, len(raw), sessionKeyBytes)
	}
	sessionKey = base64.RawURLEncoding.EncodeToString(raw[:sessionKeyBytes])
	secret = base64.RawURLEncoding.EncodeToString(raw[sessionKeyBytes:])
	return sessionKey, secret, nil
}

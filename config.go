package fulmine

import (
	"encoding/base64"
	"fmt"
)

// Config holds the token geometry of the server: how many random bytes go
// into each credential and how the bearer token splits into session key and
// secret. All values are injected configuration; persistence schemas and
// token parsers must agree on them.
type Config struct {
	// ClientIDLength is the maximum accepted length of a client identifier.
	ClientIDLength int // default: 120

	// ScopeLength is the maximum length of the delimited scope text when
	// persisted as a single string.
	ScopeLength int // default: 200

	// AuthCodeBytes is the number of random bytes in an authorization code.
	AuthCodeBytes int // default: 24

	// AccessTokenBytes is the number of random bytes in a bearer access
	// token. Must be strictly larger than SessionKeyBytes; the remainder is
	// the secret.
	AccessTokenBytes int // default: 48

	// SessionKeyBytes is the number of leading decoded bytes of a bearer
	// token that form the public session key.
	SessionKeyBytes int // default: 24

	// DeployIDLength is the maximum accepted length of a deploy id tag.
	DeployIDLength int // default: 32

	// AuthCodeExpireSeconds is the fixed TTL of authorization codes.
	AuthCodeExpireSeconds int64 // default: 600 (10 minutes)
}

// DefaultConfig returns a Config populated with the default token geometry.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.ClientIDLength == 0 {
		c.ClientIDLength = 120
	}
	if c.ScopeLength == 0 {
		c.ScopeLength = 200
	}
	if c.AuthCodeBytes == 0 {
		c.AuthCodeBytes = 24
	}
	if c.AccessTokenBytes == 0 {
		c.AccessTokenBytes = 48
	}
	if c.SessionKeyBytes == 0 {
		c.SessionKeyBytes = 24
	}
	if c.DeployIDLength == 0 {
		c.DeployIDLength = 32
	}
	if c.AuthCodeExpireSeconds == 0 {
		c.AuthCodeExpireSeconds = 600
	}
}

// Validate checks the geometry for internal consistency. A configuration
// where the secret portion of a bearer token would be empty is rejected:
// without a secret, possession of the public session key alone would grant
// access.
func (c *Config) Validate() error {
	if c.AuthCodeBytes <= 0 {
		return fmt.Errorf("AuthCodeBytes must be positive, got %d", c.AuthCodeBytes)
	}
	if c.SessionKeyBytes <= 0 {
		return fmt.Errorf("SessionKeyBytes must be positive, got %d", c.SessionKeyBytes)
	}
	if c.AccessTokenBytes <= c.SessionKeyBytes {
		return fmt.Errorf("AccessTokenBytes (%d) must exceed SessionKeyBytes (%d): the remainder is the token secret",
			c.AccessTokenBytes, c.SessionKeyBytes)
	}
	if c.AuthCodeExpireSeconds <= 0 {
		return fmt.Errorf("AuthCodeExpireSeconds must be positive, got %d", c.AuthCodeExpireSeconds)
	}
	return nil
}

// AuthCodeLength is the encoded length of an authorization code string.
func (c *Config) AuthCodeLength() int {
	return base64.RawURLEncoding.EncodedLen(c.AuthCodeBytes)
}

// AccessTokenLength is the encoded length of a bearer access token string.
func (c *Config) AccessTokenLength() int {
	return base64.RawURLEncoding.EncodedLen(c.AccessTokenBytes)
}

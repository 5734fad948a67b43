package fulmine

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestNewBearerToken(t *testing.T) {
	token, err := NewBearerToken(48)
	if err != nil {
		t.Fatalf("NewBearerToken() error = %v", err)
	}
	if got := len(token); got != base64.RawURLEncoding.EncodedLen(48) {
		t.Errorf("token length = %d, want %d", got, base64.RawURLEncoding.EncodedLen(48))
	}
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token %q contains non-URL-safe characters", token)
	}

	other, err := NewBearerToken(48)
	if err != nil {
		t.Fatalf("NewBearerToken() error = %v", err)
	}
	if token == other {
		t.Error("two generated tokens are identical")
	}
}

func TestNewBearerToken_InvalidLength(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewBearerToken(n); err == nil {
			t.Errorf("NewBearerToken(%d) should return error", n)
		}
	}
}

func TestParseBearer(t *testing.T) {
	token, err := NewBearerToken(48)
	if err != nil {
		t.Fatalf("NewBearerToken() error = %v", err)
	}

	sessionKey, secret, err := ParseBearer(token, 24)
	if err != nil {
		t.Fatalf("ParseBearer() error = %v", err)
	}
	if got := len(sessionKey); got != base64.RawURLEncoding.EncodedLen(24) {
		t.Errorf("session key length = %d, want %d", got, base64.RawURLEncoding.EncodedLen(24))
	}
	if got := len(secret); got != base64.RawURLEncoding.EncodedLen(24) {
		t.Errorf("secret length = %d, want %d", got, base64.RawURLEncoding.EncodedLen(24))
	}

	// The two halves reassemble into the original token
	rawKey, err := base64.RawURLEncoding.DecodeString(sessionKey)
	if err != nil {
		t.Fatalf("decoding session key: %v", err)
	}
	rawSecret, err := base64.RawURLEncoding.DecodeString(secret)
	if err != nil {
		t.Fatalf("decoding secret: %v", err)
	}
	reassembled := base64.RawURLEncoding.EncodeToString(append(rawKey, rawSecret...))
	if reassembled != token {
		t.Errorf("reassembled halves = %q, want %q", reassembled, token)
	}
}

func TestParseBearer_Malformed(t *testing.T) {
	short, err := NewBearerToken(24)
	if err != nil {
		t.Fatalf("NewBearerToken() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!not-base64!!"},
		{"padded base64", "YWJjZA=="},
		{"empty", ""},
		{"exactly session key length", short},
		{"shorter than session key", "c2hvcnQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseBearer(tt.token, 24); !errors.Is(err, ErrMalformedBearerToken) {
				t.Errorf("ParseBearer(%q) error = %v, want ErrMalformedBearerToken", tt.token, err)
			}
		})
	}
}

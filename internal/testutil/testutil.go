// Package testutil provides testing utilities and helpers for the fulmine library.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zenweasel/fulmine/storage"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.now = t
}

// GenerateTestGrant creates a test authorization grant
func GenerateTestGrant() *storage.AuthorizationGrant {
	now := time.Now()
	return &storage.AuthorizationGrant{
		ID:          uuid.NewString(),
		ClientID:    "test-client-id",
		UserID:      "test-user-123",
		AuthBackend: "test.backends.TestBackend",
		Scope:       []string{"read", "write"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// GenerateTestAuthCode creates a pending temporary grant bound to grant
func GenerateTestAuthCode(grant *storage.AuthorizationGrant) *storage.TemporaryGrant {
	now := time.Now()
	return &storage.TemporaryGrant{
		Code:        GenerateRandomString(32),
		GrantID:     grant.ID,
		ClientID:    grant.ClientID,
		Scope:       grant.Scope,
		RedirectURI: "https://example.com/callback",
		State:       "test-state",
		DeployID:    GenerateRandomString(32),
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}
}

// GenerateTestRefreshToken creates a test refresh token bound to grant
func GenerateTestRefreshToken(grant *storage.AuthorizationGrant) *storage.RefreshToken {
	return &storage.RefreshToken{
		Token:     GenerateRandomString(64),
		GrantID:   grant.ID,
		DeployID:  GenerateRandomString(32),
		Scope:     grant.Scope,
		CreatedAt: time.Now(),
	}
}

// GenerateTestSession creates a test session bound to grant
func GenerateTestSession(grant *storage.AuthorizationGrant) *storage.Session {
	now := time.Now()
	return &storage.Session{
		SecretHash:  "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy", // hash of "secret"
		ClientID:    grant.ClientID,
		DeployID:    GenerateRandomString(32),
		UserID:      grant.UserID,
		AuthBackend: grant.AuthBackend,
		Scope:       grant.Scope,
		GrantID:     grant.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(1 * time.Hour),
	}
}

// GenerateRandomString generates a random base64-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertScopeEqual fails the test if the two scope lists differ
func AssertScopeEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("scope = %v, want %v", got, want)
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("scope = %v, want %v", got, want)
			return
		}
	}
}

package server

import (
	"io"
	"log/slog"
	"testing"

	"github.com/zenweasel/fulmine"
	"github.com/zenweasel/fulmine/storage/memory"
)

const (
	testClientID    = "test-client-id"
	testUserID      = "test-user-123"
	testAuthBackend = "accounts.backends.ModelBackend"
	testDeployID    = "test-deploy-id"
	testRedirectURI = "https://app.example.com/cb"
)

// newTestServer builds a server backed by a fresh in-memory store. The
// store's cleanup goroutine is stopped automatically.
func newTestServer(t *testing.T, config *Config) (*Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Stop)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store.SetLogger(logger)

	srv, err := New(store, store, store, store, config, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, store
}

func TestNew_RequiredStores(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	tests := []struct {
		name string
		fn   func() (*Server, error)
	}{
		{"nil grant store", func() (*Server, error) { return New(nil, store, store, store, nil, nil) }},
		{"nil code store", func() (*Server, error) { return New(store, nil, store, store, nil, nil) }},
		{"nil refresh store", func() (*Server, error) { return New(store, store, nil, store, nil, nil) }},
		{"nil session store", func() (*Server, error) { return New(store, store, store, nil, nil, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); err == nil {
				t.Error("New() should return error")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if srv.Config.AuthCodeTTL != 600 {
		t.Errorf("AuthCodeTTL = %d, want 600", srv.Config.AuthCodeTTL)
	}
	if srv.Config.AccessTokenTTL != 3600 {
		t.Errorf("AccessTokenTTL = %d, want 3600", srv.Config.AccessTokenTTL)
	}
	if !srv.Config.IssueRefreshTokens {
		t.Error("IssueRefreshTokens should default to true")
	}
	if srv.Config.RotateRefreshTokens {
		t.Error("RotateRefreshTokens should default to false")
	}
	if srv.Config.MaxGenerateRetries != 5 {
		t.Errorf("MaxGenerateRetries = %d, want 5", srv.Config.MaxGenerateRetries)
	}
	if srv.Config.Tokens == nil {
		t.Fatal("Tokens config should be populated")
	}
	if srv.Config.Tokens.SessionKeyBytes != 24 {
		t.Errorf("SessionKeyBytes = %d, want 24", srv.Config.Tokens.SessionKeyBytes)
	}
}

func TestNew_InvalidTokenGeometry(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	// A bearer token whose secret portion would be empty is rejected
	config := &Config{
		Tokens: &fulmine.Config{
			AccessTokenBytes: 24,
			SessionKeyBytes:  24,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(store, store, store, store, config, logger); err == nil {
		t.Error("New() should reject AccessTokenBytes <= SessionKeyBytes")
	}
}

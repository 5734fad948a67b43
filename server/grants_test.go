package server

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/zenweasel/fulmine"
	"github.com/zenweasel/fulmine/storage"
)

func TestServer_GetOrCreateGrant_Idempotent(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	grant, created, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}
	if !created {
		t.Error("first call created = false, want true")
	}

	again, created, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() second call error = %v", err)
	}
	if created {
		t.Error("second call created = true, want false")
	}
	if again.ID != grant.ID {
		t.Errorf("grant ID = %q, want %q (same pair must yield same grant)", again.ID, grant.ID)
	}
}

func TestServer_GetOrCreateGrant_ScopeUpdatePolicy(t *testing.T) {
	srv, store := newTestServer(t, nil)
	ctx := context.Background()

	grant, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}

	// Default policy is union: a repeat request with a different scope
	// widens the grant instead of creating a second one
	updated, created, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"write"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}
	if created {
		t.Error("repeat request should not create a second grant")
	}
	if updated.ID != grant.ID {
		t.Errorf("grant ID = %q, want %q", updated.ID, grant.ID)
	}
	if !fulmine.ScopeEqual(updated.Scope, []string{"read", "write"}) {
		t.Errorf("scope = %v, want union [read write]", updated.Scope)
	}

	// The update is persisted
	stored, err := store.GetGrant(ctx, grant.ID)
	if err != nil {
		t.Fatalf("GetGrant() error = %v", err)
	}
	if !fulmine.ScopeEqual(stored.Scope, []string{"read", "write"}) {
		t.Errorf("stored scope = %v, want union [read write]", stored.Scope)
	}
}

func TestServer_GetOrCreateGrant_CustomScopePolicy(t *testing.T) {
	config := &Config{
		// Re-confirm policy: keep the newly requested scope verbatim
		ScopeUpdatePolicy: func(existing, requested []string) []string {
			return requested
		},
	}
	srv, _ := newTestServer(t, config)
	ctx := context.Background()

	if _, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read", "write"}); err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}

	updated, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}
	if !fulmine.ScopeEqual(updated.Scope, []string{"read"}) {
		t.Errorf("scope = %v, want [read] per custom policy", updated.Scope)
	}
}

func TestServer_GetOrCreateGrant_Validation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	if _, _, err := srv.GetOrCreateGrant(ctx, "", testUserID, testAuthBackend, nil); err == nil {
		t.Error("GetOrCreateGrant() without client should return error")
	}
	if _, _, err := srv.GetOrCreateGrant(ctx, testClientID, "", testAuthBackend, nil); err == nil {
		t.Error("GetOrCreateGrant() without user should return error")
	}
	if _, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"bad scope"}); err == nil {
		t.Error("GetOrCreateGrant() with malformed scope token should return error")
	}
}

func TestServer_MintAccessToken_ScopeNarrowing(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	grant, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read", "write"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}

	tests := []struct {
		name      string
		requested []string
		want      []string
	}{
		{"no requested scope uses grant scope", nil, []string{"read", "write"}},
		{"subset narrows", []string{"read"}, []string{"read"}},
		{"excess tokens dropped", []string{"read", "admin"}, []string{"read"}},
		{"disjoint collapses to empty", []string{"admin"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, scope, err := srv.MintAccessToken(ctx, grant, 3600, testDeployID, tt.requested)
			if err != nil {
				t.Fatalf("MintAccessToken() error = %v", err)
			}
			if token.AccessToken == "" {
				t.Error("empty access token")
			}
			if !fulmine.ScopeContains(grant.Scope, scope) {
				t.Errorf("effective scope %v exceeds grant scope %v", scope, grant.Scope)
			}
			if !fulmine.ScopeEqual(scope, tt.want) {
				t.Errorf("scope = %v, want %v", scope, tt.want)
			}
		})
	}
}

func TestServer_MintAccessToken_RevokedGrant(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	grant, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}
	if err := srv.RevokeGrant(ctx, grant.ID); err != nil {
		t.Fatalf("RevokeGrant() error = %v", err)
	}

	grant.Revoked = true
	if _, _, err := srv.MintAccessToken(ctx, grant, 3600, testDeployID, nil); !errors.Is(err, storage.ErrGrantRevoked) {
		t.Errorf("MintAccessToken() error = %v, want ErrGrantRevoked", err)
	}
}

func TestServer_Authenticate(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	grant, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}

	token, _, err := srv.MintAccessToken(ctx, grant, 3600, testDeployID, nil)
	if err != nil {
		t.Fatalf("MintAccessToken() error = %v", err)
	}

	session, err := srv.Authenticate(ctx, token.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if session.UserID != testUserID {
		t.Errorf("UserID = %q, want %q", session.UserID, testUserID)
	}
	if session.GrantID != grant.ID {
		t.Errorf("GrantID = %q, want %q", session.GrantID, grant.ID)
	}
	if !fulmine.ScopeEqual(session.Scope, []string{"read"}) {
		t.Errorf("Scope = %v, want [read]", session.Scope)
	}
}

func TestServer_Authenticate_Failures(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	grant, _, err := srv.GetOrCreateGrant(ctx, testClientID, testUserID, testAuthBackend, []string{"read"})
	if err != nil {
		t.Fatalf("GetOrCreateGrant() error = %v", err)
	}
	token, _, err := srv.MintAccessToken(ctx, grant, 3600, testDeployID, nil)
	if err != nil {
		t.Fatalf("MintAccessToken() error = %v", err)
	}

	// A well-formed token for a session that was never created
	forged, err := fulmine.NewBearerToken(srv.Config.Tokens.AccessTokenBytes)
	if err != nil {
		t.Fatalf("NewBearerToken() error = %v", err)
	}

	// A token carrying the real session key but a zeroed secret: the
	// public half alone must grant nothing
	raw, err := base64.RawURLEncoding.DecodeString(token.AccessToken)
	if err != nil {
		t.Fatalf("decoding access token: %v", err)
	}
	for i := srv.Config.Tokens.SessionKeyBytes; i < len(raw); i++ {
		raw[i] = 0
	}
	wrongSecret := base64.RawURLEncoding.EncodeToString(raw)

	tests := []struct {
		name   string
		bearer string
	}{
		{"not base64", "!!not-base64!!"},
		{"too short", "c2hvcnQ"},
		{"unknown session", forged},
		{"wrong secret", wrongSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := srv.Authenticate(ctx, tt.bearer); err == nil {
				t.Error("Authenticate() should return error")
			}
		})
	}
}

package server

import (
	"io"
	"log/slog"
	"testing"
)

func TestApplySecurityDefaults_FreshConfigHeuristic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fresh := &Config{}
	applySecureDefaults(fresh, logger)
	if !fresh.IssueRefreshTokens {
		t.Error("fresh config should default IssueRefreshTokens to true")
	}

	// Rotation explicitly set marks the config as deliberate: issuance stays
	// off as configured
	deliberate := &Config{RotateRefreshTokens: true}
	applySecureDefaults(deliberate, logger)
	if deliberate.IssueRefreshTokens {
		t.Error("explicitly configured IssueRefreshTokens=false was overridden")
	}
}

func TestApplySecureDefaults_PoliciesFilled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	config := &Config{}
	applySecureDefaults(config, logger)

	if config.RedirectURIPolicy == nil {
		t.Fatal("RedirectURIPolicy not defaulted")
	}
	if config.ScopeUpdatePolicy == nil {
		t.Fatal("ScopeUpdatePolicy not defaulted")
	}
	if got := config.ScopeUpdatePolicy([]string{"read"}, []string{"write"}); len(got) != 2 {
		t.Errorf("default scope update policy = %v, want union of both scopes", got)
	}
	if config.Tokens == nil {
		t.Fatal("Tokens geometry not defaulted")
	}
}

func TestDefaultRedirectURIPolicy(t *testing.T) {
	tests := []struct {
		name        string
		redirectURI string
		want        bool
	}{
		{"https", "https://app.example.com/cb", true},
		{"http", "http://localhost:8080/cb", true},
		{"with query", "https://app.example.com/cb?x=1", true},
		{"custom scheme", "myapp://cb", false},
		{"relative", "/cb", false},
		{"no host", "https:///cb", false},
		{"fragment", "https://app.example.com/cb#frag", false},
		{"empty", "", false},
		{"garbage", "://nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultRedirectURIPolicy("any-client", tt.redirectURI); got != tt.want {
				t.Errorf("defaultRedirectURIPolicy(%q) = %v, want %v", tt.redirectURI, got, tt.want)
			}
		})
	}
}

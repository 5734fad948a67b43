package server

import (
	"log/slog"
	"net/url"

	"github.com/zenweasel/fulmine"
)

// RedirectURIPolicy decides whether a client owns a redirect URI. The
// authorization flow refuses to redirect anywhere the policy rejects.
type RedirectURIPolicy func(clientID, redirectURI string) bool

// ScopeUpdatePolicy decides the new scope of an existing grant when a repeat
// authorization request arrives with a different scope.
type ScopeUpdatePolicy func(existing, requested []string) []string

// Config holds server configuration
type Config struct {
	// AuthCodeTTL is the lifetime of authorization codes in seconds.
	// Default: 600 (10 minutes)
	AuthCodeTTL int64

	// AccessTokenTTL is the default lifetime of access tokens in seconds.
	// Default: 3600 (1 hour)
	AccessTokenTTL int64

	// IssueRefreshTokens controls whether a refresh token accompanies the
	// access token at code exchange.
	// Default: true
	IssueRefreshTokens bool

	// RotateRefreshTokens controls whether a refresh causes the presented
	// refresh token to be revoked and replaced. When false, the same refresh
	// token keeps minting access tokens.
	// Default: false
	RotateRefreshTokens bool

	// MaxGenerateRetries caps the regeneration attempts when a freshly
	// generated code/token/session key collides with an existing one.
	// Exhaustion is a configuration error: the byte length is too short.
	// Default: 5
	MaxGenerateRetries int

	// ClockSkewGracePeriod is the tolerance in seconds applied to expiry
	// comparisons, absorbing clock drift between cooperating hosts.
	// Default: 5
	ClockSkewGracePeriod int64

	// RedirectURIPolicy is the redirect-URI-ownership check applied during
	// request validation. When nil a structural default is used that accepts
	// any well-formed absolute http(s) URI without a fragment; production
	// deployments must supply a real allow-list.
	RedirectURIPolicy RedirectURIPolicy

	// ScopeUpdatePolicy decides how a repeat authorization request changes
	// an existing grant's scope. When nil the union of both scopes is kept.
	ScopeUpdatePolicy ScopeUpdatePolicy

	// Tokens is the token geometry (byte lengths, bearer split point).
	// When nil, fulmine.DefaultConfig() is used.
	Tokens *fulmine.Config
}

// applySecureDefaults applies secure-by-default configuration values
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	applyTimeDefaults(config)
	applySecurityDefaults(config, logger)
	return config
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AuthCodeTTL == 0 {
		config.AuthCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.MaxGenerateRetries == 0 {
		config.MaxGenerateRetries = 5
	}
	if config.ClockSkewGracePeriod == 0 {
		config.ClockSkewGracePeriod = 5
	}
	if config.Tokens == nil {
		config.Tokens = fulmine.DefaultConfig()
	} else {
		config.Tokens.ApplyDefaults()
	}
}

// applySecurityDefaults sets secure defaults for security-related configuration.
// Uses a heuristic to detect if config is new (all security bools false) vs
// explicitly configured.
func applySecurityDefaults(config *Config, logger *slog.Logger) {
	// Heuristic: if both token-issuance bools are false, it's likely a fresh config
	isDefaultConfig := !config.IssueRefreshTokens && !config.RotateRefreshTokens

	if isDefaultConfig {
		config.IssueRefreshTokens = true
	}
	if config.ScopeUpdatePolicy == nil {
		config.ScopeUpdatePolicy = fulmine.ScopeUnion
	}
	if config.RedirectURIPolicy == nil {
		config.RedirectURIPolicy = defaultRedirectURIPolicy
		logger.Warn("SECURITY WARNING: no redirect URI policy configured",
			"risk", "Open redirect if clients are not bound to their URIs",
			"behavior", "Accepting any well-formed absolute http(s) URI",
			"recommendation", "Supply Config.RedirectURIPolicy with a per-client allow-list")
	}

	logSecurityWarnings(config, logger)
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if !config.RotateRefreshTokens {
		logger.Warn("SECURITY NOTICE: refresh token rotation is DISABLED",
			"risk", "A stolen refresh token stays valid until revoked",
			"recommendation", "Set RotateRefreshTokens=true to make refresh tokens single-use")
	}
	if config.AccessTokenTTL > 86400 {
		logger.Warn("SECURITY NOTICE: access token TTL exceeds 24 hours",
			"ttl_seconds", config.AccessTokenTTL,
			"recommendation", "Prefer short-lived access tokens with refresh")
	}
}

// defaultRedirectURIPolicy is the structural fallback check: any well-formed
// absolute http(s) URI without a fragment passes. It binds nothing to the
// client and exists only so development setups work out of the box.
func defaultRedirectURIPolicy(clientID, redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	if u.Host == "" || u.Fragment != "" {
		return false
	}
	return true
}

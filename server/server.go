package server

import (
	"fmt"
	"log/slog"

	"github.com/zenweasel/fulmine/instrumentation"
	"github.com/zenweasel/fulmine/internal/util"
	"github.com/zenweasel/fulmine/security"
	"github.com/zenweasel/fulmine/storage"
)

// credentialLogLength is the number of characters of a credential included in
// debug logs. Enough uniqueness for correlation without exposing the value.
const credentialLogLength = 8

// Server implements the grant/token lifecycle logic (transport-agnostic).
// It coordinates the storage backends and enforces the single-use, expiry
// and scope-subset invariants.
type Server struct {
	grants        storage.GrantStore
	codes         storage.AuthCodeStore
	refreshTokens storage.RefreshTokenStore
	sessions      storage.SessionStore

	Auditor                  *security.Auditor
	SecurityEventRateLimiter *security.RateLimiter // rate limiter for security event logging (DoS prevention)
	Logger                   *slog.Logger
	Config                   *Config

	instrumentation *instrumentation.Instrumentation
}

// New creates a new authorization server
func New(
	grants storage.GrantStore,
	codes storage.AuthCodeStore,
	refreshTokens storage.RefreshTokenStore,
	sessions storage.SessionStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if grants == nil {
		return nil, fmt.Errorf("grant store is required")
	}
	if codes == nil {
		return nil, fmt.Errorf("auth code store is required")
	}
	if refreshTokens == nil {
		return nil, fmt.Errorf("refresh token store is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Apply secure defaults
	config = applySecureDefaults(config, logger)

	if err := config.Tokens.Validate(); err != nil {
		return nil, fmt.Errorf("invalid token geometry: %w", err)
	}

	return &Server{
		grants:        grants,
		codes:         codes,
		refreshTokens: refreshTokens,
		sessions:      sessions,
		Config:        config,
		Logger:        logger,
	}, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetSecurityEventRateLimiter sets the rate limiter for security event logging.
// This prevents DoS attacks via log flooding from repeated security events.
func (s *Server) SetSecurityEventRateLimiter(rl *security.RateLimiter) {
	s.SecurityEventRateLimiter = rl
}

// SetInstrumentation sets OpenTelemetry instrumentation for the server
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
}

// metrics returns the metrics holder, or nil when instrumentation is not set
func (s *Server) metrics() *instrumentation.Metrics {
	if s.instrumentation == nil {
		return nil
	}
	return s.instrumentation.Metrics()
}

// allowSecurityEvent reports whether a security event for identifier is
// within its logging rate budget.
func (s *Server) allowSecurityEvent(identifier string) bool {
	return s.SecurityEventRateLimiter == nil || s.SecurityEventRateLimiter.Allow(identifier)
}

// safeTruncate is a logging helper re-exported for this package
func safeTruncate(v string, maxLen int) string {
	return util.SafeTruncate(v, maxLen)
}

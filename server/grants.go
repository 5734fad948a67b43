package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/zenweasel/fulmine"
	"github.com/zenweasel/fulmine/security"
	"github.com/zenweasel/fulmine/storage"
)

// GetOrCreateGrant returns the standing grant for (clientID, userID),
// creating it with requestedScope if none exists. For an existing grant a
// differing requested scope triggers the configured scope update policy
// rather than silently widening scope. The boolean reports creation.
func (s *Server) GetOrCreateGrant(ctx context.Context, clientID, userID, authBackend string, requestedScope []string) (*storage.AuthorizationGrant, bool, error) {
	if clientID == "" {
		return nil, false, fulmine.ErrInvalidClient("client_id is required")
	}
	if len(clientID) > s.Config.Tokens.ClientIDLength {
		return nil, false, fulmine.ErrInvalidClient("client_id too long")
	}
	if userID == "" {
		return nil, false, fmt.Errorf("user identity is required")
	}
	if _, err := fulmine.ParseScope(requestedScope); err != nil {
		return nil, false, fulmine.ErrInvalidScope(err.Error())
	}

	now := time.Now()
	candidate := &storage.AuthorizationGrant{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		UserID:      userID,
		AuthBackend: authBackend,
		Scope:       requestedScope,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	grant, created, err := s.grants.GetOrCreateGrant(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create grant: %w", err)
	}

	if created {
		s.Logger.Info("Created authorization grant",
			"grant_id", grant.ID,
			"client_id", clientID)
		if s.Auditor != nil {
			s.Auditor.LogGrantCreated(userID, clientID, grant.Scope)
		}
		if m := s.metrics(); m != nil {
			m.RecordGrantCreated(ctx, clientID)
		}
		return grant, true, nil
	}

	// Existing grant: apply the scope update policy when the request names a
	// different scope
	if len(requestedScope) > 0 && !fulmine.ScopeEqual(grant.Scope, requestedScope) {
		newScope := s.Config.ScopeUpdatePolicy(grant.Scope, requestedScope)
		if !fulmine.ScopeEqual(newScope, grant.Scope) {
			if err := s.grants.UpdateGrantScope(ctx, grant.ID, newScope); err != nil {
				return nil, false, fmt.Errorf("failed to update grant scope: %w", err)
			}
			grant.Scope = newScope

			s.Logger.Info("Updated grant scope",
				"grant_id", grant.ID,
				"client_id", clientID)
			if s.Auditor != nil {
				s.Auditor.LogEvent(security.Event{
					Type:     security.EventGrantScopeUpdated,
					UserID:   userID,
					ClientID: clientID,
					Details:  map[string]any{"scope": fulmine.ScopeCodec{}.Encode(newScope)},
				})
			}
			if m := s.metrics(); m != nil {
				m.RecordGrantScopeUpdated(ctx, clientID)
			}
		}
	}

	return grant, false, nil
}

// MintAccessToken generates a fresh bearer access token backed by a new
// session entry. The effective scope is the intersection of requestedScope
// and the grant's scope, or the full grant scope when requestedScope is
// empty. Session creation is fail-if-exists; a key collision is retried with
// fresh randomness up to MaxGenerateRetries.
func (s *Server) MintAccessToken(ctx context.Context, grant *storage.AuthorizationGrant, ttlSeconds int64, deployID string, requestedScope []string) (*oauth2.Token, []string, error) {
	if grant == nil {
		return nil, nil, fmt.Errorf("grant is required")
	}
	if grant.Revoked {
		return nil, nil, storage.ErrGrantRevoked
	}

	scope := grant.Scope
	if len(requestedScope) > 0 {
		scope = fulmine.ScopeIntersect(requestedScope, grant.Scope)
	}

	cfg := s.Config.Tokens
	now := time.Now()
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)

	for attempt := 0; attempt < s.Config.MaxGenerateRetries; attempt++ {
		token, err := fulmine.NewBearerToken(cfg.AccessTokenBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
		}

		sessionKey, secret, err := fulmine.ParseBearer(token, cfg.SessionKeyBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to split access token: %w", err)
		}

		secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to hash token secret: %w", err)
		}

		session := &storage.Session{
			SecretHash:  string(secretHash),
			ClientID:    grant.ClientID,
			DeployID:    deployID,
			UserID:      grant.UserID,
			AuthBackend: grant.AuthBackend,
			Scope:       scope,
			GrantID:     grant.ID,
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
		}

		err = s.sessions.CreateSession(ctx, sessionKey, session)
		if errors.Is(err, storage.ErrSessionExists) {
			// Key collision: retry with fresh randomness
			s.Logger.Warn("Session key collision, regenerating",
				"attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create session: %w", err)
		}

		s.Logger.Debug("Minted access token",
			"grant_id", grant.ID,
			"key_prefix", safeTruncate(sessionKey, credentialLogLength))

		return &oauth2.Token{
			AccessToken: token,
			TokenType:   "bearer",
			Expiry:      expiresAt,
		}, scope, nil
	}

	return nil, nil, fmt.Errorf("session key collisions exhausted %d retries: AccessTokenBytes (%d) is too short",
		s.Config.MaxGenerateRetries, cfg.AccessTokenBytes)
}

// RevokeGrant marks a grant revoked. Already-issued access and refresh
// tokens are not cascaded; the grant merely stops minting new credentials.
func (s *Server) RevokeGrant(ctx context.Context, grantID string) error {
	grant, err := s.grants.GetGrant(ctx, grantID)
	if err != nil {
		return err
	}

	if err := s.grants.RevokeGrant(ctx, grantID); err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogEvent(security.Event{
			Type:     security.EventGrantRevoked,
			UserID:   grant.UserID,
			ClientID: grant.ClientID,
		})
	}
	if m := s.metrics(); m != nil {
		m.RecordGrantRevoked(ctx, grant.ClientID)
	}

	return nil
}

// dummySecretHash is a pre-computed bcrypt hash ("test") compared when no
// session matches, so authentication takes the same time either way.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Authenticate resolves a bearer token to its session. The token's leading
// bytes locate the session; the remainder is verified against the stored
// bcrypt hash. All failures read the same externally.
func (s *Server) Authenticate(ctx context.Context, bearer string) (*storage.Session, error) {
	sessionKey, secret, err := fulmine.ParseBearer(bearer, s.Config.Tokens.SessionKeyBytes)
	if err != nil {
		s.Logger.Debug("Bearer token rejected", "reason", err.Error())
		if m := s.metrics(); m != nil {
			m.RecordAuthFailure(ctx, "malformed_token")
		}
		return nil, fulmine.ErrInvalidToken("invalid bearer token")
	}

	session, err := s.sessions.GetSession(ctx, sessionKey)

	// Always perform the bcrypt comparison to keep timing uniform
	hashToCompare := dummySecretHash
	if err == nil && session.SecretHash != "" {
		hashToCompare = session.SecretHash
	}
	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(secret))

	switch {
	case err != nil:
		s.Logger.Debug("Bearer token rejected",
			"reason", "session not found",
			"key_prefix", safeTruncate(sessionKey, credentialLogLength))
	case session.Revoked:
		s.Logger.Debug("Bearer token rejected",
			"reason", "session revoked",
			"key_prefix", safeTruncate(sessionKey, credentialLogLength))
	case security.IsExpiredWithGracePeriod(session.ExpiresAt, time.Duration(s.Config.ClockSkewGracePeriod)*time.Second):
		s.Logger.Debug("Bearer token rejected",
			"reason", "session expired",
			"key_prefix", safeTruncate(sessionKey, credentialLogLength))
	case bcryptErr != nil:
		s.Logger.Debug("Bearer token rejected",
			"reason", "secret mismatch",
			"key_prefix", safeTruncate(sessionKey, credentialLogLength))
	default:
		return session, nil
	}

	if s.Auditor != nil {
		clientID := ""
		if err == nil {
			clientID = session.ClientID
		}
		s.Auditor.LogAuthFailure("", clientID, "", "invalid_bearer_token")
	}
	if m := s.metrics(); m != nil {
		m.RecordAuthFailure(ctx, "invalid_bearer_token")
	}

	return nil, fulmine.ErrInvalidToken("invalid bearer token")
}

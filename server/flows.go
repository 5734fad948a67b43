package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/zenweasel/fulmine"
	"github.com/zenweasel/fulmine/security"
	"github.com/zenweasel/fulmine/storage"
)

// IssueAuthCode builds and persists a pending authorization code scoped to
// the grant's current scope. A primary-key collision on the generated code
// is retried with fresh randomness up to MaxGenerateRetries.
func (s *Server) IssueAuthCode(ctx context.Context, grant *storage.AuthorizationGrant, redirectURI, state, deployID string) (*storage.TemporaryGrant, error) {
	if grant == nil {
		return nil, fmt.Errorf("grant is required")
	}
	if grant.Revoked {
		return nil, storage.ErrGrantRevoked
	}
	if len(deployID) > s.Config.Tokens.DeployIDLength {
		return nil, fulmine.ErrInvalidRequest("deploy id too long")
	}

	now := time.Now()

	for attempt := 0; attempt < s.Config.MaxGenerateRetries; attempt++ {
		code, err := fulmine.NewBearerToken(s.Config.Tokens.AuthCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate authorization code: %w", err)
		}

		record := &storage.TemporaryGrant{
			Code:        code,
			GrantID:     grant.ID,
			ClientID:    grant.ClientID,
			Scope:       grant.Scope,
			RedirectURI: redirectURI,
			State:       state,
			DeployID:    deployID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Duration(s.Config.AuthCodeTTL) * time.Second),
		}

		err = s.codes.SaveAuthCode(ctx, record)
		if errors.Is(err, storage.ErrAuthCodeExists) {
			// Code collision: retry with fresh randomness
			s.Logger.Warn("Authorization code collision, regenerating",
				"attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save authorization code: %w", err)
		}

		s.Logger.Debug("Issued authorization code",
			"grant_id", grant.ID,
			"code_prefix", safeTruncate(code, credentialLogLength))

		if s.Auditor != nil {
			s.Auditor.LogEvent(security.Event{
				Type:     security.EventAuthCodeIssued,
				UserID:   grant.UserID,
				ClientID: grant.ClientID,
				DeployID: deployID,
			})
		}
		if m := s.metrics(); m != nil {
			m.RecordCodeIssued(ctx, grant.ClientID)
		}

		return record, nil
	}

	return nil, fmt.Errorf("authorization code collisions exhausted %d retries: AuthCodeBytes (%d) is too short",
		s.Config.MaxGenerateRetries, s.Config.Tokens.AuthCodeBytes)
}

// ExchangeAuthorizationCode atomically consumes an authorization code and
// emits tokens for it. All redemption failures surface the same generic
// error so a caller cannot probe which part of the presented tuple was
// wrong; the precise reason goes to the debug log.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, code, redirectURI, clientID, deployID string) (*oauth2.Token, []string, error) {
	authCode, err := s.codes.ConsumeAuthCode(ctx, code, redirectURI, clientID, deployID)
	if err != nil {
		// Reuse attempt: the code was already consumed. This indicates
		// interception or replay, so the owning grant stops minting.
		if errors.Is(err, storage.ErrAuthCodeConsumed) && authCode != nil {
			s.handleCodeReuse(ctx, authCode, clientID)
			return nil, nil, fulmine.ErrInvalidGrant("invalid grant")
		}

		// Other error (not found, expired, mismatch): log the reason for
		// debugging, return the generic error to the caller
		s.Logger.Debug("Authorization code redemption failed",
			"reason", err.Error(),
			"client_id", clientID,
			"code_prefix", safeTruncate(code, credentialLogLength))

		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, deployID, "invalid_authorization_code")
		}
		if m := s.metrics(); m != nil {
			m.RecordAuthFailure(ctx, "invalid_authorization_code")
		}
		return nil, nil, fulmine.ErrInvalidGrant("invalid grant")
	}

	// Code is now atomically consumed; no other request can redeem it
	if m := s.metrics(); m != nil {
		m.RecordCodeConsumed(ctx, clientID)
	}

	token, scope, err := s.EmitTokens(ctx, authCode)
	if err != nil {
		s.Logger.Debug("Token emission failed after code consumption",
			"reason", err.Error(),
			"client_id", clientID,
			"code_prefix", safeTruncate(code, credentialLogLength))

		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, deployID, "token_emission_failed")
		}
		return nil, nil, fulmine.ErrInvalidGrant("invalid grant")
	}

	return token, scope, nil
}

// handleCodeReuse runs the security response to a replayed authorization
// code: the owning grant is revoked so the attacker's earlier exchange stops
// yielding fresh credentials. Logging is rate limited per (grant, client) to
// prevent log flooding.
func (s *Server) handleCodeReuse(ctx context.Context, authCode *storage.TemporaryGrant, clientID string) {
	if s.allowSecurityEvent(authCode.GrantID + ":" + clientID) {
		s.Logger.Error("Authorization code reuse detected - revoking grant",
			"grant_id", authCode.GrantID,
			"client_id", clientID,
			"code_prefix", safeTruncate(authCode.Code, credentialLogLength))
	}

	if err := s.grants.RevokeGrant(ctx, authCode.GrantID); err != nil {
		s.Logger.Error("Failed to revoke grant after code reuse detection",
			"grant_id", authCode.GrantID,
			"error", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogEvent(security.Event{
			Type:     security.EventAuthCodeReuseDetected,
			ClientID: clientID,
			DeployID: authCode.DeployID,
			Details: map[string]any{
				"severity": "critical",
				"action":   "grant_revoked",
				"grant_id": authCode.GrantID,
			},
		})
	}
	if m := s.metrics(); m != nil {
		m.RecordCodeReuseDetected(ctx)
	}
}

// EmitTokens mints the access token (and optionally a refresh token) for a
// consumed authorization code. The emission itself is single-use: the second
// call for the same code fails with storage.ErrTokensEmitted.
func (s *Server) EmitTokens(ctx context.Context, authCode *storage.TemporaryGrant) (*oauth2.Token, []string, error) {
	if authCode == nil {
		return nil, nil, fmt.Errorf("authorization code is required")
	}

	// Atomic claim: exactly one emission per consumed code
	if err := s.codes.MarkTokensEmitted(ctx, authCode.Code); err != nil {
		return nil, nil, err
	}

	grant, err := s.grants.GetGrant(ctx, authCode.GrantID)
	if err != nil {
		return nil, nil, err
	}
	if grant.Revoked {
		return nil, nil, storage.ErrGrantRevoked
	}

	token, scope, err := s.MintAccessToken(ctx, grant, s.Config.AccessTokenTTL, authCode.DeployID, authCode.Scope)
	if err != nil {
		return nil, nil, err
	}

	withRefresh := s.Config.IssueRefreshTokens
	if withRefresh {
		refresh, err := s.createRefreshToken(ctx, grant.ID, authCode.DeployID, scope)
		if err != nil {
			return nil, nil, err
		}
		token.RefreshToken = refresh.Token
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(grant.UserID, grant.ClientID, authCode.DeployID, scope)
	}
	if m := s.metrics(); m != nil {
		m.RecordTokenIssued(ctx, grant.ClientID, withRefresh)
	}

	return token, scope, nil
}

// createRefreshToken generates and persists a refresh token bound to a
// grant, retrying on primary-key collision.
func (s *Server) createRefreshToken(ctx context.Context, grantID, deployID string, scope []string) (*storage.RefreshToken, error) {
	for attempt := 0; attempt < s.Config.MaxGenerateRetries; attempt++ {
		value, err := fulmine.NewBearerToken(s.Config.Tokens.AccessTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate refresh token: %w", err)
		}

		record := &storage.RefreshToken{
			Token:     value,
			GrantID:   grantID,
			DeployID:  deployID,
			Scope:     scope,
			CreatedAt: time.Now(),
		}

		err = s.refreshTokens.SaveRefreshToken(ctx, record)
		if errors.Is(err, storage.ErrRefreshTokenExists) {
			s.Logger.Warn("Refresh token collision, regenerating",
				"attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save refresh token: %w", err)
		}

		return record, nil
	}

	return nil, fmt.Errorf("refresh token collisions exhausted %d retries: AccessTokenBytes (%d) is too short",
		s.Config.MaxGenerateRetries, s.Config.Tokens.AccessTokenBytes)
}

// RefreshAccessToken mints a fresh access token from a refresh token. With
// RotateRefreshTokens enabled the presented token is atomically revoked
// first and a replacement carrying the same scope and deploy id accompanies
// the response; the replacement points at the original grant, keeping the
// rotation chain traceable to a single consent.
//
// A replayed (already-rotated) token fails with storage.ErrRefreshTokenRevoked;
// a token that never existed fails with the generic invalid_grant error.
func (s *Server) RefreshAccessToken(ctx context.Context, refreshToken, deployID string) (*oauth2.Token, []string, error) {
	rotate := s.Config.RotateRefreshTokens

	var rt *storage.RefreshToken
	var err error
	if rotate {
		// Atomic claim first: exactly one concurrent rotation wins
		rt, err = s.refreshTokens.ClaimRefreshToken(ctx, refreshToken, deployID)
	} else {
		rt, err = s.refreshTokens.FindRefreshable(ctx, refreshToken, deployID)
	}

	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenRevoked) {
			s.handleRefreshReuse(ctx, refreshToken, deployID)
			return nil, nil, fmt.Errorf("refresh failed: %w", storage.ErrRefreshTokenRevoked)
		}

		s.Logger.Debug("Refresh token lookup failed",
			"reason", err.Error(),
			"token_prefix", safeTruncate(refreshToken, credentialLogLength))

		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", "", deployID, "invalid_refresh_token")
		}
		if m := s.metrics(); m != nil {
			m.RecordAuthFailure(ctx, "invalid_refresh_token")
		}
		return nil, nil, fulmine.ErrInvalidGrant("invalid grant")
	}

	grant, err := s.grants.GetGrant(ctx, rt.GrantID)
	if err != nil {
		return nil, nil, fulmine.ErrInvalidGrant("invalid grant")
	}
	if grant.Revoked {
		return nil, nil, storage.ErrGrantRevoked
	}

	token, scope, err := s.MintAccessToken(ctx, grant, s.Config.AccessTokenTTL, deployID, rt.Scope)
	if err != nil {
		return nil, nil, err
	}

	if rotate {
		// Replacement descends from the original grant, not from the token
		// it replaces
		replacement, err := s.createRefreshToken(ctx, rt.GrantID, rt.DeployID, rt.Scope)
		if err != nil {
			return nil, nil, err
		}
		token.RefreshToken = replacement.Token
	} else {
		token.RefreshToken = rt.Token
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenRefreshed(grant.UserID, grant.ClientID, deployID, rotate)
	}
	if m := s.metrics(); m != nil {
		m.RecordTokenRefreshed(ctx, grant.ClientID, rotate)
	}

	return token, scope, nil
}

// handleRefreshReuse runs the security response to a replayed rotated
// refresh token, an indicator the token was stolen. Logging is rate limited
// per token prefix to prevent log flooding.
func (s *Server) handleRefreshReuse(ctx context.Context, refreshToken, deployID string) {
	prefix := safeTruncate(refreshToken, credentialLogLength)

	if s.allowSecurityEvent(prefix + ":" + deployID) {
		s.Logger.Error("Refresh token reuse detected",
			"token_prefix", prefix,
			"deploy_id", deployID)
	}

	if s.Auditor != nil {
		s.Auditor.LogEvent(security.Event{
			Type:     security.EventRefreshTokenReuseDetected,
			DeployID: deployID,
			Details: map[string]any{
				"severity": "critical",
			},
		})
	}
	if m := s.metrics(); m != nil {
		m.RecordRefreshReuseDetected(ctx)
	}
}

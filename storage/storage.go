package storage

import (
	"context"
	"time"
)

// AuthorizationGrant is a standing consent linking a client application and a
// user identity to an approved scope. Exactly one grant exists per
// (ClientID, UserID) pair over the record's lifetime; stores enforce this on
// creation. Grants are never hard-deleted by this subsystem, only revoked.
type AuthorizationGrant struct {
	ID          string
	ClientID    string
	UserID      string
	AuthBackend string
	Scope       []string
	Revoked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TemporaryGrant is an authorization code: a short-lived, single-use
// credential exchanged for tokens. The Code string is the primary key.
// ClientID is denormalized from the owning grant at issuance so redemption
// can match on it without a join.
//
// Consumed transitions false→true exactly once (the redemption claim);
// TokensEmitted transitions false→true exactly once afterwards (the emission
// claim), so a consumed code can emit tokens at most once.
type TemporaryGrant struct {
	Code          string
	GrantID       string
	ClientID      string
	Scope         []string
	RedirectURI   string
	State         string
	DeployID      string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Consumed      bool
	TokensEmitted bool
}

// RefreshToken is a longer-lived, single-use-per-rotation credential. The
// Token string is the primary key. GrantID always references the original
// AuthorizationGrant the rotation chain descends from, never a predecessor
// refresh token.
type RefreshToken struct {
	Token     string
	GrantID   string
	DeployID  string
	Scope     []string
	Revoked   bool
	CreatedAt time.Time
}

// Session is the ephemeral entry backing a bearer access token, stored under
// the token's public session key. SecretHash is a bcrypt hash of the token's
// secret half; the raw secret exists only inside the bearer string handed to
// the client.
type Session struct {
	SecretHash  string
	ClientID    string
	DeployID    string
	UserID      string
	AuthBackend string
	Scope       []string
	Revoked     bool
	GrantID     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// GrantStore persists authorization grants and enforces the
// one-grant-per-(client, user) invariant.
// All methods accept context.Context for tracing and cancellation.
type GrantStore interface {
	// GetOrCreateGrant stores candidate if no grant exists for its
	// (ClientID, UserID) pair, or returns the existing grant. The boolean
	// reports whether candidate was stored. The lookup-or-insert must be
	// atomic: two concurrent calls for the same pair yield the same grant.
	GetOrCreateGrant(ctx context.Context, candidate *AuthorizationGrant) (*AuthorizationGrant, bool, error)

	// GetGrant retrieves a grant by id.
	GetGrant(ctx context.Context, id string) (*AuthorizationGrant, error)

	// FindGrant retrieves a grant by its (client, user) pair.
	FindGrant(ctx context.Context, clientID, userID string) (*AuthorizationGrant, error)

	// UpdateGrantScope replaces the grant's scope.
	UpdateGrantScope(ctx context.Context, id string, scope []string) error

	// RevokeGrant marks the grant revoked. Already-issued tokens are not
	// cascaded; the grant merely stops minting new credentials.
	RevokeGrant(ctx context.Context, id string) error
}

// AuthCodeStore persists temporary grants (authorization codes).
// All methods accept context.Context for tracing and cancellation.
type AuthCodeStore interface {
	// SaveAuthCode persists a pending code. Returns ErrAuthCodeExists when
	// the generated code collides with an existing primary key.
	SaveAuthCode(ctx context.Context, code *TemporaryGrant) error

	// GetAuthCode retrieves a code without modifying it. Expired codes are
	// excluded.
	GetAuthCode(ctx context.Context, code string) (*TemporaryGrant, error)

	// ConsumeAuthCode atomically claims a code: it must be unconsumed,
	// unexpired, and match redirectURI, clientID and deployID exactly; the
	// consumed flag is flipped within the same atomic step. Exactly one of
	// any number of concurrent callers presenting the same valid code
	// succeeds; the rest receive ErrAuthCodeConsumed.
	// SECURITY: this operation MUST be atomic. Without it, two concurrent
	// redemptions of the same code can both succeed.
	ConsumeAuthCode(ctx context.Context, code, redirectURI, clientID, deployID string) (*TemporaryGrant, error)

	// MarkTokensEmitted atomically claims the emission step of a consumed
	// code. Returns ErrAuthCodeNotConsumed if the code was never consumed
	// and ErrTokensEmitted if emission was already claimed.
	MarkTokensEmitted(ctx context.Context, code string) error

	// DeleteAuthCode removes a code record.
	DeleteAuthCode(ctx context.Context, code string) error
}

// RefreshTokenStore persists refresh tokens and their rotation state.
// All methods accept context.Context for tracing and cancellation.
type RefreshTokenStore interface {
	// SaveRefreshToken persists a new refresh token. Returns
	// ErrRefreshTokenExists on a primary-key collision.
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// FindRefreshable retrieves the refresh token matching token and
	// deployID. A matching but revoked token yields ErrRefreshTokenRevoked;
	// anything else that does not match yields ErrRefreshTokenNotFound.
	FindRefreshable(ctx context.Context, token, deployID string) (*RefreshToken, error)

	// ClaimRefreshToken atomically revokes the matching unrevoked refresh
	// token and returns it. Exactly one of any number of concurrent callers
	// succeeds; the rest receive ErrRefreshTokenRevoked. This is the
	// synchronization point of the rotation chain.
	ClaimRefreshToken(ctx context.Context, token, deployID string) (*RefreshToken, error)
}

// SessionStore is the session backend that materializes access tokens.
// All methods accept context.Context for tracing and cancellation.
type SessionStore interface {
	// CreateSession stores a session under key with fail-if-exists
	// semantics: if any session already exists under key the call returns
	// ErrSessionExists and leaves the stored session untouched.
	CreateSession(ctx context.Context, key string, session *Session) error

	// GetSession retrieves a live (unexpired) session.
	GetSession(ctx context.Context, key string) (*Session, error)

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, key string) error

	// SetSessionExpiry updates a session's expiry.
	SetSessionExpiry(ctx context.Context, key string, expiresAt time.Time) error
}

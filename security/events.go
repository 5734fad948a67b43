package security

// Event type constants for security audit logging. Using constants keeps
// event names consistent across the codebase and greppable in log storage.
const (
	// Grant lifecycle events

	// EventGrantCreated is logged when a new authorization grant is created
	// for a (client, user) pair.
	EventGrantCreated = "grant_created"

	// EventGrantScopeUpdated is logged when a repeat authorization request
	// changes an existing grant's scope.
	EventGrantScopeUpdated = "grant_scope_updated"

	// EventGrantRevoked is logged when a grant is revoked.
	EventGrantRevoked = "grant_revoked"

	// Code lifecycle events

	// EventAuthCodeIssued is logged when an authorization code is issued.
	EventAuthCodeIssued = "auth_code_issued"

	// EventAuthCodeConsumed is logged when an authorization code is redeemed.
	EventAuthCodeConsumed = "auth_code_consumed"

	// EventAuthCodeReuseDetected is logged when an already-consumed code is
	// presented again (replay indicator).
	EventAuthCodeReuseDetected = "auth_code_reuse_detected"

	// Token lifecycle events

	// EventTokenIssued is logged when a bearer access token is minted.
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when an access token is minted from a
	// refresh token.
	EventTokenRefreshed = "token_refreshed"

	// EventRefreshTokenReuseDetected is logged when a revoked refresh token
	// is presented again (theft indicator).
	EventRefreshTokenReuseDetected = "refresh_token_reuse_detected" //nolint:gosec // event type name, not a credential

	// Failure events

	// EventAuthFailure is logged when validation or redemption fails.
	EventAuthFailure = "auth_failure"
)

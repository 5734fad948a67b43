package storage

import "errors"

// Sentinel errors returned by storage implementations. Callers match them
// with errors.Is; implementations may wrap them with additional context.
var (
	// ErrGrantNotFound indicates no grant exists for the given id or
	// (client, user) pair.
	ErrGrantNotFound = errors.New("authorization grant not found")

	// ErrGrantRevoked indicates the grant exists but has been revoked and
	// must not mint further codes or tokens.
	ErrGrantRevoked = errors.New("authorization grant revoked")

	// ErrAuthCodeNotFound indicates no code matched the presented tuple.
	ErrAuthCodeNotFound = errors.New("authorization code not found")

	// ErrAuthCodeExpired indicates the code matched but its TTL has elapsed.
	ErrAuthCodeExpired = errors.New("authorization code expired")

	// ErrAuthCodeConsumed indicates the code was already redeemed. Under
	// concurrent redemption exactly one caller wins; the rest observe this.
	ErrAuthCodeConsumed = errors.New("authorization code already consumed")

	// ErrAuthCodeNotConsumed indicates token emission was attempted on a
	// code that has not been claimed yet.
	ErrAuthCodeNotConsumed = errors.New("authorization code not consumed")

	// ErrRedirectURIMismatch indicates the code matched but was issued for a
	// different redirect URI.
	ErrRedirectURIMismatch = errors.New("redirect_uri mismatch")

	// ErrAuthCodeExists indicates a primary-key collision on a generated
	// code. Expected-rare; callers retry with fresh randomness.
	ErrAuthCodeExists = errors.New("authorization code already exists")

	// ErrTokensEmitted indicates tokens were already emitted for this code.
	ErrTokensEmitted = errors.New("tokens already emitted for this code")

	// ErrRefreshTokenNotFound indicates no unrevoked refresh token matched.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// ErrRefreshTokenRevoked indicates the refresh token was already rotated
	// or revoked and must never mint tokens again.
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")

	// ErrRefreshTokenExists indicates a primary-key collision on a generated
	// refresh token. Expected-rare; callers retry with fresh randomness.
	ErrRefreshTokenExists = errors.New("refresh token already exists")

	// ErrSessionExists indicates a session already exists under the derived
	// session key. Guards against key collision and session fixation; callers
	// retry with a freshly generated token.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound indicates no live session exists under the key.
	ErrSessionNotFound = errors.New("session not found")
)

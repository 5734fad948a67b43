// Package server implements the grant/token lifecycle of an OAuth2-style
// authorization server: issuing short-lived authorization codes, exchanging
// them for bearer access tokens, rotating refresh tokens, and enforcing
// scope narrowing and single-use/expiry semantics.
//
// The package is transport-agnostic. It coordinates the storage backends
// (GrantStore, AuthCodeStore, RefreshTokenStore, SessionStore) and relies on
// their atomic conditional updates for the safety-critical claims: code
// consumption, token emission, and refresh token rotation.
//
// Basic usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	srv, err := server.New(store, store, store, store, &server.Config{}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	grant, _, err := srv.GetOrCreateGrant(ctx, clientID, userID, backend, scope)
//	code, err := srv.IssueAuthCode(ctx, grant, redirectURI, state, deployID)
//	token, scope, err := srv.ExchangeAuthorizationCode(ctx, code.Code, redirectURI, clientID, deployID)
//	token, scope, err = srv.RefreshAccessToken(ctx, token.RefreshToken, deployID)
package server

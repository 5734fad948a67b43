// Package fulmine implements the grant and token lifecycle of an OAuth2-style
// authorization server: short-lived single-use authorization codes, bearer
// access tokens backed by session entries, and single-use refresh token
// rotation chains.
//
// The root package holds the pieces shared by every layer: the token geometry
// configuration (Config), the scope codec, the bearer token codec, and the
// OAuth error surface. Lifecycle orchestration lives in the server package,
// persistence contracts in the storage package.
package fulmine

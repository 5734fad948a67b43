// Package storage defines the record types and persistence contracts for the
// grant/token lifecycle: authorization grants, temporary grants (authorization
// codes), refresh tokens, and access-token sessions.
//
// Beyond plain CRUD the contracts require exactly one strong guarantee from a
// backend: atomic conditional update — flip a consumed/revoked flag from
// false to true only if it is currently false, and report whether the update
// won. Code consumption and refresh token rotation are built on it; without
// it, two concurrent redemptions of the same credential can both succeed.
// Session creation must likewise be fail-if-exists.
//
// An in-memory implementation suitable for development, testing and
// single-instance deployments is provided in storage/memory.
package storage

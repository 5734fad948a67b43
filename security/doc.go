// Package security provides the security primitives shared by the grant
// lifecycle: audit logging with PII hashing, per-identifier rate limiting for
// security event floods, expiry checks with clock-skew grace, and AES-GCM
// encryption of session fields at rest.
package security

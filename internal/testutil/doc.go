// Package testutil provides testing utilities and test fixtures for the
// fulmine library. It includes helpers for creating test records, assertions,
// and a mock time provider for deterministic expiry testing.
package testutil

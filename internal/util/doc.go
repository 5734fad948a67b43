// Package util provides small helpers shared across the fulmine library that
// don't belong to a domain-specific package.
package util

package fulmine

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultScopeSeparator is the delimiter used when a scope is persisted as a
// single text column.
const DefaultScopeSeparator = " "

// scopeTokenRE matches a single valid scope token: visible ASCII characters
// excluding space, double quote and backslash (RFC 6749 scope-token charset).
var scopeTokenRE = regexp.MustCompile(`^[!#-\[\]-~]+$`)

// ParseScope validates a set of scope tokens. It returns the tokens unchanged
// on success so callers can use it inline, or an error naming the first
// offending token.
func ParseScope(scope []string) ([]string, error) {
	for _, s := range scope {
		if !scopeTokenRE.MatchString(s) {
			return nil, fmt.Errorf("invalid scope token %q", s)
		}
	}
	return scope, nil
}

// ScopeCodec converts between the in-memory scope representation (a set of
// string tokens) and the delimited text form used at the storage boundary.
// The zero value uses DefaultScopeSeparator.
type ScopeCodec struct {
	Separator string
}

func (c ScopeCodec) separator() string {
	if c.Separator == "" {
		return DefaultScopeSeparator
	}
	return c.Separator
}

// Encode joins scope tokens into the delimited storage form. An empty scope
// encodes to the empty string.
func (c ScopeCodec) Encode(scope []string) string {
	return strings.Join(scope, c.separator())
}

// Decode splits the delimited storage form back into scope tokens. Empty
// input decodes to nil.
func (c ScopeCodec) Decode(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, c.separator())
}

// ScopeIntersect returns the tokens present in both a and b. Order follows a;
// duplicates are dropped. Used to narrow a requested scope to the grant's
// approved scope.
func ScopeIntersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	for _, s := range a {
		if in[s] {
			out = append(out, s)
			in[s] = false
		}
	}
	return out
}

// ScopeContains reports whether every token of sub is present in super.
func ScopeContains(super, sub []string) bool {
	in := make(map[string]bool, len(super))
	for _, s := range super {
		in[s] = true
	}
	for _, s := range sub {
		if !in[s] {
			return false
		}
	}
	return true
}

// ScopeUnion returns the tokens present in either a or b, preserving the
// order of first appearance.
func ScopeUnion(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ScopeEqual reports whether a and b contain the same tokens, ignoring order
// and duplicates.
func ScopeEqual(a, b []string) bool {
	return ScopeContains(a, b) && ScopeContains(b, a)
}

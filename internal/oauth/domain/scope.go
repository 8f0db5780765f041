package domain

import "strings"

// SplitScope splits a space-delimited scope string.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// JoinScope normalises scopes to a single space-delimited string.
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ScopeWithin reports whether every scope in requested also appears in
// allowed. An empty request is always within.
func ScopeWithin(requested, allowed string) bool {
	have := make(map[string]struct{})
	for _, s := range SplitScope(allowed) {
		have[s] = struct{}{}
	}
	for _, s := range SplitScope(requested) {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}

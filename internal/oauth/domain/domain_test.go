package domain_test

import (
	"testing"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/stretchr/testify/require"
)

func TestScopeWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		requested, allowed string
		want               bool
	}{
		{"", "", true},
		{"", "read", true},
		{"read", "read write", true},
		{"write read", "read  write", true},
		{"admin", "read write", false},
		{"read", "", false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, domain.ScopeWithin(tt.requested, tt.allowed), "%q within %q", tt.requested, tt.allowed)
	}
}

func TestClientRules(t *testing.T) {
	t.Parallel()

	open := domain.Client{ID: "open"}
	require.True(t, open.IsPublic())
	require.True(t, open.AllowsGrantType(domain.GrantTypePassword))

	restricted := domain.Client{
		ID:           "web",
		Secret:       "s",
		GrantTypes:   []string{domain.GrantTypeAuthorizationCode},
		RedirectURIs: []string{"https://app/cb"},
	}
	require.False(t, restricted.IsPublic())
	require.True(t, restricted.AllowsGrantType(domain.GrantTypeAuthorizationCode))
	require.False(t, restricted.AllowsGrantType(domain.GrantTypePassword))
	require.True(t, restricted.HasRedirectURI("https://app/cb"))
	require.False(t, restricted.HasRedirectURI("https://app/cb/"))
}

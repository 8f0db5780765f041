package store

import (
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

// SecretMatches applies the client secret rule shared by all drivers:
// hashed secrets are verified as passwords, anything else is compared in
// constant time.
func SecretMatches(c domain.Client, presented string) bool {
	if c.IsPublic() {
		return presented == ""
	}
	if cryptox.LooksHashed(c.Secret) {
		return cryptox.VerifyPassword(presented, c.Secret) == nil
	}
	return cryptox.ConstantTimeEqual(presented, c.Secret)
}

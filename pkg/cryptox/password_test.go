package cryptox

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

func TestMain(m *testing.M) {
	SetBcryptCost(MinBcryptCost)
	os.Exit(m.Run())
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash, err := HashPassword(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$2a$"), "expected bcrypt hash, got %q", hash)
			require.True(t, LooksHashed(hash))

			require.NoError(t, VerifyPassword(tt.password, hash))
			require.ErrorIs(t, VerifyPassword(tt.password+"x", hash), ErrMismatch)
		})
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	t.Parallel()

	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPasswordArgon2id(t *testing.T) {
	t.Parallel()

	hash := argon2idHash("legacy-secret", []byte("0123456789abcdef"))

	require.True(t, LooksHashed(hash))
	require.NoError(t, VerifyPassword("legacy-secret", hash))
	require.ErrorIs(t, VerifyPassword("wrong", hash), ErrMismatch)
	require.True(t, NeedsRehash(hash), "argon2id hashes are migrated to bcrypt")
}

func TestVerifyPasswordMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
	}{
		{"plain text", "hunter2"},
		{"empty", ""},
		{"argon2id wrong parts", "$argon2id$v=19$m=65536"},
		{"argon2id wrong version", "$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"argon2id bad salt", "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA"},
		{"argon2id zero time", "$argon2id$v=19$m=65536,t=0,p=2$c2FsdA$aGFzaA"},
		{"argon2id zero threads", "$argon2id$v=19$m=65536,t=3,p=0$c2FsdA$aGFzaA"},
		{"argon2id zero memory", "$argon2id$v=19$m=0,t=3,p=2$c2FsdA$aGFzaA"},
		{"argon2id huge memory", "$argon2id$v=19$m=4294967295,t=3,p=2$c2FsdA$aGFzaA"},
		{"argon2id empty hash", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, VerifyPassword("anything", tt.hash))
		})
	}

	require.ErrorIs(t, VerifyPassword("x", "hunter2"), ErrUnknownHash)
}

func TestNeedsRehash(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw")
	require.NoError(t, err)
	require.False(t, NeedsRehash(hash))
	require.True(t, NeedsRehash("$2a$04$abcdefghijklmnopqrstuuCCvkOGqWY9GhHCNAdFe3s3B/vk1q2mC"))
	require.True(t, NeedsRehash("not-a-hash"))
}

func TestLooksHashed(t *testing.T) {
	t.Parallel()

	require.True(t, LooksHashed("$2b$10$abc"))
	require.True(t, LooksHashed("$2y$10$abc"))
	require.False(t, LooksHashed("client-secret"))
	require.False(t, LooksHashed(""))
}

func TestConstantTimeEqual(t *testing.T) {
	t.Parallel()

	require.True(t, ConstantTimeEqual("abc", "abc"))
	require.False(t, ConstantTimeEqual("abc", "abd"))
	require.False(t, ConstantTimeEqual("abc", "abcd"))
}

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	a, err := GeneratePassword()
	require.NoError(t, err)
	require.Len(t, a, 16)

	b, err := GeneratePassword()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func argon2idHash(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, 1, 8*1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

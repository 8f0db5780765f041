package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinBcryptCost is the lowest cost HashPassword accepts.
	MinBcryptCost = 10
	// DefaultBcryptCost is used when no cost is configured.
	DefaultBcryptCost = 12
)

var (
	// ErrMismatch is returned when a password does not match its hash.
	ErrMismatch = errors.New("password does not match")
	// ErrUnknownHash is returned for hashes whose format is not recognised.
	ErrUnknownHash = errors.New("unknown password hash format")
)

var bcryptCost atomic.Int64

func init() {
	bcryptCost.Store(DefaultBcryptCost)
}

// SetBcryptCost changes the cost used for new hashes. Values below
// MinBcryptCost are raised to it.
func SetBcryptCost(cost int) {
	bcryptCost.Store(int64(max(cost, MinBcryptCost)))
}

// HashPassword returns a salted bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), int(bcryptCost.Load()))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks password against encodedHash using the parameters
// embedded in the hash itself. bcrypt ($2a$, $2b$, $2y$) and argon2id PHC
// strings are understood. It returns nil on a match.
func VerifyPassword(password, encodedHash string) error {
	switch {
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return err
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(password, encodedHash)
	default:
		return ErrUnknownHash
	}
}

// NeedsRehash reports whether encodedHash should be replaced by a fresh
// HashPassword result: any non-bcrypt hash, or bcrypt below the current cost.
func NeedsRehash(encodedHash string) bool {
	if !isBcrypt(encodedHash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return true
	}
	return int64(cost) < bcryptCost.Load()
}

// LooksHashed reports whether s is in a password hash format VerifyPassword
// understands. Used to tell hashed client secrets from plain ones.
func LooksHashed(s string) bool {
	return isBcrypt(s) || strings.HasPrefix(s, "$argon2id$")
}

// ConstantTimeEqual compares two strings without leaking where they differ.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// maxArgon2Memory caps the m parameter (KiB) a stored hash may request.
const maxArgon2Memory = 1 << 20

// verifyArgon2id checks a PHC string of the form
// $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func verifyArgon2id(password, encodedHash string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return errors.New("invalid hash format: expected 6 parts")
	}
	if parts[2] != "v=19" {
		return errors.New("invalid hash format: wrong version")
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("invalid hash format: failed to parse parameters: %w", err)
	}
	if iters == 0 || par == 0 || mem < 8*uint32(par) || mem > maxArgon2Memory {
		return fmt.Errorf("invalid hash format: parameters m=%d,t=%d,p=%d out of range", mem, iters, par)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("invalid hash format: failed to decode salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("invalid hash format: failed to decode hash: %w", err)
	}
	if len(salt) == 0 || len(expected) == 0 {
		return errors.New("invalid hash format: empty salt or hash")
	}

	computed := argon2.IDKey([]byte(password), salt, iters, mem, par, uint32(len(expected))) // #nosec G115
	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrMismatch
}

// GeneratePassword returns a random 16 character alphanumeric password for
// provisioning accounts from the command line.
func GeneratePassword() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 16
	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random password: %w", err)
		}
		password[i] = charset[n.Int64()]
	}
	return string(password), nil
}

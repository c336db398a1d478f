package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/efish/efish/internal/krypto"
)

const (
	minPasswordBytes = 8
	// We put a generous upper cap on password length, so people can use
	// passphrases but we don't allow MBs of data as a password.
	maxPasswordBytes = 512
)

var ErrInvalidPassword = fmt.Errorf("password must be between %d and %d bytes", minPasswordBytes, maxPasswordBytes)

// Password is a plaintext password.
//
// It should never be persisted, logged or exposed in any other way. To
// protect ourselves from accidentally doing so, the type implements
// several common interfaces that would allow it to be used inappropriately.
//
// The operations allowed on a Password are:
// - Converting it to a hash.
// - Comparing it with an existing hash to see if they match.
// - Comparing it with another password, to confirm it was typed correctly.
type Password struct {
	plain []byte
}

// ParsePassword creates a new Password from a plaintext string.
// It errors if the password is too short or too long.
func ParsePassword(pwd string) (Password, error) {
	if len(pwd) < minPasswordBytes || len(pwd) > maxPasswordBytes {
		return Password{}, ErrInvalidPassword
	}

	return Password{
		plain: []byte(pwd),
	}, nil
}

// IsZero reports whether p was never parsed.
func (p Password) IsZero() bool {
	return len(p.plain) == 0
}

// Match checks if the plaintext password matches the given hash.
func (p Password) Match(h krypto.Argon2Hash) bool {
	return h.MatchBytes(p.plain)
}

// Equal compares two passwords in constant time.
func (p Password) Equal(other Password) bool {
	return subtle.ConstantTimeCompare(p.plain, other.plain) == 1
}

// Hash hashes the plaintext password using the argon2id algorithm.
func (p Password) Hash() (krypto.Argon2Hash, error) {
	return krypto.HashArgon2(p.plain)
}

func (p Password) Format(f fmt.State, verb rune) {
	f.Write([]byte(krypto.SecretMarker))
}

func (p Password) MarshalText() ([]byte, error) {
	return []byte(krypto.SecretMarker), nil
}

// UnmarshalText parses the password, this allows forms to be decoded
// into types that contain a Password.
func (p *Password) UnmarshalText(text []byte) error {
	parsed, err := ParsePassword(string(text))
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}

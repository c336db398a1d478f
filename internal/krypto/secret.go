package krypto

import "fmt"

// Secret is arbitrary sensitive data that needs to be passed around
// but not exposed, like API tokens or SMTP passwords.
type Secret struct {
	value []byte
}

// NewSecret creates a new secret.
func NewSecret(raw string) Secret {
	if raw == "" {
		return Secret{}
	}

	return Secret{
		value: []byte(raw),
	}
}

// IsZero reports whether the secret holds no data.
func (s Secret) IsZero() bool {
	return len(s.value) == 0
}

func (s Secret) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// SecretValue returns the secret as a byte slice. This is provided
// as an escape hatch for cases where the key needs to be provided
// to third party packages or libraries.
func (s Secret) SecretValue() []byte {
	return s.value
}

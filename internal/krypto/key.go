package krypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen = 32

	// SecretMarker is a string we can look for in logs to see if the app
	// is accidentally exposing secrets.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var (
	ErrInvalidKey = errors.New("invalid key")
)

// Key is a 32 byte secret key. It redacts itself when formatted,
// marshalled or logged.
type Key struct {
	value []byte
}

// ParseKey expects a hex encoded key of 32 bytes (64 bytes as hex).
func ParseKey(raw string) (Key, error) {
	if len(raw) != keyLen*2 {
		return Key{}, ErrInvalidKey
	}

	k := make([]byte, keyLen)
	_, err := hex.Decode(k, []byte(raw))
	if err != nil {
		return Key{}, ErrInvalidKey
	}

	return Key{
		value: k,
	}, nil
}

// ParseKeys parses a comma separated list of hex encoded keys.
// Whitespace around each key is ignored.
func ParseKeys(raw string) ([]Key, error) {
	parts := strings.Split(raw, ",")
	keys := make([]Key, 0, len(parts))
	for i, p := range parts {
		k, err := ParseKey(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Derive derives a new key for the given purpose using HKDF-SHA256.
// Different purposes result in unrelated keys.
func (k Key) Derive(purpose string) (Key, error) {
	if k.IsZero() {
		return Key{}, ErrInvalidKey
	}

	r := hkdf.New(sha256.New, k.value, nil, []byte("efish "+purpose))
	out := make([]byte, keyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return Key{}, fmt.Errorf("failed to derive key: %w", err)
	}

	return Key{value: out}, nil
}

func (k Key) IsZero() bool {
	return len(k.value) == 0
}

func (k Key) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// SecretValue returns the key as a byte slice. This is provided
// as an escape hatch for cases where the key needs to be provided
// to third party packages or libraries.
func (k Key) SecretValue() []byte {
	return k.value
}

package krypto

import (
	"crypto/subtle"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidInput is returned when a hash can not be created or parsed.
var ErrInvalidInput = errors.New("invalid input")

const (
	argon2Variant = "argon2id"

	// Parameters as recommended by OWASP (46 MiB, 1 iteration, 1 thread).
	argon2MemoryKiB   = 46 * 1024
	argon2Iterations  = 1
	argon2Parallelism = 1
	argon2SaltLen     = 16
	argon2KeyLen      = 32
)

// Argon2Hash is an argon2id hash with the parameters and salt used
// to create it. Its text form is the PHC string format:
//
//	$argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
type Argon2Hash struct {
	Variant     string
	Version     int
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	Salt        []byte
	Hash        []byte
}

// HashArgon2 hashes d with a random salt.
func HashArgon2(d []byte) (Argon2Hash, error) {
	salt, err := randBytes(argon2SaltLen)
	if err != nil {
		return Argon2Hash{}, err
	}

	return hashArgon2(d, salt)
}

// HashArgon2WithKey hashes d using the key as salt. The output is
// deterministic, which makes it suitable as a blind index.
func HashArgon2WithKey(d []byte, key Key) (Argon2Hash, error) {
	return hashArgon2(d, key.value)
}

func hashArgon2(d, salt []byte) (Argon2Hash, error) {
	if len(d) == 0 {
		return Argon2Hash{}, fmt.Errorf("%w: nothing to hash", ErrInvalidInput)
	}

	return Argon2Hash{
		Variant:     argon2Variant,
		Version:     argon2.Version,
		MemoryKiB:   argon2MemoryKiB,
		Iterations:  argon2Iterations,
		Parallelism: argon2Parallelism,
		Salt:        salt,
		Hash:        argon2.IDKey(d, salt, argon2Iterations, argon2MemoryKiB, argon2Parallelism, argon2KeyLen),
	}, nil
}

// ParseArgon2Hash parses a hash in the PHC string format.
func ParseArgon2Hash(s string) (Argon2Hash, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Hash{}, fmt.Errorf("%w: expected 6 parts, got %d", ErrInvalidInput, len(parts))
	}

	if parts[1] != argon2Variant {
		return Argon2Hash{}, fmt.Errorf("%w: unsupported variant %q", ErrInvalidInput, parts[1])
	}

	h := Argon2Hash{
		Variant: parts[1],
	}

	_, err := fmt.Sscanf(parts[2], "v=%d", &h.Version)
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: failed to parse version: %w", ErrInvalidInput, err)
	}

	if h.Version != argon2.Version {
		return Argon2Hash{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidInput, h.Version)
	}

	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.MemoryKiB, &h.Iterations, &h.Parallelism)
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: failed to parse parameters: %w", ErrInvalidInput, err)
	}

	h.Salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: failed to decode salt: %w", ErrInvalidInput, err)
	}

	h.Hash, err = base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: failed to decode hash: %w", ErrInvalidInput, err)
	}

	return h, nil
}

// MatchBytes reports whether d hashes to h, in constant time.
func (h Argon2Hash) MatchBytes(d []byte) bool {
	if len(h.Hash) == 0 {
		return false
	}

	other := argon2.IDKey(d, h.Salt, h.Iterations, h.MemoryKiB, h.Parallelism, uint32(len(h.Hash)))
	return subtle.ConstantTimeCompare(h.Hash, other) == 1
}

func (h Argon2Hash) String() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.Variant, h.Version, h.MemoryKiB, h.Iterations, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Hash),
	)
}

func (h Argon2Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Argon2Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseArgon2Hash(string(text))
	if err != nil {
		return err
	}

	*h = parsed
	return nil
}

// Scan implements sql.Scanner.
func (h *Argon2Hash) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return h.UnmarshalText([]byte(v))
	case []byte:
		return h.UnmarshalText(v)
	default:
		return fmt.Errorf("can not scan %T into argon2 hash", src)
	}
}

// Value implements driver.Valuer.
func (h Argon2Hash) Value() (driver.Value, error) {
	return h.String(), nil
}

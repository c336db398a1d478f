package krypto_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/efish/efish/internal/krypto"
)

var (
	oldKey = must(krypto.ParseKey("2b671594b775f371eab4050b4d58326682df6b1a6cc2e886717b1a26b4d6c45d"))
	newKey = must(krypto.ParseKey("90303dfed7994260ea4817a5ca8a392915cd401115b2f97495dadfcbcd14adbf"))
)

func Test_NewEncryptor(t *testing.T) {
	for name, keys := range map[string][]krypto.Key{
		"fail, nil keys":   nil,
		"fail, empty keys": {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := krypto.NewEncryptor(keys)
			if err == nil {
				t.Fatalf("wanted error, got <nil>")
			}
		})
	}
}

func Test_Encryptor_RoundTrip(t *testing.T) {
	tests := map[string][]byte{
		"ok, single byte":    {0},
		"ok, email address":  []byte("alice@example.com"),
		"ok, non-ascii text": []byte("ik wil graag een taak toevoegen 🐟"),
		"ok, 1KiB":           bytes.Repeat([]byte{0xab}, 1024),
	}

	for name, plain := range tests {
		t.Run(name, func(t *testing.T) {
			enc := must(krypto.NewEncryptor([]krypto.Key{oldKey}))

			msg := must(enc.Encrypt(plain))
			if bytes.Contains(msg, plain) && len(plain) > 1 {
				t.Errorf("ciphertext contains the plain text")
			}

			got := must(enc.Decrypt(msg))
			if !bytes.Equal(got, plain) {
				t.Errorf("got %q, want %q", got, plain)
			}
		})
	}

	t.Run("ok, same input encrypts differently", func(t *testing.T) {
		enc := must(krypto.NewEncryptor([]krypto.Key{oldKey}))

		a := must(enc.Encrypt([]byte("alice@example.com")))
		b := must(enc.Encrypt([]byte("alice@example.com")))
		if bytes.Equal(a, b) {
			t.Errorf("expected a fresh nonce for every message")
		}
	})

	for name, plain := range map[string][]byte{"fail, nil": nil, "fail, empty": {}} {
		t.Run(name, func(t *testing.T) {
			enc := must(krypto.NewEncryptor([]krypto.Key{oldKey}))

			_, err := enc.Encrypt(plain)
			if !errors.Is(err, krypto.ErrInvalidData) {
				t.Errorf("got error %v, want %v (via errors.Is)", err, krypto.ErrInvalidData)
			}
		})
	}
}

func Test_Encryptor_KeyRotation(t *testing.T) {
	before := must(krypto.NewEncryptor([]krypto.Key{oldKey}))
	after := must(krypto.NewEncryptor([]krypto.Key{oldKey, newKey}))

	oldMsg := must(before.Encrypt([]byte("written before rotation")))
	newMsg := must(after.Encrypt([]byte("written after rotation")))

	t.Run("ok, old messages still decrypt", func(t *testing.T) {
		got := must(after.Decrypt(oldMsg))
		if string(got) != "written before rotation" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("ok, new messages use the last key", func(t *testing.T) {
		if idx := binary.BigEndian.Uint32(newMsg[:4]); idx != 1 {
			t.Errorf("got key index %d, want 1", idx)
		}

		got := must(after.Decrypt(newMsg))
		if string(got) != "written after rotation" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("fail, new messages are unknown before rotation", func(t *testing.T) {
		_, err := before.Decrypt(newMsg)
		if !errors.Is(err, krypto.ErrUnknownKey) {
			t.Errorf("got error %v, want %v (via errors.Is)", err, krypto.ErrUnknownKey)
		}
	})
}

func Test_Encryptor_Decrypt_Tampered(t *testing.T) {
	enc := must(krypto.NewEncryptor([]krypto.Key{oldKey}))
	msg := must(enc.Encrypt([]byte("my secret message")))

	tests := map[string]struct {
		mod     func([]byte) []byte
		wantErr error
	}{
		"fail, empty": {
			mod:     func([]byte) []byte { return nil },
			wantErr: krypto.ErrInvalidData,
		},
		"fail, only key index": {
			mod:     func(m []byte) []byte { return m[:4] },
			wantErr: krypto.ErrInvalidData,
		},
		"fail, no ciphertext": {
			// 12 byte GCM nonce.
			mod:     func(m []byte) []byte { return m[:4+12] },
			wantErr: krypto.ErrInvalidData,
		},
		"fail, flipped ciphertext bit": {
			mod: func(m []byte) []byte {
				m[len(m)-1] ^= 0x01
				return m
			},
			wantErr: krypto.ErrInvalidData,
		},
		"fail, flipped nonce bit": {
			mod: func(m []byte) []byte {
				m[5] ^= 0x80
				return m
			},
			wantErr: krypto.ErrInvalidData,
		},
		"fail, unknown key index": {
			mod: func(m []byte) []byte {
				binary.BigEndian.PutUint32(m, 7)
				return m
			},
			wantErr: krypto.ErrUnknownKey,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tampered := tc.mod(bytes.Clone(msg))

			_, err := enc.Decrypt(tampered)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got error %v, want %v (via errors.Is)", err, tc.wantErr)
			}
		})
	}

	t.Run("fail, other key", func(t *testing.T) {
		other := must(krypto.NewEncryptor([]krypto.Key{newKey}))

		_, err := other.Decrypt(msg)
		if !errors.Is(err, krypto.ErrInvalidData) {
			t.Errorf("got error %v, want %v (via errors.Is)", err, krypto.ErrInvalidData)
		}
	})
}

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}

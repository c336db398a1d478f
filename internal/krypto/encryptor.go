package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey indicates that the key used to encrypt the data is unknown.
	ErrUnknownKey = errors.New("unknown key")
	// ErrInvalidData indicates that the data is invalid.
	ErrInvalidData = errors.New("invalid data")
)

const indexBytes = 4

// Encryptor encrypts and decrypts data using AES-GCM.
//
// The encryptor uses an append only list of keys. The last key in the
// list is the one used for encryption, all keys can be used for decryption.
//
// Output is laid out as <key index><nonce><ciphertext>. The 4 byte big endian
// key index is authenticated as additional data but is not secret.
type Encryptor struct {
	aeads []cipher.AEAD
}

// NewEncryptor creates a new encryptor with the provided keys.
func NewEncryptor(keys []Key) (*Encryptor, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one key is required")
	}

	aeads := make([]cipher.AEAD, 0, len(keys))
	for i, k := range keys {
		block, err := aes.NewCipher(k.value)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		aeads = append(aeads, gcm)
	}

	return &Encryptor{
		aeads: aeads,
	}, nil
}

// Encrypt encrypts the data using the latest available key.
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	index := len(e.aeads) - 1
	gcm := e.aeads[index]

	nonce, err := randBytes(gcm.NonceSize())
	if err != nil {
		return nil, err
	}

	out := make([]byte, indexBytes, indexBytes+len(nonce)+len(data)+gcm.Overhead())
	binary.BigEndian.PutUint32(out, uint32(index))
	out = append(out, nonce...)

	return gcm.Seal(out, nonce, data, out[:indexBytes]), nil
}

// Decrypt decrypts a message created by Encrypt, using the key
// identified by its index prefix.
func (e *Encryptor) Decrypt(message []byte) ([]byte, error) {
	if len(message) < indexBytes {
		return nil, ErrInvalidData
	}

	index := binary.BigEndian.Uint32(message[:indexBytes])
	if int(index) >= len(e.aeads) {
		return nil, ErrUnknownKey
	}

	gcm := e.aeads[index]
	minLen := indexBytes + gcm.NonceSize()
	if len(message) <= minLen {
		return nil, ErrInvalidData
	}

	nonce := message[indexBytes:minLen]
	plain, err := gcm.Open(nil, nonce, message[minLen:], message[:indexBytes])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	return plain, nil
}

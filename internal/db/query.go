package db

import (
	"errors"
	"strings"

	"github.com/efish/efish/internal/krypto"
)

// Query helps build SQL queries using bind parameters.
// Use Unsafe to write constant parts of a query and the Param methods to add
// bind parameters. The final query and parameters can be retrieved using Get.
//
// Errors of the Param methods are collected and returned by Get.
type Query struct {
	encryptor     *krypto.Encryptor
	blindIndexKey krypto.Key
	b             strings.Builder
	params        []any
	err           error
}

// NewQuery creates a query that can encrypt and blind index parameters.
// Both may be zero when the query does not need them.
func NewQuery(encryptor *krypto.Encryptor, blindIndexKey krypto.Key) *Query {
	return &Query{
		encryptor:     encryptor,
		blindIndexKey: blindIndexKey,
	}
}

// Unsafe writes a non-parameterized part of a query.
func (q *Query) Unsafe(s string) {
	q.b.WriteString(s)
}

// Param writes a parameterized part of a query.
func (q *Query) Param(v any) {
	q.b.WriteString("?")
	q.params = append(q.params, v)
}

// Params writes multiple parameterized parts of a query separated by commas.
func (q *Query) Params(v ...any) {
	for i, p := range v {
		if i > 0 {
			q.b.WriteString(", ")
		}
		q.Param(p)
	}
}

// ParamEncrypted encrypts d and writes it as a parameter.
func (q *Query) ParamEncrypted(d []byte) {
	if q.encryptor == nil {
		q.err = errors.Join(q.err, errors.New("no encryptor set"))
		return
	}

	enc, err := q.encryptor.Encrypt(d)
	if err != nil {
		q.err = errors.Join(q.err, err)
		return
	}

	q.Param(enc)
}

// ParamBlindIndex writes a blind index of d as a parameter.
// The blind indexes will need to be rebuilt if the key or argon2 parameters change.
func (q *Query) ParamBlindIndex(d []byte) {
	if q.blindIndexKey.IsZero() {
		q.err = errors.Join(q.err, errors.New("no blind index key set"))
		return
	}

	hash, err := krypto.HashArgon2WithKey(d, q.blindIndexKey)
	if err != nil {
		q.err = errors.Join(q.err, err)
		return
	}

	// the salt is the key, it is not stored.
	hash.Salt = nil
	q.Param(hash.String())
}

// Get returns the constructed query and parameter values.
func (q *Query) Get() (string, []any, error) {
	return q.b.String(), q.params, q.err
}

// DecryptionTarget returns a value that decrypts what is scanned into it.
func (q *Query) DecryptionTarget() *Decryptable {
	return &Decryptable{
		encryptor: q.encryptor,
	}
}

// Decryptable is a sql.Scanner for columns written with ParamEncrypted.
type Decryptable struct {
	encryptor *krypto.Encryptor
	Data      []byte
}

func (d *Decryptable) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.New("encrypted column is not a blob")
	}

	if d.encryptor == nil {
		return errors.New("no encryptor set")
	}

	data, err := d.encryptor.Decrypt(b)
	if err != nil {
		return err
	}

	d.Data = data

	return nil
}

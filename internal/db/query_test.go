package db_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/efish/efish/internal/db"
	"github.com/efish/efish/internal/db/testdb"
	"github.com/efish/efish/internal/krypto"
)

func Test_Query(t *testing.T) {
	t.Run("ok, params", func(t *testing.T) {
		q := db.NewQuery(nil, krypto.Key{})
		q.Unsafe("SELECT * FROM tasks WHERE user_id = ")
		q.Param("u1")
		q.Unsafe(" AND id IN (")
		q.Params(1, 2, 3)
		q.Unsafe(")")

		query, params, err := q.Get()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantQuery := "SELECT * FROM tasks WHERE user_id = ? AND id IN (?, ?, ?)"
		if query != wantQuery {
			t.Errorf("wanted query\n%s\ngot\n%s", wantQuery, query)
		}

		wantParams := []any{"u1", 1, 2, 3}
		if !reflect.DeepEqual(params, wantParams) {
			t.Errorf("wanted params %v, got %v", wantParams, params)
		}
	})

	t.Run("fail, no encryptor or blind index key", func(t *testing.T) {
		q := db.NewQuery(nil, krypto.Key{})
		q.ParamEncrypted([]byte("alice@example.com"))
		q.ParamBlindIndex([]byte("alice@example.com"))

		_, _, err := q.Get()
		if err == nil {
			t.Fatalf("wanted error, got <nil>")
		}
	})

	t.Run("ok, blind index is deterministic", func(t *testing.T) {
		key := must(krypto.ParseKey("2b671594b775f371eab4050b4d58326682df6b1a6cc2e886717b1a26b4d6c45d"))

		indexOf := func(v string) any {
			q := db.NewQuery(nil, key)
			q.ParamBlindIndex([]byte(v))
			_, params, err := q.Get()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return params[0]
		}

		if indexOf("alice@example.com") != indexOf("alice@example.com") {
			t.Errorf("expected equal blind indexes")
		}

		if indexOf("alice@example.com") == indexOf("bob@example.com") {
			t.Errorf("expected different blind indexes")
		}
	})

	t.Run("ok, encrypt and decrypt round trip", func(t *testing.T) {
		enc := must(krypto.NewEncryptor([]krypto.Key{
			must(krypto.ParseKey("90303dfed7994260ea4817a5ca8a392915cd401115b2f97495dadfcbcd14adbf")),
		}))

		testDB := testdb.RunUnmigratedWhile(t, true)
		_, err := testDB.Exec(`CREATE TABLE secrets (value BLOB NOT NULL)`)
		if err != nil {
			t.Fatalf("failed to create table: %v", err)
		}

		q := db.NewQuery(enc, krypto.Key{})
		q.Unsafe("INSERT INTO secrets (value) VALUES (")
		q.ParamEncrypted([]byte("my secret"))
		q.Unsafe(")")

		query, params, err := q.Get()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = testDB.ExecContext(context.Background(), query, params...)
		if err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		target := q.DecryptionTarget()
		err = testDB.QueryRow(`SELECT value FROM secrets`).Scan(target)
		if err != nil {
			t.Fatalf("failed to scan: %v", err)
		}

		if string(target.Data) != "my secret" {
			t.Errorf("wanted %q, got %q", "my secret", target.Data)
		}

		var raw []byte
		err = testDB.QueryRow(`SELECT value FROM secrets`).Scan(&raw)
		if err != nil {
			t.Fatalf("failed to scan raw: %v", err)
		}

		if string(raw) == "my secret" {
			t.Errorf("value was stored unencrypted")
		}
	})
}

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}

package db_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/account"
	"github.com/efish/efish/internal/account/db"
	"github.com/efish/efish/internal/db/testdb"
	"github.com/efish/efish/internal/errorz"
)

func Test_Store_NextSequence(t *testing.T) {
	store := storeForTest(t)

	for want := int64(1); want <= 3; want++ {
		got, err := store.NextSequence(context.Background(), "account_counter")
		if err != nil {
			t.Fatalf("failed to get next sequence: %v", err)
		}

		if got != want {
			t.Errorf("wanted %d, got %d", want, got)
		}
	}

	// Counters are independent.
	got, err := store.NextSequence(context.Background(), "other_counter")
	if err != nil {
		t.Fatalf("failed to get next sequence: %v", err)
	}

	if got != 1 {
		t.Errorf("wanted 1, got %d", got)
	}
}

func Test_Store_CreateAccount(t *testing.T) {
	t.Run("ok, create and find", func(t *testing.T) {
		store := storeForTest(t)

		a := testAccount(nil)
		err := store.CreateAccount(context.Background(), &a)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		assertFindAccount(t, store, a)
	})

	t.Run("ok, nil addons are stored as empty", func(t *testing.T) {
		store := storeForTest(t)

		a := testAccount(func(a *account.Account) {
			a.Addons = nil
		})
		err := store.CreateAccount(context.Background(), &a)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		a.Addons = []string{}
		assertFindAccount(t, store, a)
	})

	t.Run("fail, duplicate number", func(t *testing.T) {
		store := storeForTest(t)

		a := testAccount(nil)
		err := store.CreateAccount(context.Background(), &a)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		b := testAccount(func(a *account.Account) {
			a.ID = uuid.New()
		})
		err = store.CreateAccount(context.Background(), &b)
		if !errors.Is(err, errorz.ErrDuplicate) {
			t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrDuplicate, err)
		}
	})

	t.Run("fail, zero id", func(t *testing.T) {
		store := storeForTest(t)

		a := testAccount(func(a *account.Account) {
			a.ID = uuid.Nil
		})
		err := store.CreateAccount(context.Background(), &a)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})
}

func Test_Store_UpdateAccount(t *testing.T) {
	t.Run("ok, update", func(t *testing.T) {
		store := storeForTest(t)

		a := testAccount(nil)
		err := store.CreateAccount(context.Background(), &a)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		updated := now(1)
		a.Name = "Household"
		a.PlanType = "pro"
		a.Addons = []string{"reports"}
		a.UpdatedAt = &updated

		err = store.UpdateAccount(context.Background(), &a)
		if err != nil {
			t.Fatalf("failed to update account: %v", err)
		}

		assertFindAccount(t, store, a)
	})

	t.Run("fail, not found", func(t *testing.T) {
		store := storeForTest(t)

		a := testAccount(nil)
		err := store.UpdateAccount(context.Background(), &a)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})
}

func Test_Store_FindAccount(t *testing.T) {
	store := storeForTest(t)

	_, err := store.FindAccount(context.Background(), uuid.New())
	if !errors.Is(err, errorz.ErrNotFound) {
		t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrNotFound, err)
	}
}

func now(i int) time.Time {
	return time.Date(2021, 1, 1, 0, 0, i, 0, time.UTC)
}

func storeForTest(t *testing.T) *db.Store {
	t.Helper()

	testDB := testdb.RunWhile(t, true)
	return db.New(testDB, testDB)
}

func testAccount(modFunc func(*account.Account)) account.Account {
	a := account.Account{
		ID:        uuid.MustParse("6f1ac1f4-3c4b-4b7a-9d6a-54ab0b1e0c11"),
		Number:    "efish-0000001",
		Name:      "New Account",
		PlanType:  "free",
		Addons:    []string{},
		CreatedAt: now(0),
	}

	if modFunc != nil {
		modFunc(&a)
	}

	return a
}

func assertFindAccount(t *testing.T, store *db.Store, want account.Account) {
	t.Helper()

	got, err := store.FindAccount(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("got\n%#v\nwant\n%#v\n", got, want)
	}
}

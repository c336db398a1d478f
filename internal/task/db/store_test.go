package db_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/db/testdb"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/task"
	"github.com/efish/efish/internal/task/db"
)

var (
	aliceID = uuid.MustParse("0b7e3c52-1c39-4f0c-a0bb-5b1c1d36d9e4")
	bobID   = uuid.MustParse("ee3b59a9-8bd5-42ab-9e3b-6d2d3b0f6c1a")
)

func Test_Store_CreateTask(t *testing.T) {
	t.Run("ok, create and find", func(t *testing.T) {
		store := storeForTest(t)

		tsk := testTask(nil)
		err := store.CreateTask(context.Background(), &tsk)
		if err != nil {
			t.Fatalf("failed to create task: %v", err)
		}

		got, err := store.FindTask(context.Background(), aliceID, tsk.ID)
		if err != nil {
			t.Fatalf("failed to find task: %v", err)
		}

		if !reflect.DeepEqual(got, tsk) {
			t.Errorf("got\n%#v\nwant\n%#v\n", got, tsk)
		}
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		store := storeForTest(t)

		tsk := testTask(func(tsk *task.Task) {
			tsk.UserID = uuid.New()
		})
		err := store.CreateTask(context.Background(), &tsk)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})
}

func Test_Store_Ownership(t *testing.T) {
	store := storeForTest(t)

	tsk := testTask(nil)
	err := store.CreateTask(context.Background(), &tsk)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	t.Run("find", func(t *testing.T) {
		_, err := store.FindTask(context.Background(), bobID, tsk.ID)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})

	t.Run("update", func(t *testing.T) {
		other := tsk
		other.UserID = bobID
		other.Title = "Hijacked"

		err := store.UpdateTask(context.Background(), &other)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		err := store.DeleteTask(context.Background(), bobID, tsk.ID)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})

	t.Run("list and count", func(t *testing.T) {
		tasks, err := store.ListTasks(context.Background(), bobID, 10, 0)
		if err != nil {
			t.Fatalf("failed to list tasks: %v", err)
		}

		n, err := store.CountTasks(context.Background(), bobID)
		if err != nil {
			t.Fatalf("failed to count tasks: %v", err)
		}

		if len(tasks) != 0 || n != 0 {
			t.Errorf("expected no tasks for bob, got %d (count %d)", len(tasks), n)
		}
	})

	// The task is unchanged by the attempts above.
	got, err := store.FindTask(context.Background(), aliceID, tsk.ID)
	if err != nil {
		t.Fatalf("failed to find task: %v", err)
	}

	if !reflect.DeepEqual(got, tsk) {
		t.Errorf("got\n%#v\nwant\n%#v\n", got, tsk)
	}
}

func Test_Store_UpdateAndDelete(t *testing.T) {
	store := storeForTest(t)

	tsk := testTask(nil)
	err := store.CreateTask(context.Background(), &tsk)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	tsk.Title = "Water the plants"
	tsk.Description = "Also the ones upstairs."
	tsk.Completed = true
	tsk.UpdatedAt = now(5)

	err = store.UpdateTask(context.Background(), &tsk)
	if err != nil {
		t.Fatalf("failed to update task: %v", err)
	}

	got, err := store.FindTask(context.Background(), aliceID, tsk.ID)
	if err != nil {
		t.Fatalf("failed to find task: %v", err)
	}

	if !reflect.DeepEqual(got, tsk) {
		t.Errorf("got\n%#v\nwant\n%#v\n", got, tsk)
	}

	err = store.DeleteTask(context.Background(), aliceID, tsk.ID)
	if err != nil {
		t.Fatalf("failed to delete task: %v", err)
	}

	_, err = store.FindTask(context.Background(), aliceID, tsk.ID)
	if !errors.Is(err, errorz.ErrNotFound) {
		t.Fatalf("expected error to be %v got %v (via errors.Is)", errorz.ErrNotFound, err)
	}
}

func Test_Store_ListTasks(t *testing.T) {
	store := storeForTest(t)

	var created []task.Task
	for i := range 5 {
		tsk := testTask(func(tsk *task.Task) {
			tsk.ID = uuid.New()
			tsk.CreatedAt = now(i)
			tsk.UpdatedAt = now(i)
		})

		err := store.CreateTask(context.Background(), &tsk)
		if err != nil {
			t.Fatalf("failed to create task: %v", err)
		}

		created = append(created, tsk)
	}

	tests := map[string]struct {
		limit  int
		offset int
		want   []task.Task
	}{
		"first page":   {limit: 2, offset: 0, want: []task.Task{created[4], created[3]}},
		"second page":  {limit: 2, offset: 2, want: []task.Task{created[2], created[1]}},
		"last page":    {limit: 2, offset: 4, want: []task.Task{created[0]}},
		"past the end": {limit: 2, offset: 6, want: []task.Task{}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := store.ListTasks(context.Background(), aliceID, tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("failed to list tasks: %v", err)
			}

			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got\n%#v\nwant\n%#v\n", got, tc.want)
			}
		})
	}

	n, err := store.CountTasks(context.Background(), aliceID)
	if err != nil {
		t.Fatalf("failed to count tasks: %v", err)
	}

	if n != 5 {
		t.Errorf("wanted 5 tasks, got %d", n)
	}
}

func now(i int) time.Time {
	return time.Date(2021, 1, 1, 0, 0, i, 0, time.UTC)
}

func storeForTest(t *testing.T) *db.Store {
	t.Helper()

	testDB := testdb.RunWhile(t, true)
	insertUsers(t, testDB, aliceID, bobID)

	return db.New(testDB, testDB)
}

// insertUsers inserts bare users, tasks only need them to exist.
func insertUsers(t *testing.T, testDB *sql.DB, ids ...uuid.UUID) {
	t.Helper()

	accountID := uuid.New()
	_, err := testDB.Exec(
		`INSERT INTO accounts (id, number, name, created_at) VALUES (?, ?, ?, ?)`,
		accountID, "efish-0000001", "New Account", now(0),
	)
	if err != nil {
		t.Fatalf("failed to insert account: %v", err)
	}

	for _, id := range ids {
		_, err := testDB.Exec(
			`INSERT INTO users (id, account_id, email_encrypted, email_blind_index, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, accountID, []byte{1}, id.String(), "hash", now(0), now(0),
		)
		if err != nil {
			t.Fatalf("failed to insert user: %v", err)
		}
	}
}

func testTask(modFunc func(*task.Task)) task.Task {
	tsk := task.Task{
		ID:          uuid.MustParse("5d0a8a5b-9a8e-4c53-9f0c-3c1f8b6f2e7d"),
		UserID:      aliceID,
		Title:       "Buy groceries",
		Description: "Milk and bread.",
		CreatedAt:   now(0),
		UpdatedAt:   now(0),
	}

	if modFunc != nil {
		modFunc(&tsk)
	}

	return tsk
}

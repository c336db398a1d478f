package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/task"
)

type taskDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Completed   bool      `bson:"completed"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func taskDocFrom(t *task.Task) taskDoc {
	t.CreatedAt = utc(t.CreatedAt)
	t.UpdatedAt = utc(t.UpdatedAt)

	return taskDoc{
		ID:          t.ID.String(),
		UserID:      t.UserID.String(),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDoc) toTask() (task.Task, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("invalid task id: %w", err)
	}

	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return task.Task{}, fmt.Errorf("invalid user id: %w", err)
	}

	return task.Task{
		ID:          id,
		UserID:      userID,
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

// ownedBy filters on a single task of a single user.
func ownedBy(userID, id uuid.UUID) bson.D {
	return bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "user_id", Value: userID.String()},
	}
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	// There are no foreign keys, check the owner exists ourselves.
	n, err := s.db.Collection(usersCollection).CountDocuments(ctx, bson.D{{Key: "_id", Value: t.UserID.String()}})
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return fmt.Errorf("unknown user: %w", errorz.ErrConstraintViolated)
	}

	_, err = s.db.Collection(tasksCollection).InsertOne(ctx, taskDocFrom(t))
	return mapErr(err)
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	doc := taskDocFrom(t)

	result, err := s.db.Collection(tasksCollection).UpdateOne(ctx,
		ownedBy(t.UserID, t.ID),
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "title", Value: doc.Title},
			{Key: "description", Value: doc.Description},
			{Key: "completed", Value: doc.Completed},
			{Key: "updated_at", Value: doc.UpdatedAt},
		}}},
	)
	if err != nil {
		return mapErr(err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("task not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func (s *Store) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	result, err := s.db.Collection(tasksCollection).DeleteOne(ctx, ownedBy(userID, id))
	if err != nil {
		return mapErr(err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("task not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func (s *Store) FindTask(ctx context.Context, userID, id uuid.UUID) (task.Task, error) {
	var doc taskDoc
	err := s.db.Collection(tasksCollection).FindOne(ctx, ownedBy(userID, id)).Decode(&doc)
	if err != nil {
		return task.Task{}, mapErr(err)
	}

	return doc.toTask()
}

func (s *Store) ListTasks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]task.Task, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(tasksCollection).Find(ctx, bson.D{{Key: "user_id", Value: userID.String()}}, opts)
	if err != nil {
		return nil, mapErr(err)
	}

	var docs []taskDoc
	err = cursor.All(ctx, &docs)
	if err != nil {
		return nil, mapErr(err)
	}

	out := make([]task.Task, 0, len(docs))
	for _, d := range docs {
		t, err := d.toTask()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, nil
}

func (s *Store) CountTasks(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.db.Collection(tasksCollection).CountDocuments(ctx, bson.D{{Key: "user_id", Value: userID.String()}})
	if err != nil {
		return 0, mapErr(err)
	}

	return int(n), nil
}

package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/efish/efish/internal/account"
	"github.com/efish/efish/internal/errorz"
)

type accountDoc struct {
	ID        string     `bson:"_id"`
	Number    string     `bson:"number"`
	Name      string     `bson:"name"`
	TenantID  string     `bson:"tenant_id"`
	PlanType  string     `bson:"plan_type"`
	Addons    []string   `bson:"addons"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at"`
}

func accountDocFrom(a *account.Account) accountDoc {
	a.CreatedAt = utc(a.CreatedAt)
	if a.UpdatedAt != nil {
		updated := utc(*a.UpdatedAt)
		a.UpdatedAt = &updated
	}

	addons := a.Addons
	if addons == nil {
		addons = []string{}
	}

	return accountDoc{
		ID:        a.ID.String(),
		Number:    a.Number,
		Name:      a.Name,
		TenantID:  a.TenantID,
		PlanType:  a.PlanType,
		Addons:    addons,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (d accountDoc) toAccount() (account.Account, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return account.Account{}, fmt.Errorf("invalid account id: %w", err)
	}

	a := account.Account{
		ID:        id,
		Number:    d.Number,
		Name:      d.Name,
		TenantID:  d.TenantID,
		PlanType:  d.PlanType,
		Addons:    d.Addons,
		CreatedAt: d.CreatedAt.UTC(),
	}

	if a.Addons == nil {
		a.Addons = []string{}
	}

	if d.UpdatedAt != nil {
		updated := d.UpdatedAt.UTC()
		a.UpdatedAt = &updated
	}

	return a, nil
}

type counterDoc struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

func (s *Store) NextSequence(ctx context.Context, counter string) (int64, error) {
	var doc counterDoc
	err := s.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: counter}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, mapErr(err)
	}

	return doc.Seq, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	_, err := s.db.Collection(accountsCollection).InsertOne(ctx, accountDocFrom(a))
	return mapErr(err)
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	doc := accountDocFrom(a)

	result, err := s.db.Collection(accountsCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "name", Value: doc.Name},
			{Key: "tenant_id", Value: doc.TenantID},
			{Key: "plan_type", Value: doc.PlanType},
			{Key: "addons", Value: doc.Addons},
			{Key: "updated_at", Value: doc.UpdatedAt},
		}}},
	)
	if err != nil {
		return mapErr(err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("account not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func (s *Store) FindAccount(ctx context.Context, id uuid.UUID) (account.Account, error) {
	var doc accountDoc
	err := s.db.Collection(accountsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if err != nil {
		return account.Account{}, mapErr(err)
	}

	return doc.toAccount()
}

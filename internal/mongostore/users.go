package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/krypto"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	AccountID    string    `bson:"account_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	Username     string    `bson:"username"`
	Phone        string    `bson:"phone"`
	TimeZone     string    `bson:"time_zone"`
	AboutMe      string    `bson:"about_me"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func userDocFrom(u *auth.User) userDoc {
	u.CreatedAt = utc(u.CreatedAt)
	u.UpdatedAt = utc(u.UpdatedAt)

	return userDoc{
		ID:           u.ID.String(),
		AccountID:    u.AccountID.String(),
		Email:        string(u.Email),
		PasswordHash: u.PasswordHash.String(),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		Phone:        u.Phone,
		TimeZone:     u.TimeZone,
		AboutMe:      u.AboutMe,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toUser() (auth.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return auth.User{}, fmt.Errorf("invalid user id: %w", err)
	}

	accountID, err := uuid.Parse(d.AccountID)
	if err != nil {
		return auth.User{}, fmt.Errorf("invalid account id: %w", err)
	}

	addr, err := email.ParseAddress(d.Email)
	if err != nil {
		return auth.User{}, err
	}

	hash, err := krypto.ParseArgon2Hash(d.PasswordHash)
	if err != nil {
		return auth.User{}, err
	}

	return auth.User{
		ID:           id,
		AccountID:    accountID,
		Email:        addr,
		PasswordHash: hash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Username:     d.Username,
		Phone:        d.Phone,
		TimeZone:     d.TimeZone,
		AboutMe:      d.AboutMe,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	_, err := s.db.Collection(usersCollection).InsertOne(ctx, userDocFrom(u))
	return mapErr(err)
}

func (s *Store) UpdateUser(ctx context.Context, u *auth.User) error {
	doc := userDocFrom(u)

	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "email", Value: doc.Email},
			{Key: "password_hash", Value: doc.PasswordHash},
			{Key: "first_name", Value: doc.FirstName},
			{Key: "last_name", Value: doc.LastName},
			{Key: "username", Value: doc.Username},
			{Key: "phone", Value: doc.Phone},
			{Key: "time_zone", Value: doc.TimeZone},
			{Key: "about_me", Value: doc.AboutMe},
			{Key: "updated_at", Value: doc.UpdatedAt},
		}}},
	)
	if err != nil {
		return mapErr(err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func (s *Store) UpdateCredential(ctx context.Context, id uuid.UUID, hash krypto.Argon2Hash, at time.Time) error {
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: hash.String()},
			{Key: "updated_at", Value: utc(at)},
		}}},
	)
	if err != nil {
		return mapErr(err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, addr email.Address) (auth.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: string(addr)}})
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (auth.User, error) {
	var doc userDoc
	err := s.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return auth.User{}, mapErr(err)
	}

	return doc.toUser()
}

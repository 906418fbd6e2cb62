package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/zakat-tracker/internal/models"
)

// userDoc is the stored shape of a user. The hash lives under "password" as
// in documents written by earlier versions of the service.
type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	FullName  string             `bson:"full_name"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d userDoc) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		FullName:     d.FullName,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// MongoUserStore handles users in MongoDB.
type MongoUserStore struct {
	col *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{col: db.Collection(usersCollection)}
}

// EnsureIndexes makes email and username unique.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("mongo user indexes: %w", err)
	}
	return nil
}

// CreateUser inserts u and sets its ID. Duplicate emails or usernames come
// back as models.ErrEmailTaken or models.ErrUsernameTaken.
func (s *MongoUserStore) CreateUser(ctx context.Context, u *models.User) error {
	for _, check := range []struct {
		field, value string
		err          error
	}{
		{"email", u.Email, models.ErrEmailTaken},
		{"username", u.Username, models.ErrUsernameTaken},
	} {
		n, err := s.col.CountDocuments(ctx, bson.M{check.field: check.value}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("mongo check %s: %w", check.field, err)
		}
		if n > 0 {
			return check.err
		}
	}

	res, err := s.col.InsertOne(ctx, userDoc{
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.PasswordHash,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	})
	if err != nil {
		// lost a race with a concurrent registration; the unique index decides
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "username") {
				return models.ErrUsernameTaken
			}
			return models.ErrEmailTaken
		}
		return fmt.Errorf("mongo insert user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("mongo insert user: unexpected id type %T", res.InsertedID)
	}
	u.ID = oid.Hex()
	return nil
}

func (s *MongoUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDoc
	if err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongo get user: %w", err)
	}
	return doc.toModel(), nil
}

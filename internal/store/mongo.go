package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/zakat-tracker/internal/models"
)

const (
	usersCollection   = "users"
	entriesCollection = "zakat_entries"
)

// entryDoc is the stored shape of a zakat entry.
type entryDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      string             `bson:"user_id"`
	Amount      float64            `bson:"amount"`
	Category    string             `bson:"category"`
	Description *string            `bson:"description"`
	Date        time.Time          `bson:"date"`
	ZakatAmount float64            `bson:"zakat_amount"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (d entryDoc) toModel() models.Entry {
	return models.Entry{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        d.Date.UTC(),
		ZakatAmount: d.ZakatAmount,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// MongoEntryStore handles zakat entry CRUD in MongoDB. Every by-id call
// filters on both the entry id and the owner, so another user's entry is
// indistinguishable from a missing one.
type MongoEntryStore struct {
	col *mongo.Collection
}

func NewMongoEntryStore(db *mongo.Database) *MongoEntryStore {
	return &MongoEntryStore{col: db.Collection(entriesCollection)}
}

// EnsureIndexes creates the (user_id, date) listing index.
func (s *MongoEntryStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo entry indexes: %w", err)
	}
	return nil
}

func (s *MongoEntryStore) Insert(ctx context.Context, e *models.Entry) error {
	doc := entryDoc{
		UserID:      e.UserID,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		ZakatAmount: e.ZakatAmount,
		CreatedAt:   e.CreatedAt,
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("mongo insert entry: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("mongo insert entry: unexpected id type %T", res.InsertedID)
	}
	e.ID = oid.Hex()
	return nil
}

// ListByUser returns every entry of userID, newest date first.
func (s *MongoEntryStore) ListByUser(ctx context.Context, userID string) ([]models.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list entries: %w", err)
	}
	defer cur.Close(ctx)

	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode entries: %w", err)
	}
	entries := make([]models.Entry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, d.toModel())
	}
	return entries, nil
}

// GetByID returns models.ErrInvalidID for a malformed id and
// models.ErrEntryNotFound when no entry of userID has that id.
func (s *MongoEntryStore) GetByID(ctx context.Context, userID, id string) (*models.Entry, error) {
	filter, err := ownedFilter(userID, id)
	if err != nil {
		return nil, err
	}
	var doc entryDoc
	if err := s.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, entryErr("mongo get entry", err)
	}
	e := doc.toModel()
	return &e, nil
}

// Update applies patch in one FindOneAndUpdate and returns the stored entry.
// An empty patch only reads.
func (s *MongoEntryStore) Update(ctx context.Context, userID, id string, patch models.EntryPatch) (*models.Entry, error) {
	if patch.Empty() {
		return s.GetByID(ctx, userID, id)
	}
	filter, err := ownedFilter(userID, id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if patch.Amount != nil {
		set["amount"] = *patch.Amount
	}
	if patch.ZakatAmount != nil {
		set["zakat_amount"] = *patch.ZakatAmount
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Date != nil {
		set["date"] = *patch.Date
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc entryDoc
	if err := s.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, entryErr("mongo update entry", err)
	}
	e := doc.toModel()
	return &e, nil
}

func (s *MongoEntryStore) Delete(ctx context.Context, userID, id string) error {
	filter, err := ownedFilter(userID, id)
	if err != nil {
		return err
	}
	res, err := s.col.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongo delete entry: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrEntryNotFound
	}
	return nil
}

func ownedFilter(userID, id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	return bson.M{"_id": oid, "user_id": userID}, nil
}

func entryErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrEntryNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

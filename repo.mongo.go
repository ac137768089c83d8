package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	_ BookStorage   = (*mongoBookStorage)(nil)
	_ ReviewStorage = (*mongoReviewStorage)(nil)
	_ UserStorage   = (*mongoUserStorage)(nil)
)

// GetMongoClient provides a ready to use mongo client.
func GetMongoClient(config *Config) (*mongo.Client, error) {
	timeout := config.Mongo.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	opts := options.Client().ApplyURI(config.Mongo.URI).SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}

	// test connection.
	if err = client.Ping(ctx, nil); err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

type mongoBookStorage struct {
	logger *zap.Logger
	coll   *mongo.Collection
}

// NewMongoBookStorage provides an instance of mongo-based book storage.
func NewMongoBookStorage(logger *zap.Logger, coll *mongo.Collection) *mongoBookStorage {
	return &mongoBookStorage{
		logger: logger,
		coll:   coll,
	}
}

// EnsureIndexes creates the unique indexes on title and ISBN. They protect
// against two concurrent creations passing the uniqueness lookups.
func (ms *mongoBookStorage) EnsureIndexes(ctx context.Context) error {
	_, err := ms.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_title")},
		{Keys: bson.D{{Key: "ISBN", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_isbn")},
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "title", Value: 1}}, Options: options.Index().SetName("active_title")},
	})
	return err
}

// FindByID retrieves a book whatever its deletion state.
func (ms *mongoBookStorage) FindByID(ctx context.Context, id string) (Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Book{}, ErrBookNotFound
	}
	return ms.FindOne(ctx, bson.M{"_id": oid})
}

// FindActiveByID retrieves a book only if it is not soft-deleted.
func (ms *mongoBookStorage) FindActiveByID(ctx context.Context, id string) (Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Book{}, ErrBookNotFound
	}
	return ms.FindOne(ctx, bson.M{"_id": oid, "isDeleted": false})
}

// FindOne retrieves the first book matching the filter.
func (ms *mongoBookStorage) FindOne(ctx context.Context, filter bson.M) (Book, error) {
	var book Book
	err := ms.coll.FindOne(ctx, filter).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return book, ErrBookNotFound
	}
	return book, err
}

// Find retrieves all books matching the filter with only the projected fields.
func (ms *mongoBookStorage) Find(ctx context.Context, filter bson.M, projection bson.M) ([]Book, error) {
	opts := options.Find()
	if len(projection) != 0 {
		opts = opts.SetProjection(projection)
	}
	cursor, err := ms.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	books := []Book{}
	if err = cursor.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// Create inserts a new book record and returns it with its generated id.
func (ms *mongoBookStorage) Create(ctx context.Context, book Book) (Book, error) {
	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	_, err := ms.coll.InsertOne(ctx, book)
	if mongo.IsDuplicateKeyError(err) {
		return book, ErrDuplicateBook
	}
	return book, err
}

// FindOneAndUpdate applies the update on the first book matching the filter
// and returns the updated document.
func (ms *mongoBookStorage) FindOneAndUpdate(ctx context.Context, filter bson.M, update bson.M) (Book, error) {
	var book Book
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := ms.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return book, ErrBookNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return book, ErrDuplicateBook
	}
	return book, err
}

type mongoReviewStorage struct {
	logger *zap.Logger
	coll   *mongo.Collection
}

// NewMongoReviewStorage provides an instance of mongo-based review storage.
func NewMongoReviewStorage(logger *zap.Logger, coll *mongo.Collection) ReviewStorage {
	return &mongoReviewStorage{
		logger: logger,
		coll:   coll,
	}
}

// Find retrieves all reviews matching the filter with only the projected fields.
func (mr *mongoReviewStorage) Find(ctx context.Context, filter bson.M, projection bson.M) ([]Review, error) {
	opts := options.Find()
	if len(projection) != 0 {
		opts = opts.SetProjection(projection)
	}
	cursor, err := mr.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	reviews := []Review{}
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

type mongoUserStorage struct {
	logger *zap.Logger
	coll   *mongo.Collection
}

// NewMongoUserStorage provides an instance of mongo-based user storage.
func NewMongoUserStorage(logger *zap.Logger, coll *mongo.Collection) UserStorage {
	return &mongoUserStorage{
		logger: logger,
		coll:   coll,
	}
}

// FindByID retrieves a user by its id. Only the id is fetched.
func (mu *mongoUserStorage) FindByID(ctx context.Context, id string) (User, error) {
	var user User
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user, ErrUserNotFound
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err = mu.coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user, ErrUserNotFound
	}
	return user, err
}

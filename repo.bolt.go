package main

import (
	"context"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// ArchivedBook is the last known snapshot of a book kept into the local archive.
type ArchivedBook struct {
	Book       Book      `json:"book"`
	Event      string    `json:"event"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// BookArchiver defines possible operations on the books snapshots archive.
type BookArchiver interface {
	Put(ctx context.Context, event string, book Book) error
	GetOne(ctx context.Context, id string) (ArchivedBook, error)
	GetAll(ctx context.Context) ([]ArchivedBook, error)
}

var _ BookArchiver = (*boltBookArchive)(nil)

type boltBookArchive struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
	clock  Clocker
}

// GetBoltDBClient setup the database and the bucket then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BoltDB.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %v", config.BoltDB.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltBookArchive provides an instance of bolt-based books archive.
func NewBoltBookArchive(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB, clock Clocker) *boltBookArchive {
	return &boltBookArchive{
		logger: logger,
		client: client,
		config: boltConfig,
		clock:  clock,
	}
}

// Close shuts down the bolt-based books archive.
func (ba *boltBookArchive) Close() error {
	return ba.client.Close()
}

// Put inserts or replaces the snapshot of a book.
func (ba *boltBookArchive) Put(_ context.Context, event string, book Book) error {
	archived := ArchivedBook{Book: book, Event: event, ArchivedAt: ba.clock.Now()}
	bookBytes, err := queueCodec.Marshal(archived)
	if err != nil {
		return err
	}
	return ba.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ba.config.BucketName)).Put([]byte(FormatBookKey(book.ID.Hex())), bookBytes)
	})
}

// GetOne retrieves the snapshot of a book based on its ID.
func (ba *boltBookArchive) GetOne(_ context.Context, id string) (ArchivedBook, error) {
	var archived ArchivedBook
	// initialize a readable transaction.
	tx, err := ba.client.Begin(false)
	if err != nil {
		return archived, err
	}
	defer tx.Rollback()

	result := tx.Bucket([]byte(ba.config.BucketName)).Get([]byte(FormatBookKey(id)))
	if result == nil {
		return archived, ErrBookNotFound
	}
	err = queueCodec.Unmarshal(result, &archived)
	return archived, err
}

// GetAll retrieves all snapshots stored in the bolt database.
func (ba *boltBookArchive) GetAll(_ context.Context) ([]ArchivedBook, error) {
	tx, err := ba.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Create a cursor on the archive bucket.
	c := tx.Bucket([]byte(ba.config.BucketName)).Cursor()

	books := []ArchivedBook{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var archived ArchivedBook
		if err = queueCodec.Unmarshal(v, &archived); err != nil {
			return nil, err
		}
		books = append(books, archived)
	}
	return books, nil
}

package main

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

// Predefinied Queue IDs.
const (
	CreateQueue = "books.creation"
	UpdateQueue = "books.updating"
	DeleteQueue = "books.deletion"
)

// queueCodec encodes the books snapshots pushed onto the queues.
var queueCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes a queue of books snapshots.
type Queuer interface {
	Push(ctx context.Context, qid string, book Book) error
	Pop(ctx context.Context, qids ...string) (string, Book, error)
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:           config.Redis.DialTimeout,
		ReadTimeout:           config.Redis.ReadTimeout,
		WriteTimeout:          config.Redis.WriteTimeout,
		PoolSize:              config.Redis.PoolSize,
		PoolTimeout:           config.Redis.PoolTimeout,
		Password:              config.Redis.Password,
		Username:              config.Redis.Username,
		DB:                    config.Redis.DatabaseIndex,
		ContextTimeoutEnabled: true, // blocking pops honor the caller deadline.
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// redisQueue represents a queue which implements the Queuer interface.
type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client}
}

// Push enqueues a book onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, book Book) error {
	bookBytes, err := queueCodec.Marshal(book)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, bookBytes).Err()
}

// Pop returns the first dequeued book from the list of queue ids.
// It blocks until a book is available or the context is done.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, Book, error) {
	var book Book
	var qid string
	infos, err := q.client.BLPop(ctx, 0*time.Second, qids...).Result()
	if err != nil {
		return qid, book, err
	}

	if err = queueCodec.Unmarshal([]byte(infos[1]), &book); err != nil {
		return qid, book, err
	}
	qid = infos[0]
	return qid, book, nil
}

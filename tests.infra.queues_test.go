package main

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startRedisDockerContainer(t *testing.T) (string, func()) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Fatalf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run("redis", "7.0.10-alpine", nil)
	if err != nil {
		t.Fatalf("Failed to start redis: %+v", err)
	}

	// build address the container is listening on
	addr := net.JoinHostPort("localhost", resource.GetPort("6379/tcp"))

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		t.Fatalf("Failed to ping Redis: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return addr, destroyFunc
}

func TestRedisQueue(t *testing.T) {
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	client, err := GetRedisClient(&Config{Redis: RedisConfig{Host: host, Port: port}})
	require.NoError(t, err)
	defer client.Close()

	q := NewRedisQueue(client)
	book := Book{
		ID:        mustObjectID(t, testBookHexID),
		Title:     "Redis test book title",
		UserID:    mustObjectID(t, testUserHexID),
		ISBN:      "978-0-13-419044-0",
		CreatedAt: NewMockClocker().Now(),
	}

	t.Run("Push And Pop Book", func(t *testing.T) {
		require.NoError(t, q.Push(context.Background(), UpdateQueue, book))
		qid, got, err := q.Pop(context.Background(), CreateQueue, UpdateQueue, DeleteQueue)
		require.NoError(t, err)
		assert.Equal(t, UpdateQueue, qid)
		assert.Equal(t, book.ID, got.ID)
		assert.Equal(t, book.UserID, got.UserID)
		assert.Equal(t, book.Title, got.Title)
		assert.True(t, book.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("Pop Keeps Push Order", func(t *testing.T) {
		first, second := book, book
		first.Title, second.Title = "first", "second"
		require.NoError(t, q.Push(context.Background(), CreateQueue, first))
		require.NoError(t, q.Push(context.Background(), CreateQueue, second))

		_, got, err := q.Pop(context.Background(), CreateQueue)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Title)
		_, got, err = q.Pop(context.Background(), CreateQueue)
		require.NoError(t, err)
		assert.Equal(t, "second", got.Title)
	})

	t.Run("Pop Returns On Context Done", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, _, err := q.Pop(ctx, DeleteQueue)
		assert.Error(t, err)
	})
}

func TestArchiveConsumer(t *testing.T) {
	book := Book{ID: mustObjectID(t, testBookHexID), Title: "Consumer test book title"}

	t.Run("should archive each known event", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := []string{CreateQueue, "books.unknown", UpdateQueue, DeleteQueue}
		var mu sync.Mutex
		popped := 0
		q := &MockQueuer{
			PopFunc: func(ctx context.Context, qids ...string) (string, Book, error) {
				mu.Lock()
				defer mu.Unlock()
				if popped == len(events) {
					cancel()
					return "", Book{}, ctx.Err()
				}
				qid := events[popped]
				popped++
				return qid, book, nil
			},
		}

		var archived []string
		archive := &MockBookArchiver{
			PutFunc: func(ctx context.Context, event string, b Book) error {
				assert.Equal(t, book.ID, b.ID)
				archived = append(archived, event)
				return nil
			},
		}

		err := NewArchiveConsumer(zap.NewNop(), q, archive).Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
		assert.NoError(t, err)
		assert.Equal(t, []string{CreateQueue, UpdateQueue, DeleteQueue}, archived)
	})

	t.Run("should keep consuming after a failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := 0
		q := &MockQueuer{
			PopFunc: func(ctx context.Context, qids ...string) (string, Book, error) {
				calls++
				switch calls {
				case 1:
					return CreateQueue, book, nil
				case 2:
					return UpdateQueue, book, nil
				default:
					cancel()
					return "", Book{}, ctx.Err()
				}
			},
		}

		puts := 0
		archive := &MockBookArchiver{
			PutFunc: func(ctx context.Context, event string, b Book) error {
				puts++
				if puts == 1 {
					return errors.New("archive failure")
				}
				return nil
			},
		}

		err := NewArchiveConsumer(zap.NewNop(), q, archive).Consume(ctx, CreateQueue, UpdateQueue)
		assert.NoError(t, err)
		assert.Equal(t, 2, puts)
	})

	t.Run("should exit when context is done while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		q := &MockQueuer{
			PopFunc: func(ctx context.Context, qids ...string) (string, Book, error) {
				<-ctx.Done()
				return "", Book{}, ctx.Err()
			},
		}
		done := make(chan error, 1)
		go func() {
			done <- NewArchiveConsumer(zap.NewNop(), q, &MockBookArchiver{}).Consume(ctx, CreateQueue)
		}()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not exit after context cancellation")
		}
	})
}

// Package redis implements the store contracts on a redis document layout:
// JSON documents under per-entity keys, hashes for participant rows, sorted
// sets for time-ordered listings and plain sets for membership indexes.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ostrenko/confab/internal/store"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Store struct {
	rdb *redis.Client
}

var _ store.Store = (*Store)(nil)

// Connect opens the client and verifies the server is reachable.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func notFound(err error) error {
	if err == redis.Nil {
		return store.ErrNotFound
	}
	return err
}

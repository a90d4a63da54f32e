// Package redis stores employee records in Redis, one JSON value per key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"corpgate/internal/directory"
	"corpgate/internal/domain"
)

const DefaultKeyPrefix = "corpgate:employee:"

// Options configures the Redis connection.
type Options struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// DefaultOptions targets a local server.
func DefaultOptions() Options {
	return Options{
		Address:   "localhost:6379",
		KeyPrefix: DefaultKeyPrefix,
	}
}

// Store implements directory.Store on a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore opens a client. It does not contact the server; call Ping.
func NewStore(opts Options) *Store {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: opts.KeyPrefix,
	}
}

// Ping tests connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(id domain.EmployeeID) string { return s.prefix + string(id) }

func (s *Store) Lookup(ctx context.Context, id domain.EmployeeID) (domain.EmployeeRecord, error) {
	ba, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.EmployeeRecord{}, fmt.Errorf("%w: %s", directory.ErrNotFound, id)
	}
	if err != nil {
		return domain.EmployeeRecord{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	var rec domain.EmployeeRecord
	if err := json.Unmarshal(ba, &rec); err != nil {
		return domain.EmployeeRecord{}, fmt.Errorf("decode employee %s: %w", id, err)
	}
	return rec, nil
}

// Put stores rec without expiration.
func (s *Store) Put(ctx context.Context, rec domain.EmployeeRecord) error {
	if rec.ID == "" {
		return errors.New("employee record without id")
	}
	ba, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(rec.ID), ba, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the records for ids. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, ids ...domain.EmployeeID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	return s.client.Del(ctx, keys...).Err()
}

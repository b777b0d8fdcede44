// Package memory is an in-process cache backend for single-instance
// deployments without Redis.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cleanupInterval = 10 * time.Minute

type Store struct {
	items *gocache.Cache
}

func New(defaultTTL time.Duration) *Store {
	return &Store{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	data := v.([]byte)
	return append([]byte(nil), data...), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *Store) Flush() {
	s.items.Flush()
}

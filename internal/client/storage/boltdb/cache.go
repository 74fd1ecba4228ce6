package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tabkeeper/internal/client/storage"
)

var cacheKey = []byte("dataset")

// SaveCache перезаписывает локальную копию dataset
func (s *Storage) SaveCache(_ context.Context, cache *storage.CachedDataset) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCache)
		if bucket == nil {
			return fmt.Errorf("cache bucket not found")
		}

		data, err := json.Marshal(cache)
		if err != nil {
			return fmt.Errorf("failed to marshal cached dataset: %w", err)
		}

		if err := bucket.Put(cacheKey, data); err != nil {
			return fmt.Errorf("failed to save cached dataset: %w", err)
		}

		return nil
	})
}

// GetCache возвращает локальную копию dataset
func (s *Storage) GetCache(_ context.Context) (*storage.CachedDataset, error) {
	var cache *storage.CachedDataset

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCache)
		if bucket == nil {
			return fmt.Errorf("cache bucket not found")
		}

		data := bucket.Get(cacheKey)
		if data == nil {
			return storage.ErrNoCache
		}

		cache = &storage.CachedDataset{}
		if err := json.Unmarshal(data, cache); err != nil {
			return fmt.Errorf("failed to unmarshal cached dataset: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return cache, nil
}

// DeleteCache удаляет локальную копию dataset
func (s *Storage) DeleteCache(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCache)
		if bucket == nil {
			return fmt.Errorf("cache bucket not found")
		}

		if err := bucket.Delete(cacheKey); err != nil {
			return fmt.Errorf("failed to delete cached dataset: %w", err)
		}

		return nil
	})
}

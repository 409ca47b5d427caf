package gateway

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const blobKeyPrefix = "ledger-blob:"

// RedisBlobStore keeps the remote copy of the ledger as a single Redis string.
type RedisBlobStore struct {
	rdb redis.Cmdable
}

func NewRedisBlobStore(rdb redis.Cmdable) RedisBlobStore {
	if rdb == nil {
		panic("missing redis client")
	}

	return RedisBlobStore{rdb: rdb}
}

func (s RedisBlobStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, blobKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

func (s RedisBlobStore) Put(ctx context.Context, id string, data []byte) error {
	return s.rdb.Set(ctx, blobKeyPrefix+id, data, 0).Err()
}

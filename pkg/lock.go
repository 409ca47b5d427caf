package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ticketledger/entity"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLock is a single-key lease used to serialize ledger reconciliations
// between processes. TTL bounds how long a crashed holder blocks others.
type RedisLock struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration

	newToken func() string
}

func NewRedisLock(rdb redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	if rdb == nil {
		panic("missing redis client")
	}
	if ttl <= 0 {
		panic("lock ttl must be positive")
	}

	return &RedisLock{
		rdb:      rdb,
		key:      key,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

func (l *RedisLock) Lock(ctx context.Context) (func(ctx context.Context) error, error) {
	token := l.newToken()

	acquired, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("could not acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		return nil, entity.ErrSyncInProgress
	}

	return func(ctx context.Context) error {
		if err := l.rdb.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("could not release lock %s: %w", l.key, err)
		}
		return nil
	}, nil
}

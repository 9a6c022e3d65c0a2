package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisKey = "scoreit:model"
	defaultLockTTL  = 30 * time.Second
)

// releaseScript deletes the lock only when it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisStore keeps the snapshot under a single key so every replica shares one model.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	lockKey string
	lockTTL time.Duration
}

// NewRedisStore uses key for the snapshot and "<key>:lock" for the training lock.
// The lock expires after lockTTL so a crashed trainer cannot block others forever.
func NewRedisStore(client redis.UniversalClient, key string, lockTTL time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &RedisStore{client: client, key: key, lockKey: key + ":lock", lockTTL: lockTTL}, nil
}

func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %q: %w", s.key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding model snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", s.key, err)
	}
	return nil
}

// Lock polls SET NX until the lock is acquired or ctx is done.
func (s *RedisStore) Lock(ctx context.Context) (func() error, error) {
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryDelay)
	defer ticker.Stop()

	for {
		ok, err := s.client.SetNX(ctx, s.lockKey, token, s.lockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %q: %w", s.lockKey, err)
		}
		if ok {
			return func() error {
				// The caller's ctx may already be done when unlocking.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, s.client, []string{s.lockKey}, token).Err(); err != nil {
					return fmt.Errorf("redis unlock %q: %w", s.lockKey, err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot under one Redis key.
type RedisStore struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. A zero ttl keeps the snapshot until it is overwritten.
func NewRedisStore(client redis.Cmdable, key string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New(redisClientMissingMessageConstant)
	}
	trimmedKey := strings.TrimSpace(key)
	if len(trimmedKey) == 0 {
		return nil, errors.New(redisKeyMissingMessageConstant)
	}
	return &RedisStore{client: client, key: trimmedKey, ttl: ttl}, nil
}

// Load fetches the snapshot value.
func (store *RedisStore) Load(ctx context.Context) ([]byte, error) {
	contents, getError := store.client.Get(ctx, store.key).Bytes()
	if getError != nil {
		if errors.Is(getError, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf(snapshotReadErrorTemplateConstant, store.Describe(), getError)
	}
	return contents, nil
}

// Save replaces the snapshot value.
func (store *RedisStore) Save(ctx context.Context, document []byte) error {
	if setError := store.client.Set(ctx, store.key, document, store.ttl).Err(); setError != nil {
		return fmt.Errorf(snapshotWriteErrorTemplateConstant, store.Describe(), setError)
	}
	return nil
}

// Describe returns a redis URL-like identifier of the key.
func (store *RedisStore) Describe() string {
	return fmt.Sprintf(redisStoreDescriptionTemplateConstant, store.key)
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotNotFoundMessageConstant       = "snapshot not found"
	BackendFile                           = "file"
	BackendRedis                          = "redis"
	defaultCachePathConstant              = "issues_cache.json"
	defaultRedisAddressConstant           = "localhost:6379"
	defaultRedisKeyConstant               = "ghkeeper:snapshot"
	unsupportedBackendTemplateConstant    = "unsupported cache backend: %s"
	configurationKeyBackendConstant       = "backend"
	configurationKeyPathConstant          = "path"
	configurationKeyRedisAddressConstant  = "redis_address"
	configurationKeyRedisKeyConstant      = "redis_key"
	configurationKeyRedisTTLConstant      = "redis_ttl"
	redisStoreDescriptionTemplateConstant = "redis key %s"
	redisClientMissingMessageConstant     = "redis client not configured"
	redisKeyMissingMessageConstant        = "redis snapshot key must be provided"
	filePathMissingMessageConstant        = "snapshot file path must be provided"
	snapshotReadErrorTemplateConstant     = "unable to read snapshot %s: %w"
	snapshotWriteErrorTemplateConstant    = "unable to write snapshot %s: %w"
)

// ErrSnapshotNotFound indicates no snapshot has been written yet.
var ErrSnapshotNotFound = errors.New(snapshotNotFoundMessageConstant)

// Store loads and replaces a single snapshot document.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, document []byte) error
	Describe() string
}

// Configuration selects and parameterizes the snapshot backend.
type Configuration struct {
	Backend      string        `mapstructure:"backend"`
	Path         string        `mapstructure:"path"`
	RedisAddress string        `mapstructure:"redis_address"`
	RedisKey     string        `mapstructure:"redis_key"`
	RedisTTL     time.Duration `mapstructure:"redis_ttl"`
}

// DefaultConfiguration stores snapshots in issues_cache.json in the working directory.
func DefaultConfiguration() Configuration {
	return Configuration{
		Backend:      BackendFile,
		Path:         defaultCachePathConstant,
		RedisAddress: defaultRedisAddressConstant,
		RedisKey:     defaultRedisKeyConstant,
		RedisTTL:     0,
	}
}

// DefaultConfigurationValues exposes the defaults as configuration entries under the prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		prefix + "." + configurationKeyBackendConstant:      defaults.Backend,
		prefix + "." + configurationKeyPathConstant:         defaults.Path,
		prefix + "." + configurationKeyRedisAddressConstant: defaults.RedisAddress,
		prefix + "." + configurationKeyRedisKeyConstant:     defaults.RedisKey,
		prefix + "." + configurationKeyRedisTTLConstant:     defaults.RedisTTL.String(),
	}
}

// Open builds the configured store and returns a closer releasing its connections.
func Open(configuration Configuration) (Store, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(configuration.Backend)) {
	case "", BackendFile:
		fileStore, fileStoreError := NewFileStore(configuration.Path)
		if fileStoreError != nil {
			return nil, nil, fileStoreError
		}
		return fileStore, func() error { return nil }, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: configuration.RedisAddress})
		redisStore, redisStoreError := NewRedisStore(client, configuration.RedisKey, configuration.RedisTTL)
		if redisStoreError != nil {
			_ = client.Close()
			return nil, nil, redisStoreError
		}
		return redisStore, client.Close, nil
	default:
		return nil, nil, fmt.Errorf(unsupportedBackendTemplateConstant, configuration.Backend)
	}
}

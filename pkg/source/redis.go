package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis API the source needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisConfig configures ConnectRedis.
type RedisConfig struct {
	ConnectionURL  string
	RetryAttempts  int
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

// RedisSource reads the database from a string key. When a version key is
// set, its value is the fingerprint and the blob is only read when the
// version changed; otherwise the blob is fingerprinted by its sha256.
type RedisSource struct {
	client     RedisClient
	key        string
	versionKey string
	name       string
	closer     io.Closer
}

// NewRedisSource returns a source reading key through client. versionKey is
// optional.
func NewRedisSource(client RedisClient, key, versionKey string) (*RedisSource, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrInvalidConfig)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: empty redis key", ErrInvalidConfig)
	}
	return &RedisSource{client: client, key: key, versionKey: versionKey, name: "redis key " + key}, nil
}

func (s *RedisSource) Fetch(ctx context.Context, current string) (*Payload, error) {
	fp := ""
	if s.versionKey != "" {
		v, err := s.client.Get(ctx, s.versionKey).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// No version published; fall back to the content digest.
		case err != nil:
			return nil, classifyRedisError(err, s.versionKey)
		default:
			fp = "version:" + v
			if fp == current {
				return nil, ErrNotModified
			}
		}
	}

	blob, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		return nil, classifyRedisError(err, s.key)
	}

	if fp == "" {
		sum := sha256.Sum256(blob)
		fp = "sha256:" + hex.EncodeToString(sum[:])
		if fp == current {
			return nil, ErrNotModified
		}
	}

	return &Payload{
		Body:        io.NopCloser(bytes.NewReader(blob)),
		Fingerprint: fp,
		Size:        int64(len(blob)),
	}, nil
}

func (s *RedisSource) String() string { return s.name }

// Close closes the client when the source opened it itself.
func (s *RedisSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func classifyRedisError(err error, key string) error {
	switch {
	case errors.Is(err, redis.Nil):
		return fmt.Errorf("%w: redis key %s", ErrNotFound, key)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: redis key %s: %w", ErrUnreachable, key, err)
	}
}

// ConnectRedis opens a client and pings it, retrying up to
// cfg.RetryAttempts times.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, fmt.Errorf("%w: empty redis connection URL", ErrInvalidConfig)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	var lastErr error
	for attempt := range cfg.RetryAttempts {
		client := redis.NewClient(opt)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if attempt == cfg.RetryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: redis not ready: %w", ErrUnreachable, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, fmt.Errorf("%w: redis not ready: %w", ErrUnreachable, lastErr)
}

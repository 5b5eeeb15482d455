package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
)

// RedisOptions configures RedisKV.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	// Prefix namespaces keys; defaults to "cardchat:".
	Prefix string
	// TTL applies to every write; zero keeps keys forever.
	TTL time.Duration
}

// RedisKV stores identity keys in redis.
type RedisKV struct {
	inner  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisKV connects and pings the server.
func NewRedisKV(ctx context.Context, opts RedisOptions) (*RedisKV, error) {
	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "cardchat:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}

	return &RedisKV{inner: client, prefix: prefix, ttl: opts.TTL}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.inner.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "redis get")
	}
	return v, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(r.inner.Set(ctx, r.prefix+key, value, r.ttl).Err(), "redis set")
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return errors.Wrap(r.inner.Del(ctx, r.prefix+key).Err(), "redis del")
}

// Close releases the connection pool.
func (r *RedisKV) Close() error {
	if r == nil || r.inner == nil {
		return nil
	}
	return r.inner.Close()
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "eva:lead:"

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisGuard marca o primeiro envio de cada lead na janela de idempotência.
type RedisGuard struct {
	client setNXer
	closer func() error
	ping   func(ctx context.Context) error
}

func NewRedisGuard(addr, password string, db int) *RedisGuard {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisGuard{
		client: client,
		closer: client.Close,
		ping:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

// Claim devolve true para quem chegou primeiro; a chave expira sozinha após ttl.
func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Ping(ctx context.Context) error {
	if g.ping == nil {
		return nil
	}
	return g.ping(ctx)
}

func (g *RedisGuard) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

package infra

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter é o contador de janela fixa sobre Redis, para deploy com
// vários processos/hosts: INCR é atômico no servidor, então a exclusão mútua
// por chave vem de graça.
//
// A janela começa no primeiro incremento (EXPIRE NX) e o próprio Redis
// descarta o registro quando ela vence — não há janela velha acumulando.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

type RedisCounterOption func(*RedisCounter)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(c *RedisCounter) { c.prefix = strings.Trim(prefix, ":") }
}

func NewRedisCounter(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounter {
	c := &RedisCounter{
		rdb:    rdb,
		prefix: "admission:rl",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment implementa domain.CounterStore.
//
// ExpireNX (e não Expire) porque renovar o TTL a cada acerto viraria uma
// janela deslizante; a janela fixa exige que o TTL seja fixado uma vez, no
// incremento que a abre.
func (c *RedisCounter) Increment(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := c.prefix + ":" + key

	pipe := c.rdb.TxPipeline()
	counter := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return counter.Val() <= int64(limit), nil
}

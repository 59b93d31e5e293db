package localcart

import (
	"context"
	"fmt"
	"time"

	"bookstore/internal/domain/carts"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Redis keeps guest carts in redis so every replica of the service sees the same slot.
// Each save refreshes the key TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedis accepts either a redis:// URL or a bare host:port.
func NewRedis(addr string, ttl time.Duration, logger *zap.SugaredLogger) *Redis {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}
	return &Redis{client: redis.NewClient(opts), ttl: ttl, logger: logger}
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Slot(slot string) Store {
	return &redisSlot{r: r, key: Key(slot)}
}

type redisSlot struct {
	r   *Redis
	key string
}

func (s *redisSlot) Load(ctx context.Context) (carts.Cart, error) {
	raw, err := s.r.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return carts.Cart{}, nil
	}
	if err != nil {
		return carts.Cart{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	c, err := Decode(raw)
	return recoverCorrupt(s.r.logger, s.key, c, err)
}

func (s *redisSlot) Save(ctx context.Context, c carts.Cart) error {
	raw, err := Encode(c)
	if err != nil {
		return err
	}
	if err := s.r.client.Set(ctx, s.key, raw, s.r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *redisSlot) Clear(ctx context.Context) error {
	if err := s.r.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

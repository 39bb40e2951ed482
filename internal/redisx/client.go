package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Claim marks service/eventID as processed. It returns false when another
// worker already claimed it.
func Claim(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Release undoes Claim so a failed event can be retried.
func Release(ctx context.Context, rdb *redis.Client, service, eventID string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}

// Dedup claims event ids for one consuming service.
type Dedup struct {
	Redis   *redis.Client
	Service string
}

func (d *Dedup) Claim(ctx context.Context, eventID string) (bool, error) {
	return Claim(ctx, d.Redis, d.Service, eventID)
}

func (d *Dedup) Release(ctx context.Context, eventID string) error {
	return Release(ctx, d.Redis, d.Service, eventID)
}

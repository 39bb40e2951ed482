package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-course-access/internal/entitlement"
)

// EntitlementCache implements entitlement.Cache on redis.
type EntitlementCache struct {
	Redis *redis.Client
}

func (c *EntitlementCache) Get(ctx context.Context, enrollmentID string) (entitlement.Result, bool, error) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(KeyEntitlement, enrollmentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entitlement.Result{}, false, nil
	}
	if err != nil {
		return entitlement.Result{}, false, err
	}
	var res entitlement.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return entitlement.Result{}, false, fmt.Errorf("decode cached entitlement: %w", err)
	}
	return res, true, nil
}

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds ARGV[1].
// A missing generation counts as 0.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *EntitlementCache) Generation(ctx context.Context, enrollmentID string) (int64, error) {
	gen, err := c.Redis.Get(ctx, fmt.Sprintf(KeyEntitlementGen, enrollmentID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores res unless the enrollment was invalidated after gen was read.
func (c *EntitlementCache) Set(ctx context.Context, res entitlement.Result, gen int64) error {
	if res.EnrollmentID == "" {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	keys := []string{
		fmt.Sprintf(KeyEntitlement, res.EnrollmentID),
		fmt.Sprintf(KeyEntitlementGen, res.EnrollmentID),
	}
	return setIfGeneration.Run(ctx, c.Redis, keys, strconv.FormatInt(gen, 10), b, TTLEntitlement.Milliseconds()).Err()
}

// Invalidate bumps the generation and drops the cached result in one transaction.
func (c *EntitlementCache) Invalidate(ctx context.Context, enrollmentID string) error {
	genKey := fmt.Sprintf(KeyEntitlementGen, enrollmentID)
	_, err := c.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, TTLGeneration)
		pipe.Del(ctx, fmt.Sprintf(KeyEntitlement, enrollmentID))
		return nil
	})
	return err
}

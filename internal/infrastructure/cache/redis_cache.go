package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"invencare/internal/domain/ledger"
)

const (
	redisPrefix     = "invencare:summary:"
	redisGeneration = redisPrefix + "generation"
)

// Redis shares summaries between API instances. Keys embed a generation
// counter; bumping it orphans every cached summary, which then expire.
type Redis struct {
	client *redis.Client
}

var _ ledger.SummaryCache = (*Redis)(nil)

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// NewRedisClient builds a client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, redisGeneration).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func versionedKey(gen int64, key string) string {
	return fmt.Sprintf("%s%d:%s", redisPrefix, gen, key)
}

func (c *Redis) GetSummary(ctx context.Context, key string) (*ledger.Summary, bool, error) {
	gen, err := c.Generation(ctx)
	if err != nil {
		return nil, false, err
	}
	val, err := c.client.Get(ctx, versionedKey(gen, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var s ledger.Summary
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

// SetSummary writes under gen. A summary computed before an invalidation
// lands in an orphaned generation and is never read.
func (c *Redis) SetSummary(ctx context.Context, key string, gen int64, summary *ledger.Summary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, versionedKey(gen, key), payload, ttl).Err()
}

func (c *Redis) InvalidateSummaries(ctx context.Context) error {
	return c.client.Incr(ctx, redisGeneration).Err()
}

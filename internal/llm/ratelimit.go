package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitedClient caps outbound LLM calls per minute across all worker
// processes using a Redis fixed-window counter. When Redis is down the
// limiter fails open: drafting a reply late beats not drafting it at all.
type RateLimitedClient struct {
	inner     Client
	rdb       *redis.Client
	perMinute int
}

// NewRateLimitedClient wraps inner with the shared limiter. A nil rdb or a
// non-positive limit disables limiting entirely.
func NewRateLimitedClient(inner Client, rdb *redis.Client, perMinute int) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rdb: rdb, perMinute: perMinute}
}

// Chat consumes one token from the shared window, then delegates.
func (c *RateLimitedClient) Chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	if c.rdb != nil && c.perMinute > 0 {
		ok, err := c.allow(ctx)
		if err != nil {
			log.Printf("[LLMRateLimit] limiter check failed, failing open: %v", err)
		} else if !ok {
			return "", ErrRateLimited
		}
	}
	return c.inner.Chat(ctx, system, user, temperature)
}

func (c *RateLimitedClient) allow(ctx context.Context) (bool, error) {
	key := fmt.Sprintf("concierge:llm:window:%d", time.Now().Unix()/60)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(c.perMinute), nil
}

var _ Client = (*RateLimitedClient)(nil)

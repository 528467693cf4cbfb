package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/pkg/logger"
	"go.uber.org/zap"
)

// routeCacheTTL bounds how long a quote may be reused
const routeCacheTTL = 5 * time.Minute

// RouteCache memoizes route quotes keyed by (chain, currency, amount
// rounded to 2 decimals). A miss only costs a re-quote, never incorrect
// settlement, so there is no invalidation beyond the TTL.
type RouteCache struct {
	client *redis.Client
	ttl    time.Duration

	now func() time.Time
}

// NewRouteCache creates a cache on the given redis client
func NewRouteCache(client *redis.Client) *RouteCache {
	return &RouteCache{client: client, ttl: routeCacheTTL, now: time.Now}
}

// Save stores candidates for the key with the absolute TTL
func (c *RouteCache) Save(ctx context.Context, chain, currency, amount string, candidates []entities.RouteCandidate) error {
	entry := entities.CachedRouteEntry{
		Candidates: candidates,
		CachedAt:   c.now().UnixMilli(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, routeCacheKey(chain, currency, amount), raw, c.ttl).Err()
}

// Find returns the cached candidates, or nil on miss. An entry older than
// the TTL is treated as a miss even if still physically present.
func (c *RouteCache) Find(ctx context.Context, chain, currency, amount string) ([]entities.RouteCandidate, error) {
	raw, err := c.client.Get(ctx, routeCacheKey(chain, currency, amount)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var entry entities.CachedRouteEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Warn(ctx, "discarding unparseable route cache entry",
			zap.String("chain", chain), zap.Error(err))
		return nil, nil
	}
	if c.now().UnixMilli()-entry.CachedAt > c.ttl.Milliseconds() {
		return nil, nil
	}
	return entry.Candidates, nil
}

// routeCacheKey rounds the amount to 2 decimals so nearby quotes share an
// entry, e.g. route:BASE-USDC-100.00
func routeCacheKey(chain, currency, amount string) string {
	rounded := amount
	if f, err := strconv.ParseFloat(amount, 64); err == nil {
		rounded = fmt.Sprintf("%.2f", f)
	}
	return fmt.Sprintf("route:%s-%s-%s", strings.ToUpper(chain), strings.ToUpper(currency), rounded)
}

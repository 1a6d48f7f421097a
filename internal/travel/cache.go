package travel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	addressKeyPrefix = "easyfinder:address:"
	// DefaultAddressTTL is how long a confirmed address stays cached.
	DefaultAddressTTL = 30 * 24 * time.Hour
)

// kv is the subset of redis.Cmdable used by CachedValidator.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedValidator remembers confirmed addresses in Redis so repeated
// validation of the same input does not hit the provider. Refusals are not
// cached. Redis errors fall through to the provider.
type CachedValidator struct {
	next   Validator
	rdb    kv
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedValidator wraps next.
func NewCachedValidator(next Validator, rdb kv, ttl time.Duration) *CachedValidator {
	if ttl <= 0 {
		ttl = DefaultAddressTTL
	}
	return &CachedValidator{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: slog.With("component", "address_cache"),
	}
}

func addressKey(address string) string {
	return addressKeyPrefix + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (c *CachedValidator) Validate(ctx context.Context, address string) (Address, string, bool) {
	key := addressKey(address)

	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var addr Address
		if jsonErr := json.Unmarshal([]byte(raw), &addr); jsonErr == nil {
			return addr, "", true
		}
		c.logger.Warn("discarding unreadable cached address", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("address cache read failed", "err", err)
	}

	addr, reason, ok := c.next.Validate(ctx, address)
	if !ok {
		return addr, reason, false
	}
	payload, err := json.Marshal(addr)
	if err == nil {
		err = c.rdb.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("address cache write failed", "err", err)
	}
	return addr, "", true
}

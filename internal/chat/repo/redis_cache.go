package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	errx "github.com/Chative-core-poc-v1/sqlchat/internal/core/error"
	logx "github.com/Chative-core-poc-v1/sqlchat/pkg/logger"
)

// RedisEnrichmentCache stores enrichment payloads as JSON strings so they are
// shared between console processes pointed at the same Redis.
type RedisEnrichmentCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisEnrichmentCache(rdb redis.Cmdable, ttl time.Duration) *RedisEnrichmentCache {
	return &RedisEnrichmentCache{rdb: rdb, ttl: ttl}
}

func (r *RedisEnrichmentCache) enrichmentKey(key string) string {
	return fmt.Sprintf("enrichment:%s", key)
}

func (r *RedisEnrichmentCache) Get(ctx context.Context, key string) (*model.EnrichmentPayload, bool, error) {
	k := r.enrichmentKey(key)

	raw, err := r.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		logx.Error().Err(err).Str("key", k).Msg("failed to read enrichment from redis")
		return nil, false, errx.WrapRedis(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p model.EnrichmentPayload
	if err := dec.Decode(&p); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to unmarshal enrichment")
		return nil, false, fmt.Errorf("unmarshal enrichment: %w", err)
	}
	return &p, true, nil
}

// Set writes payload with ttl, or the cache default when ttl is zero.
func (r *RedisEnrichmentCache) Set(ctx context.Context, key string, payload *model.EnrichmentPayload, ttl time.Duration) error {
	b, err := json.Marshal(payload)
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to marshal enrichment")
		return fmt.Errorf("marshal enrichment: %w", err)
	}
	if ttl <= 0 {
		ttl = r.ttl
	}
	k := r.enrichmentKey(key)
	if err := r.rdb.Set(ctx, k, b, ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to write enrichment to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// Delete removes a cached payload.
func (r *RedisEnrichmentCache) Delete(ctx context.Context, key string) error {
	k := r.enrichmentKey(key)
	if err := r.rdb.Del(ctx, k).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to delete enrichment from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.EnrichmentCache = (*RedisEnrichmentCache)(nil)
